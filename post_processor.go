package flatmapper

import "context"

// PostProcessor is an interface that can be passed as an option to NewMapper (or Mapper.Map, Mapper.Hydrate and Mapper.Query)
//
// Any PostProcessor(s) are called, in order, with each root instance once all rows have been mapped and linked
type PostProcessor interface {
	PostProcess(ctx context.Context, typeName string, instance any) error
}

// PostProcessorFunc is a func that can be used as a PostProcessor
type PostProcessorFunc func(ctx context.Context, typeName string, instance any) error

func (f PostProcessorFunc) PostProcess(ctx context.Context, typeName string, instance any) error {
	return f(ctx, typeName, instance)
}

func runPostProcessors(ctx context.Context, typeName string, instances *Collection, postProcessors []PostProcessor) error {
	for _, pp := range postProcessors {
		if pp == nil {
			continue
		}
		for _, instance := range instances.All() {
			if err := pp.PostProcess(ctx, typeName, instance); err != nil {
				return err
			}
		}
	}
	return nil
}
