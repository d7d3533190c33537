package flatmapper

import (
	"fmt"
)

// hydration is the state of a single Mapper.Hydrate call
//
// instances are constructed on first sighting of an identifier, collection params are accumulated
// in pending links and assigned once every row has been scanned
type hydration struct {
	plan      *Plan
	instances []*Collection
	pending   map[linkKey]*pendingLink
	order     []*pendingLink
	rows      int
}

type linkKey struct {
	typ   int
	id    any
	field int
}

type pendingLink struct {
	typeName string
	field    *FieldPlan
	instance any
	// foreign identifier keys for object collections (deduplicated, first occurrence order)
	foreign     []any
	seenForeign map[any]struct{}
	// values for scalar collections (one per row, duplicates retained)
	scalars []any
}

func newHydration(plan *Plan) *hydration {
	h := &hydration{
		plan:      plan,
		instances: make([]*Collection, len(plan.Types)),
		pending:   map[linkKey]*pendingLink{},
	}
	for i := range plan.Types {
		h.instances[i] = NewCollection()
	}
	return h
}

func (h *hydration) scan(row Row) error {
	h.rows++
	for ti, tp := range h.plan.Types {
		rawID, ok := row[tp.IdentifierColumn]
		if !ok {
			return newMappingError(tp.Name, fmt.Sprintf("identifier not found: %s", tp.IdentifierColumn), nil)
		}
		id, err := identityKey(rawID)
		if err != nil {
			return newMappingError(tp.Name, fmt.Sprintf("invalid identifier %s", tp.IdentifierColumn), err)
		} else if id == nil {
			continue
		}
		if _, exists := h.instances[ti].values[id]; !exists {
			if err = h.construct(ti, tp, id, row); err != nil {
				return err
			}
		}
		if err = h.collect(ti, tp, id, row); err != nil {
			return err
		}
	}
	return nil
}

func (h *hydration) construct(ti int, tp *TypePlan, id any, row Row) error {
	args := make(Args, 0, len(tp.Fields))
	for fi := range tp.Fields {
		fp := &tp.Fields[fi]
		switch fp.Kind {
		case ScalarField:
			v, ok := row[fp.Column]
			if !ok {
				return newMappingError(tp.Name, fmt.Sprintf("data does not contain required property: %s", fp.Column), nil)
			}
			args = append(args, v)
		case ObjectCollectionField:
			args = append(args, NewCollection())
		case ScalarCollectionField:
			args = append(args, []any{})
		}
	}
	instance, err := callConstructor(tp.construct, args)
	if err != nil {
		return newMappingError(tp.Name, fmt.Sprintf("cannot construct %s with identifier %v", tp.Name, id), err)
	}
	h.instances[ti].put(id, instance)
	for fi := range tp.Fields {
		fp := &tp.Fields[fi]
		if fp.Kind == ScalarField {
			continue
		}
		pl := &pendingLink{
			typeName: tp.Name,
			field:    fp,
			instance: instance,
		}
		if fp.Kind == ObjectCollectionField {
			pl.seenForeign = map[any]struct{}{}
		}
		h.pending[linkKey{typ: ti, id: id, field: fi}] = pl
		h.order = append(h.order, pl)
	}
	return nil
}

func (h *hydration) collect(ti int, tp *TypePlan, id any, row Row) error {
	for fi := range tp.Fields {
		fp := &tp.Fields[fi]
		switch fp.Kind {
		case ObjectCollectionField:
			foreignColumn := h.plan.Types[fp.related].IdentifierColumn
			rawForeign, ok := row[foreignColumn]
			if !ok {
				return newMappingError(tp.Name, fmt.Sprintf("identifier not found: %s", foreignColumn), nil)
			}
			foreign, err := identityKey(rawForeign)
			if err != nil {
				return newMappingError(fp.Related, fmt.Sprintf("invalid identifier %s", foreignColumn), err)
			} else if foreign == nil {
				continue
			}
			pl := h.pending[linkKey{typ: ti, id: id, field: fi}]
			if _, seen := pl.seenForeign[foreign]; !seen {
				pl.seenForeign[foreign] = struct{}{}
				pl.foreign = append(pl.foreign, foreign)
			}
		case ScalarCollectionField:
			v, ok := row[fp.Column]
			if !ok {
				return newMappingError(tp.Name, fmt.Sprintf("data does not contain required property: %s", fp.Column), nil)
			}
			if v != nil {
				pl := h.pending[linkKey{typ: ti, id: id, field: fi}]
				pl.scalars = append(pl.scalars, v)
			}
		}
	}
	return nil
}

// link assigns every accumulated collection to its owning instance - exactly once per instance and collection param
func (h *hydration) link() error {
	for _, pl := range h.order {
		if pl.field.link == nil {
			continue
		}
		var collection any
		if pl.field.Kind == ObjectCollectionField {
			related := h.instances[pl.field.related]
			c := NewCollection()
			for _, fk := range pl.foreign {
				if inst, ok := related.values[fk]; ok {
					c.put(fk, inst)
				}
			}
			collection = c
		} else {
			collection = append(make([]any, 0, len(pl.scalars)), pl.scalars...)
		}
		if err := callLink(pl.field.link, pl.instance, collection); err != nil {
			return newMappingError(pl.typeName, fmt.Sprintf("cannot link %s.%s", pl.typeName, pl.field.Name), err)
		}
	}
	return nil
}

func (h *hydration) result() *Collection {
	return h.instances[h.plan.index[h.plan.Root]]
}

func callConstructor(construct Constructor, args Args) (instance any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoveredError(r)
		}
	}()
	return construct(args)
}

func callLink(link LinkFunc, instance any, collection any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoveredError(r)
		}
	}()
	return link(instance, collection)
}

func recoveredError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}
