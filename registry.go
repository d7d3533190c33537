package flatmapper

import (
	"fmt"
	"slices"
	"sync"
)

// Registry is a MetadataReader holding type descriptors registered at startup
//
// it is safe for concurrent use
type Registry struct {
	mutex sync.RWMutex
	types map[string]*TypeDescriptor
}

var _ MetadataReader = (*Registry)(nil)

// NewRegistry creates a new Registry with the given descriptors registered
func NewRegistry(descriptors ...*TypeDescriptor) (*Registry, error) {
	r := &Registry{types: map[string]*TypeDescriptor{}}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNewRegistry is the same as NewRegistry except that it panics on error
func MustNewRegistry(descriptors ...*TypeDescriptor) *Registry {
	r, err := NewRegistry(descriptors...)
	if err != nil {
		panic(err)
	}
	return r
}

// Register registers a type descriptor
//
// returns an error if the descriptor has no name or a type with the same name is already registered
func (r *Registry) Register(d *TypeDescriptor) error {
	if d == nil || d.Name == "" {
		return newCreationError("", "cannot register a type without a name", nil)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.types[d.Name]; exists {
		return newCreationError(d.Name, fmt.Sprintf("type %q is already registered", d.Name), nil)
	}
	r.types[d.Name] = d
	return nil
}

// Describe returns the registered descriptor for the named type
func (r *Registry) Describe(typeName string) (*TypeDescriptor, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if d, ok := r.types[typeName]; ok {
		return d, nil
	}
	return nil, newCreationError(typeName, fmt.Sprintf("%s is not a valid type name", typeName), nil)
}

// Names returns the names of all registered types, sorted
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	result := make([]string, 0, len(r.types))
	for name := range r.types {
		result = append(result, name)
	}
	slices.Sort(result)
	return result
}
