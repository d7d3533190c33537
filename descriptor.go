package flatmapper

// MetadataReader is the interface used by Mapper to obtain the declared shape of a target type
//
// Registry is the standard implementation
type MetadataReader interface {
	// Describe returns the descriptor for the named type
	//
	// should return an error (preferably a *MappingCreationError) if the type is unknown
	Describe(typeName string) (*TypeDescriptor, error)
}

// Constructor builds an instance of a target type from its positional constructor args
//
// args has one entry per TypeDescriptor.Params - scalar values (nil for null columns) and,
// for collection params, an empty collection placeholder
type Constructor func(args Args) (any, error)

// LinkFunc assigns a collection to a collection param of an already constructed instance
//
// for ObjectCollection params the collection is a *Collection, for ScalarCollection params it is a []any
type LinkFunc func(instance any, collection any) error

// TypeDescriptor declares how a target type is built from row columns
type TypeDescriptor struct {
	// Name is the unique name of the type
	Name string
	// Tags are type level tags - Identifier (with a column) and NameRule
	Tags []Tag
	// Params are the constructor params, in order
	Params []Param
	// Construct is the constructor for the type
	Construct Constructor
	// ReadOnly indicates that instances cannot be mutated once constructed (and therefore cannot have collection params)
	ReadOnly bool
}

// Param is a constructor param of a TypeDescriptor
type Param struct {
	// Name is the param (field) name - from which the default column name is derived
	Name string
	// Tags are the tags for the param - Identifier, Column, ObjectCollection or ScalarCollection
	Tags []Tag
	// Link is required for collection params
	Link LinkFunc
}

// Tag is a metadata tag attached to a TypeDescriptor or Param
type Tag interface {
	tag()
}

// Identifier marks a param as the identifier of its type
//
// When used as a type level tag, Column must be specified
type Identifier struct {
	// Column is an optional explicit column name - it takes precedence over any NameRule
	Column string
}

// ObjectCollection marks a param as a collection of instances of another described type
type ObjectCollection struct {
	Type string
}

// ScalarCollection marks a param as a collection of scalar values read, one per row, from Column
type ScalarCollection struct {
	Column string
}

// Column gives a param an explicit column name - it takes precedence over any NameRule
type Column struct {
	Name string
}

func (Identifier) tag()       {}
func (ObjectCollection) tag() {}
func (ScalarCollection) tag() {}
func (Column) tag()           {}
func (NameRule) tag()         {}

var (
	_ Tag = Identifier{}
	_ Tag = ObjectCollection{}
	_ Tag = ScalarCollection{}
	_ Tag = Column{}
	_ Tag = NameRule{}
)

// Args is the positional constructor args passed to a Constructor
type Args []any
