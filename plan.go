package flatmapper

import (
	"fmt"
	"strings"
)

// RelationKind is the kind of a FieldPlan
type RelationKind int

const (
	// ScalarField is read directly from a row column
	ScalarField RelationKind = iota
	// ScalarCollectionField collects one value per row from a column
	ScalarCollectionField
	// ObjectCollectionField collects instances of a related type
	ObjectCollectionField
)

func (k RelationKind) String() string {
	switch k {
	case ScalarField:
		return "scalar"
	case ScalarCollectionField:
		return "scalar-collection"
	case ObjectCollectionField:
		return "object-collection"
	}
	return fmt.Sprintf("RelationKind(%d)", int(k))
}

func (k RelationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FieldPlan is the plan for a single constructor param
type FieldPlan struct {
	Name string `json:"name"`
	// Column is the column read for Scalar and ScalarCollection fields (empty for ObjectCollection)
	Column string       `json:"column,omitempty"`
	Kind   RelationKind `json:"kind"`
	// Related is the related type name for ObjectCollection fields
	Related string `json:"related,omitempty"`
	index   int
	related int
	link    LinkFunc
}

// TypePlan is the plan for a single type within a Plan
type TypePlan struct {
	Name             string      `json:"name"`
	IdentifierColumn string      `json:"identifier"`
	Fields           []FieldPlan `json:"fields"`
	construct        Constructor
}

// Plan is the immutable mapping plan for a root type and every type reachable from it
//
// Types are held in resolution order - related types before the types that reference them
type Plan struct {
	Root  string      `json:"root"`
	Types []*TypePlan `json:"types"`
	index map[string]int
}

// Type returns the TypePlan for the named type
func (p *Plan) Type(name string) (*TypePlan, bool) {
	if i, ok := p.index[name]; ok {
		return p.Types[i], true
	}
	return nil, false
}

// IdentifierColumn returns the identifier column for the named type
func (p *Plan) IdentifierColumn(name string) (string, bool) {
	if tp, ok := p.Type(name); ok {
		return tp.IdentifierColumn, true
	}
	return "", false
}

// schemaBuilder walks descriptors into an arena of type plans
//
// the arena is indexed by discovery order, the final Plan holds it in reverse
type schemaBuilder struct {
	reader   MetadataReader
	validate bool
	arena    []*TypePlan
	index    map[string]int
}

func buildPlan(reader MetadataReader, root string, validate bool) (*Plan, error) {
	sb := &schemaBuilder{
		reader:   reader,
		validate: validate,
		index:    map[string]int{},
	}
	if _, err := sb.build(root); err != nil {
		return nil, err
	}
	return sb.plan(root), nil
}

func (sb *schemaBuilder) plan(root string) *Plan {
	n := len(sb.arena)
	result := &Plan{
		Root:  root,
		Types: make([]*TypePlan, n),
		index: make(map[string]int, n),
	}
	for i, tp := range sb.arena {
		pos := n - 1 - i
		result.Types[pos] = tp
		result.index[tp.Name] = pos
	}
	for _, tp := range result.Types {
		for i := range tp.Fields {
			if tp.Fields[i].Kind == ObjectCollectionField {
				tp.Fields[i].related = result.index[tp.Fields[i].Related]
			}
		}
	}
	return result
}

func (sb *schemaBuilder) build(typeName string) (int, error) {
	if i, ok := sb.index[typeName]; ok {
		return i, nil
	}
	desc, err := sb.reader.Describe(typeName)
	if err != nil {
		return -1, asCreationError(typeName, err)
	} else if desc == nil {
		return -1, newCreationError(typeName, fmt.Sprintf("%s is not a valid type name", typeName), nil)
	}
	if desc.Construct == nil {
		return -1, newCreationError(typeName, fmt.Sprintf("type %q does not have a constructor", typeName), nil)
	}
	tp := &TypePlan{
		Name:      typeName,
		Fields:    make([]FieldPlan, 0, len(desc.Params)),
		construct: desc.Construct,
	}
	idx := len(sb.arena)
	sb.arena = append(sb.arena, tp)
	sb.index[typeName] = idx
	identifiers := 0
	var rule *NameRule
	for _, t := range desc.Tags {
		switch tag := t.(type) {
		case Identifier:
			if tag.Column == "" {
				return -1, newCreationError(typeName, fmt.Sprintf("type %q: the identifier tag cannot be used without a column name when used as a type tag", typeName), nil)
			}
			identifiers++
			tp.IdentifierColumn = tag.Column
		case NameRule:
			if rule != nil {
				return -1, newCreationError(typeName, fmt.Sprintf("type %q has more than one name rule", typeName), nil)
			}
			if err := tag.validate(); err != nil {
				return -1, newCreationError(typeName, fmt.Sprintf("type %q", typeName), err)
			}
			r := tag
			rule = &r
		default:
			return -1, newCreationError(typeName, fmt.Sprintf("type %q: tag %T cannot be used as a type tag", typeName, t), nil)
		}
	}
	for pi, param := range desc.Params {
		fp, isIdentifier, err := sb.fieldPlan(desc, param, rule)
		if err != nil {
			return -1, err
		}
		fp.index = pi
		if fp.Kind == ObjectCollectionField {
			if _, err := sb.build(fp.Related); err != nil {
				return -1, err
			}
		}
		if isIdentifier {
			identifiers++
			tp.IdentifierColumn = fp.Column
		}
		tp.Fields = append(tp.Fields, fp)
	}
	if sb.validate {
		if err := sb.validateType(desc, tp, identifiers); err != nil {
			return -1, err
		}
	}
	return idx, nil
}

func (sb *schemaBuilder) fieldPlan(desc *TypeDescriptor, param Param, rule *NameRule) (fp FieldPlan, isIdentifier bool, err error) {
	column := param.Name
	if rule != nil {
		column = rule.ColumnName(param.Name)
	}
	explicit := ""
	for _, t := range param.Tags {
		switch tag := t.(type) {
		case ObjectCollection:
			if tag.Type == "" {
				return fp, false, newCreationError(desc.Name, fmt.Sprintf("type %q param %q: object collection requires a type name", desc.Name, param.Name), nil)
			}
			fp = FieldPlan{Name: param.Name, Kind: ObjectCollectionField, Related: tag.Type, link: param.Link}
			return fp, false, sb.checkLink(desc, param)
		case ScalarCollection:
			if tag.Column == "" {
				return fp, false, newCreationError(desc.Name, fmt.Sprintf("type %q param %q: scalar collection requires a column name", desc.Name, param.Name), nil)
			}
			fp = FieldPlan{Name: param.Name, Kind: ScalarCollectionField, Column: tag.Column, link: param.Link}
			return fp, false, sb.checkLink(desc, param)
		case Identifier:
			isIdentifier = true
			if tag.Column != "" {
				explicit = tag.Column
			}
		case Column:
			if tag.Name == "" {
				return fp, false, newCreationError(desc.Name, fmt.Sprintf("type %q param %q: column tag requires a name", desc.Name, param.Name), nil)
			}
			if explicit == "" || !isIdentifier {
				explicit = tag.Name
			}
		default:
			return fp, false, newCreationError(desc.Name, fmt.Sprintf("type %q param %q: tag %T cannot be used as a param tag", desc.Name, param.Name, t), nil)
		}
	}
	if explicit != "" {
		column = explicit
	}
	return FieldPlan{Name: param.Name, Kind: ScalarField, Column: column}, isIdentifier, nil
}

func (sb *schemaBuilder) checkLink(desc *TypeDescriptor, param Param) error {
	if desc.ReadOnly {
		if sb.validate {
			return newCreationError(desc.Name, fmt.Sprintf("type %q cannot be read-only as it is non-scalar and param %q requires post-construction assignment", desc.Name, param.Name), nil)
		}
		return nil
	}
	if param.Link == nil {
		return newCreationError(desc.Name, fmt.Sprintf("type %q param %q: collection params require a link func", desc.Name, param.Name), nil)
	}
	return nil
}

func (sb *schemaBuilder) validateType(desc *TypeDescriptor, tp *TypePlan, identifiers int) error {
	if identifiers != 1 {
		return newCreationError(desc.Name, fmt.Sprintf("type %q does not contain exactly one identifier (found %d)", desc.Name, identifiers), nil)
	}
	seen := make(map[string]string, len(sb.arena))
	for _, other := range sb.arena {
		if other.IdentifierColumn == "" {
			continue
		}
		if prev, ok := seen[other.IdentifierColumn]; ok {
			return newCreationError(desc.Name, fmt.Sprintf("several data identifiers are identical: types %q and %q both use column %q", prev, other.Name, other.IdentifierColumn), nil)
		}
		seen[other.IdentifierColumn] = other.Name
	}
	return nil
}

func asCreationError(typeName string, err error) error {
	if _, ok := err.(*MappingCreationError); ok {
		return err
	}
	return newCreationError(typeName, fmt.Sprintf("cannot describe type %q", typeName), err)
}

func (p *Plan) String() string {
	var sb strings.Builder
	for i, tp := range p.Types {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(tp.Name + "(" + tp.IdentifierColumn + ")")
	}
	return sb.String()
}
