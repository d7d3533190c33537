package flatmapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/stretchr/testify/require"
	"testing"
)

func constructNothing(args Args) (any, error) {
	return args, nil
}

func linkNothing(instance any, collection any) error {
	return nil
}

func TestBuildPlan(t *testing.T) {
	p, err := buildPlan(testRegistry(t), "Author", true)
	require.NoError(t, err)
	require.Equal(t, "Author", p.Root)
	require.Equal(t, 2, len(p.Types))

	book, ok := p.Type("Book")
	require.True(t, ok)
	require.Same(t, p.Types[0], book)
	require.Equal(t, "book_id", book.IdentifierColumn)
	require.Equal(t, []FieldPlan{
		{Name: "id", Column: "book_id", Kind: ScalarField, index: 0},
		{Name: "name", Column: "book_name", Kind: ScalarField, index: 1},
		{Name: "publisherName", Column: "book_publisher_name", Kind: ScalarField, index: 2},
	}, book.Fields)

	author, ok := p.Type("Author")
	require.True(t, ok)
	require.Same(t, p.Types[1], author)
	require.Equal(t, "author_id", author.IdentifierColumn)
	require.Equal(t, 3, len(author.Fields))
	require.Equal(t, ObjectCollectionField, author.Fields[2].Kind)
	require.Equal(t, "Book", author.Fields[2].Related)
	require.Equal(t, 0, author.Fields[2].related)
	require.Equal(t, "", author.Fields[2].Column)

	col, ok := p.IdentifierColumn("Author")
	require.True(t, ok)
	require.Equal(t, "author_id", col)
	_, ok = p.IdentifierColumn("Unknown")
	require.False(t, ok)
	_, ok = p.Type("Unknown")
	require.False(t, ok)
	require.Equal(t, "Book(book_id); Author(author_id)", p.String())
}

func TestBuildPlan_ScalarCollection(t *testing.T) {
	p, err := buildPlan(testRegistry(t), "ColumnArray", true)
	require.NoError(t, err)
	require.Equal(t, 1, len(p.Types))
	f := p.Types[0].Fields[2]
	require.Equal(t, ScalarCollectionField, f.Kind)
	require.Equal(t, "object2_id", f.Column)
}

func TestBuildPlan_TypeLevelIdentifier(t *testing.T) {
	p, err := buildPlan(testRegistry(t), "Product", true)
	require.NoError(t, err)
	require.Equal(t, "product_id", p.Types[0].IdentifierColumn)
	require.Equal(t, "product_sku", p.Types[0].Fields[0].Column)
}

func TestBuildPlan_SharedRelatedTypeVisitedOnce(t *testing.T) {
	r := MustNewRegistry(
		&TypeDescriptor{
			Name: "Root",
			Params: []Param{
				{Name: "root_id", Tags: []Tag{Identifier{}}},
				{Name: "left", Tags: []Tag{ObjectCollection{Type: "Leaf"}}, Link: linkNothing},
				{Name: "right", Tags: []Tag{ObjectCollection{Type: "Leaf"}}, Link: linkNothing},
			},
			Construct: constructNothing,
		},
		&TypeDescriptor{
			Name:      "Leaf",
			Params:    []Param{{Name: "leaf_id", Tags: []Tag{Identifier{}}}},
			Construct: constructNothing,
		},
	)
	p, err := buildPlan(r, "Root", true)
	require.NoError(t, err)
	require.Equal(t, 2, len(p.Types))
	require.Equal(t, "Leaf", p.Types[0].Name)
	require.Equal(t, "Root", p.Types[1].Name)
}

func TestBuildPlan_SelfReference(t *testing.T) {
	r := MustNewRegistry(&TypeDescriptor{
		Name: "Node",
		Params: []Param{
			{Name: "node_id", Tags: []Tag{Identifier{}}},
			{Name: "children", Tags: []Tag{ObjectCollection{Type: "Node"}}, Link: linkNothing},
		},
		Construct: constructNothing,
	})
	p, err := buildPlan(r, "Node", true)
	require.NoError(t, err)
	require.Equal(t, 1, len(p.Types))
	require.Equal(t, 0, p.Types[0].Fields[1].related)
}

func TestBuildPlan_ColumnPrecedence(t *testing.T) {
	r := MustNewRegistry(&TypeDescriptor{
		Name: "Precedence",
		Tags: []Tag{NameRule{ColumnPrefix: "p_", SnakeCaseColumns: true}},
		Params: []Param{
			{Name: "theId", Tags: []Tag{Column{Name: "ignored"}, Identifier{Column: "explicit_id"}}},
			{Name: "firstName", Tags: []Tag{Column{Name: "fname"}}},
			{Name: "lastName"},
		},
		Construct: constructNothing,
	})
	p, err := buildPlan(r, "Precedence", true)
	require.NoError(t, err)
	tp := p.Types[0]
	require.Equal(t, "explicit_id", tp.IdentifierColumn)
	require.Equal(t, "explicit_id", tp.Fields[0].Column)
	require.Equal(t, "fname", tp.Fields[1].Column)
	require.Equal(t, "p_last_name", tp.Fields[2].Column)
}

func TestBuildPlan_NoNameRule(t *testing.T) {
	r := MustNewRegistry(&TypeDescriptor{
		Name: "WithoutRule",
		Params: []Param{
			{Name: "id", Tags: []Tag{Identifier{}}},
			{Name: "foo"},
			{Name: "bar"},
		},
		Construct: constructNothing,
	})
	p, err := buildPlan(r, "WithoutRule", true)
	require.NoError(t, err)
	tp := p.Types[0]
	require.Equal(t, "id", tp.IdentifierColumn)
	require.Equal(t, "foo", tp.Fields[1].Column)
	require.Equal(t, "bar", tp.Fields[2].Column)
}

func TestBuildPlan_Errors(t *testing.T) {
	testCases := []struct {
		descriptors   []*TypeDescriptor
		root          string
		noValidate    bool
		expectMessage string
	}{
		{
			root:          "Unknown",
			expectMessage: "Unknown is not a valid type name",
		},
		{
			descriptors: []*TypeDescriptor{{
				Name:   "NoConstructor",
				Params: []Param{{Name: "id", Tags: []Tag{Identifier{}}}},
			}},
			root:          "NoConstructor",
			expectMessage: `type "NoConstructor" does not have a constructor`,
		},
		{
			descriptors: []*TypeDescriptor{{
				Name:   "NoConstructor",
				Params: []Param{{Name: "id", Tags: []Tag{Identifier{}}}},
			}},
			root:          "NoConstructor",
			noValidate:    true,
			expectMessage: `type "NoConstructor" does not have a constructor`,
		},
		{
			descriptors: []*TypeDescriptor{{
				Name:      "NoIdentifier",
				Params:    []Param{{Name: "id"}},
				Construct: constructNothing,
			}},
			root:          "NoIdentifier",
			expectMessage: `type "NoIdentifier" does not contain exactly one identifier (found 0)`,
		},
		{
			descriptors: []*TypeDescriptor{{
				Name:      "TooManyIdentifiers",
				Params:    []Param{{Name: "id", Tags: []Tag{Identifier{}}}, {Name: "other_id", Tags: []Tag{Identifier{}}}},
				Construct: constructNothing,
			}},
			root:          "TooManyIdentifiers",
			expectMessage: `type "TooManyIdentifiers" does not contain exactly one identifier (found 2)`,
		},
		{
			descriptors: []*TypeDescriptor{{
				Name:      "TypeAndParamIdentifiers",
				Tags:      []Tag{Identifier{Column: "type_id"}},
				Params:    []Param{{Name: "id", Tags: []Tag{Identifier{}}}},
				Construct: constructNothing,
			}},
			root:          "TypeAndParamIdentifiers",
			expectMessage: `type "TypeAndParamIdentifiers" does not contain exactly one identifier (found 2)`,
		},
		{
			descriptors: []*TypeDescriptor{{
				Name:      "EmptyTypeIdentifier",
				Tags:      []Tag{Identifier{}},
				Params:    []Param{{Name: "id"}},
				Construct: constructNothing,
			}},
			root:          "EmptyTypeIdentifier",
			noValidate:    true,
			expectMessage: `type "EmptyTypeIdentifier": the identifier tag cannot be used without a column name when used as a type tag`,
		},
		{
			descriptors: []*TypeDescriptor{
				{
					Name: "Root",
					Tags: []Tag{NameRule{ColumnPrefix: "object1_"}},
					Params: []Param{
						{Name: "id", Tags: []Tag{Identifier{}}},
						{Name: "leaves", Tags: []Tag{ObjectCollection{Type: "Leaf"}}, Link: linkNothing},
					},
					Construct: constructNothing,
				},
				{
					Name:      "Leaf",
					Params:    []Param{{Name: "id", Tags: []Tag{Identifier{Column: "object1_id"}}}},
					Construct: constructNothing,
				},
			},
			root:          "Root",
			expectMessage: `several data identifiers are identical: types "Root" and "Leaf" both use column "object1_id"`,
		},
		{
			descriptors: []*TypeDescriptor{{
				Name: "ReadOnlyRoot",
				Params: []Param{
					{Name: "id", Tags: []Tag{Identifier{}}},
					{Name: "values", Tags: []Tag{ScalarCollection{Column: "value"}}, Link: linkNothing},
				},
				Construct: constructNothing,
				ReadOnly:  true,
			}},
			root:          "ReadOnlyRoot",
			expectMessage: `type "ReadOnlyRoot" cannot be read-only as it is non-scalar and param "values" requires post-construction assignment`,
		},
		{
			descriptors: []*TypeDescriptor{{
				Name: "NoLink",
				Params: []Param{
					{Name: "id", Tags: []Tag{Identifier{}}},
					{Name: "values", Tags: []Tag{ScalarCollection{Column: "value"}}},
				},
				Construct: constructNothing,
			}},
			root:          "NoLink",
			noValidate:    true,
			expectMessage: `type "NoLink" param "values": collection params require a link func`,
		},
		{
			descriptors: []*TypeDescriptor{{
				Name: "UnknownRelated",
				Params: []Param{
					{Name: "id", Tags: []Tag{Identifier{}}},
					{Name: "others", Tags: []Tag{ObjectCollection{Type: "Missing"}}, Link: linkNothing},
				},
				Construct: constructNothing,
			}},
			root:          "UnknownRelated",
			expectMessage: "Missing is not a valid type name",
		},
		{
			descriptors: []*TypeDescriptor{{
				Name:      "BadNameRule",
				Tags:      []Tag{NameRule{}},
				Params:    []Param{{Name: "id", Tags: []Tag{Identifier{}}}},
				Construct: constructNothing,
			}},
			root:          "BadNameRule",
			expectMessage: `type "BadNameRule": invalid name rule: neither a column prefix nor snake casing specified`,
		},
		{
			descriptors: []*TypeDescriptor{{
				Name:      "TwoNameRules",
				Tags:      []Tag{NameRule{ColumnPrefix: "a_"}, NameRule{ColumnPrefix: "b_"}},
				Params:    []Param{{Name: "id", Tags: []Tag{Identifier{}}}},
				Construct: constructNothing,
			}},
			root:          "TwoNameRules",
			expectMessage: `type "TwoNameRules" has more than one name rule`,
		},
		{
			descriptors: []*TypeDescriptor{{
				Name:      "BadTypeTag",
				Tags:      []Tag{Column{Name: "foo"}},
				Params:    []Param{{Name: "id", Tags: []Tag{Identifier{}}}},
				Construct: constructNothing,
			}},
			root:          "BadTypeTag",
			expectMessage: `type "BadTypeTag": tag flatmapper.Column cannot be used as a type tag`,
		},
		{
			descriptors: []*TypeDescriptor{{
				Name:      "BadParamTag",
				Params:    []Param{{Name: "id", Tags: []Tag{Identifier{}, NameRule{ColumnPrefix: "x_"}}}},
				Construct: constructNothing,
			}},
			root:          "BadParamTag",
			expectMessage: `type "BadParamTag" param "id": tag flatmapper.NameRule cannot be used as a param tag`,
		},
		{
			descriptors: []*TypeDescriptor{{
				Name: "EmptyCollectionType",
				Params: []Param{
					{Name: "id", Tags: []Tag{Identifier{}}},
					{Name: "others", Tags: []Tag{ObjectCollection{}}, Link: linkNothing},
				},
				Construct: constructNothing,
			}},
			root:          "EmptyCollectionType",
			expectMessage: `type "EmptyCollectionType" param "others": object collection requires a type name`,
		},
	}
	for i, tc := range testCases {
		t.Run(fmt.Sprintf("[%d]%s", i+1, tc.root), func(t *testing.T) {
			r := MustNewRegistry(tc.descriptors...)
			_, err := buildPlan(r, tc.root, !tc.noValidate)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrMappingCreation))
			require.Equal(t, "an error occurred during mapping creation: "+tc.expectMessage, err.Error())
		})
	}
}

func TestBuildPlan_ValidationOff(t *testing.T) {
	r := MustNewRegistry(
		&TypeDescriptor{
			Name:      "NoIdentifier",
			Params:    []Param{{Name: "id"}},
			Construct: constructNothing,
		},
		&TypeDescriptor{
			Name: "ReadOnlyRoot",
			Params: []Param{
				{Name: "id", Tags: []Tag{Identifier{}}},
				{Name: "values", Tags: []Tag{ScalarCollection{Column: "value"}}},
			},
			Construct: constructNothing,
			ReadOnly:  true,
		},
	)
	p, err := buildPlan(r, "NoIdentifier", false)
	require.NoError(t, err)
	require.Equal(t, "", p.Types[0].IdentifierColumn)

	_, err = buildPlan(r, "ReadOnlyRoot", false)
	require.NoError(t, err)

	m := MustNewMapper(r, ValidateMapping(false))
	_, err = m.Map(ctx, "NoIdentifier", []Row{{"id": 1}})
	require.Error(t, err)
	require.Equal(t, "an error occurred during mapping: identifier not found: ", err.Error())
}

func TestBuildPlan_ReadOnlyScalarType(t *testing.T) {
	r := MustNewRegistry(&TypeDescriptor{
		Name:      "Scalar",
		Params:    []Param{{Name: "id", Tags: []Tag{Identifier{}}}, {Name: "value"}},
		Construct: constructNothing,
		ReadOnly:  true,
	})
	_, err := buildPlan(r, "Scalar", true)
	require.NoError(t, err)
}

type failingReader struct{}

func (f failingReader) Describe(typeName string) (*TypeDescriptor, error) {
	if typeName == "Nil" {
		return nil, nil
	}
	return nil, errors.New("fooey")
}

func TestBuildPlan_ReaderErrors(t *testing.T) {
	_, err := buildPlan(failingReader{}, "Foo", true)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMappingCreation))
	require.Equal(t, `an error occurred during mapping creation: cannot describe type "Foo": fooey`, err.Error())

	_, err = buildPlan(failingReader{}, "Nil", true)
	require.Error(t, err)
	require.Equal(t, "an error occurred during mapping creation: Nil is not a valid type name", err.Error())
}

func TestPlan_MarshalJSON(t *testing.T) {
	p, err := buildPlan(testRegistry(t), "ColumnArray", true)
	require.NoError(t, err)
	data, err := json.Marshal(p)
	require.NoError(t, err)
	const expect = `{"root":"ColumnArray","types":[{"name":"ColumnArray","identifier":"object1_id","fields":[` +
		`{"name":"id","column":"object1_id","kind":"scalar"},` +
		`{"name":"name","column":"object1_name","kind":"scalar"},` +
		`{"name":"objects","column":"object2_id","kind":"scalar-collection"}]}]}`
	require.Equal(t, expect, string(data))
}

func TestRelationKind_String(t *testing.T) {
	require.Equal(t, "scalar", ScalarField.String())
	require.Equal(t, "scalar-collection", ScalarCollectionField.String())
	require.Equal(t, "object-collection", ObjectCollectionField.String())
	require.Equal(t, "RelationKind(9)", RelationKind(9).String())
}
