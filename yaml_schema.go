package flatmapper

import (
	"errors"
	"fmt"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"path/filepath"
)

// yamlSchema is the YAML representation of a set of record types
type yamlSchema struct {
	Types []yamlType `yaml:"types"`
}

type yamlType struct {
	Name string `yaml:"name"`
	// Identifier is a type level identifier column
	Identifier string         `yaml:"identifier,omitempty"`
	NameRule   map[string]any `yaml:"name_rule,omitempty"`
	ReadOnly   bool           `yaml:"read_only,omitempty"`
	Params     []yamlParam    `yaml:"params"`
}

type yamlParam struct {
	Name       string `yaml:"name"`
	Identifier bool   `yaml:"identifier,omitempty"`
	Column     string `yaml:"column,omitempty"`
	Objects    string `yaml:"objects,omitempty"`
	Scalars    string `yaml:"scalars,omitempty"`
}

// ReadYAMLSchema reads record type descriptors from YAML
//
// e.g.
//
//	types:
//	  - name: Author
//	    name_rule: {column_prefix: author_}
//	    params:
//	      - {name: id, identifier: true}
//	      - {name: name}
//	      - {name: books, objects: Book}
//
// unknown keys are rejected
func ReadYAMLSchema(r io.Reader) ([]*TypeDescriptor, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var ys yamlSchema
	if err := dec.Decode(&ys); err != nil && !errors.Is(err, io.EOF) {
		return nil, newCreationError("", "parsing schema", err)
	}
	result := make([]*TypeDescriptor, 0, len(ys.Types))
	for _, yt := range ys.Types {
		d, err := yt.descriptor()
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, nil
}

func (yt yamlType) descriptor() (*TypeDescriptor, error) {
	if yt.Name == "" {
		return nil, newCreationError("", "schema type without a name", nil)
	}
	var tags []Tag
	if yt.Identifier != "" {
		tags = append(tags, Identifier{Column: yt.Identifier})
	}
	if yt.NameRule != nil {
		rule, err := ParseNameRule(yt.NameRule)
		if err != nil {
			return nil, newCreationError(yt.Name, fmt.Sprintf("type %q", yt.Name), err)
		}
		tags = append(tags, rule)
	}
	params := make([]Param, 0, len(yt.Params))
	for _, yp := range yt.Params {
		if yp.Name == "" {
			return nil, newCreationError(yt.Name, fmt.Sprintf("type %q has a param without a name", yt.Name), nil)
		}
		var ptags []Tag
		switch {
		case yp.Objects != "" && yp.Scalars != "":
			return nil, newCreationError(yt.Name, fmt.Sprintf("type %q param %q cannot be both an object and a scalar collection", yt.Name, yp.Name), nil)
		case yp.Objects != "":
			ptags = append(ptags, ObjectCollection{Type: yp.Objects})
		case yp.Scalars != "":
			ptags = append(ptags, ScalarCollection{Column: yp.Scalars})
		}
		if yp.Identifier {
			ptags = append(ptags, Identifier{Column: yp.Column})
		} else if yp.Column != "" {
			ptags = append(ptags, Column{Name: yp.Column})
		}
		params = append(params, Param{Name: yp.Name, Tags: ptags})
	}
	d := RecordDescriptor(yt.Name, tags, params...)
	d.ReadOnly = yt.ReadOnly
	return d, nil
}

// LoadYAML reads record type descriptors from YAML (see ReadYAMLSchema) and registers them
func (r *Registry) LoadYAML(reader io.Reader) error {
	descriptors, err := ReadYAMLSchema(reader)
	if err != nil {
		return err
	}
	for _, d := range descriptors {
		if err = r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// LoadYAMLFile is the same as LoadYAML, reading from the given file
func (r *Registry) LoadYAMLFile(path string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("reading schema file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return r.LoadYAML(f)
}
