package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/guardflow/validator"
)

// Document is a schema plus the initial prompt material, as authored in YAML.
type Document struct {
	Tree         *Tree
	Instructions string
	Prompt       string
	NumReasks    *int
}

type documentSpec struct {
	Instructions string   `yaml:"instructions"`
	Prompt       string   `yaml:"prompt"`
	NumReasks    *int     `yaml:"num_reasks"`
	Output       nodeSpec `yaml:"output"`
}

type nodeSpec struct {
	Name          string          `yaml:"name"`
	Type          string          `yaml:"type"`
	Format        string          `yaml:"format"`
	Description   string          `yaml:"description"`
	Optional      bool            `yaml:"optional"`
	Fields        []nodeSpec      `yaml:"fields"`
	Items         *nodeSpec       `yaml:"items"`
	Discriminator string          `yaml:"discriminator"`
	Cases         []nodeSpec      `yaml:"cases"`
	Validators    []validatorSpec `yaml:"validators"`
	MetadataKeys  []string        `yaml:"metadata_keys"`
}

type validatorSpec struct {
	ID     string         `yaml:"id"`
	OnFail string         `yaml:"on_fail"`
	Args   map[string]any `yaml:"args"`
}

// LoadYAML builds a tree from a YAML node description.
//
//	type: object
//	fields:
//	  - name: pizza
//	    type: string
//	    validators:
//	      - id: two-words
//	        on_fail: reask
func LoadYAML(data []byte, reg *validator.Registry) (*Tree, error) {
	var spec nodeSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse schema yaml: %w", err)
	}
	root, err := spec.toNode()
	if err != nil {
		return nil, err
	}
	return Build(root, reg)
}

// LoadDocument parses a YAML document with instructions, prompt and output schema.
func LoadDocument(data []byte, reg *validator.Registry) (*Document, error) {
	var spec documentSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse document yaml: %w", err)
	}
	root, err := spec.Output.toNode()
	if err != nil {
		return nil, err
	}
	tree, err := Build(root, reg)
	if err != nil {
		return nil, err
	}
	return &Document{
		Tree:         tree,
		Instructions: spec.Instructions,
		Prompt:       spec.Prompt,
		NumReasks:    spec.NumReasks,
	}, nil
}

// LoadDocumentFile reads and parses a YAML document file.
func LoadDocumentFile(path string, reg *validator.Registry) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return LoadDocument(data, reg)
}

func (s nodeSpec) toNode() (*Node, error) {
	var n *Node
	switch s.Type {
	case "object":
		n = Object(s.Name)
		for _, f := range s.Fields {
			child, err := f.toNode()
			if err != nil {
				return nil, err
			}
			n.Fields = append(n.Fields, child)
		}
	case "list":
		if s.Items == nil {
			return nil, fmt.Errorf("list %q: items is required", s.Name)
		}
		elem, err := s.Items.toNode()
		if err != nil {
			return nil, err
		}
		n = List(s.Name, elem)
	case "choice":
		n = Choice(s.Name, s.Discriminator)
		for _, c := range s.Cases {
			c.Type = "object"
			cn, err := c.toNode()
			if err != nil {
				return nil, err
			}
			n.Cases = append(n.Cases, cn)
		}
	case "":
		return nil, fmt.Errorf("node %q: type is required", s.Name)
	default:
		n = scalar(s.Name, ScalarType(s.Type))
	}

	n.Format = s.Format
	n.Description = s.Description
	n.Optional = s.Optional
	n.MetadataKeys = s.MetadataKeys
	for _, v := range s.Validators {
		n.WithValidator(v.ID, validator.OnFail(v.OnFail), v.Args)
	}
	return n, nil
}
