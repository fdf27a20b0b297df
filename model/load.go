package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stevemurr/docadapter/adapter"
)

// DefaultKey names the NoVersion rules in a models file.
const DefaultKey = "default"

type file struct {
	Versions map[string]Rules `yaml:"versions"`
}

// Parse builds a Registry from a YAML models document:
//
//	versions:
//	  default:
//	    schema: {type: object, required: [name]}
//	    hidden: [password]
//	  "2":
//	    readOnly: [_id]
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse models: %w", err)
	}
	r := NewRegistry()
	for key, rules := range f.Versions {
		version := adapter.Version(key)
		if key == DefaultKey {
			version = adapter.NoVersion
		}
		r.Register(version, rules)
	}
	return r, nil
}

// LoadFile reads a models document from path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read models: %w", err)
	}
	return Parse(data)
}
