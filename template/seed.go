package template

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type seedFile struct {
	Templates []*Template `yaml:"templates"`
}

// defaultTemplates returns the documented default template set used to
// seed an empty store.
func defaultTemplates() ([]*Template, error) {
	var f seedFile
	if err := yaml.Unmarshal(defaultsYAML, &f); err != nil {
		return nil, fmt.Errorf("parse default templates: %w", err)
	}
	return f.Templates, nil
}
