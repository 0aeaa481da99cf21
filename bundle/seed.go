package bundle

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type seedFile struct {
	Bundles []*Bundle `yaml:"bundles"`
}

// defaultBundles returns the documented default bundle set used to seed
// an empty store.
func defaultBundles() ([]*Bundle, error) {
	var f seedFile
	if err := yaml.Unmarshal(defaultsYAML, &f); err != nil {
		return nil, fmt.Errorf("parse default bundles: %w", err)
	}
	return f.Bundles, nil
}
