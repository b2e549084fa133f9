package manifest

import (
	"io"

	"gopkg.in/yaml.v2"
)

// Parse unmarshals a YAML document into a Config. It does not validate
// semantic correctness; call Validate afterward.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Filename: "<reader>", Err: err}
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ParseError{Filename: "<reader>", Err: err}
	}
	return cfg, nil
}
