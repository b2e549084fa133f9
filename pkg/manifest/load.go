package manifest

import "io"

// LoadResult carries a parsed, validated Config.
type LoadResult struct {
	Config *Config
}

// Load parses then validates a config from r, returning a joined error
// from Validate if anything fails. There is no separate Complete step:
// packaging rules need no CUDA/requirements-file resolution pass.
func Load(r io.Reader) (*LoadResult, error) {
	cfg, err := Parse(r)
	if err != nil {
		return nil, err
	}

	result := Validate(cfg)
	if result.HasErrors() {
		return nil, result.Err()
	}

	return &LoadResult{Config: cfg}, nil
}
