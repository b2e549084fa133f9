package manifest

import (
	"fmt"
	"path/filepath"

	"github.com/replicate/pyrepack/pkg/util/files"
)

const maxSearchDepth = 100

// FindConfigFile searches ancestors of startDir for "pyrepack.<target>.yaml",
// the Go equivalent of find_pyoxidizer_config_file's
// "pyoxidizer.<target>.toml" ancestor search. It is only consulted when
// the caller has not been given an explicit override (PYOXIDIZER_CONFIG
// in the original env var contract, see cmd/pyrepack).
func FindConfigFile(startDir, target string) (string, error) {
	filename := fmt.Sprintf("pyrepack.%s.yaml", target)

	dir := startDir
	for range maxSearchDepth {
		candidate := filepath.Join(dir, filename)
		exists, err := files.Exists(candidate)
		if err != nil {
			return "", fmt.Errorf("scanning %s for %s: %w", dir, filename, err)
		}
		if exists {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found in %s or any parent directory", filename, startDir)
}
