package distro

import (
	"encoding/json"
	"os"

	"github.com/replicate/pyrepack/pkg/repackerr"
)

// LoadJSON reads a Distribution from a JSON file at path. This is a
// cmd/-convenience loader only: archive extraction of the
// actual distribution tarball as an external collaborator, so a real
// build would hand this package an already-parsed Distribution directly
// rather than go through this file format. JSON (not the engine's own
// YAML manifest format) is used here because Distribution's maps don't
// need the ordered-rule-list ergonomics pkg/manifest's YAML tags serve.
func LoadJSON(path string) (*Distribution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, repackerr.NewIoError("read", path, err)
	}

	var d Distribution
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, &DistributionError{Message: "parsing " + path + ": " + err.Error()}
	}

	return &d, nil
}
