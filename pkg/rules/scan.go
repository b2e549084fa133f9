package rules

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/replicate/pyrepack/pkg/repackerr"
)

// scanSourceTree walks root and returns every ".py" file found,
// keyed by its derived dotted module name. Only Source-classified files
// contribute here; bytecode caches and data files under the same tree
// are not resources this scan produces (a PackageRoot/Virtualenv rule
// only ever stages fresh source, never a stale .pyc).
func scanSourceTree(root string) (map[string]string, error) {
	modules := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".py" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		name := sourceModuleName(rel)
		if name == "" {
			return nil
		}
		modules[name] = path
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &DistributionError{Message: "scan root " + root + " does not exist"}
		}
		return nil, repackerr.NewIoError("walk", root, err)
	}

	return modules, nil
}

// sourceModuleName derives a dotted module name from a path relative to a
// scan root: "/" becomes ".", and a trailing "__init__.py" collapses to
// the enclosing package's name rather than contributing its own segment.
func sourceModuleName(rel string) string {
	rel = filepath.ToSlash(rel)
	rel = strings.TrimSuffix(rel, ".py")

	if rel == "__init__" {
		return ""
	}
	rel = strings.TrimSuffix(rel, "/__init__")

	return strings.ReplaceAll(rel, "/", ".")
}

// sortedKeys returns the keys of a string-keyed map in ascending order,
// the iteration order every component here must use.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
