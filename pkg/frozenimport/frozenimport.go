// Package frozenimport implements the frozen-importlib deriver:
// reads the two importlib bootstrap sources, appends the in-memory
// import hook to the external one, and compiles both under the frozen
// module names the runtime loader expects so that tracebacks report the
// conventional "<frozen importlib._bootstrap>" filenames.
package frozenimport

import (
	_ "embed"
	"os"

	"github.com/replicate/pyrepack/pkg/bytecode"
	"github.com/replicate/pyrepack/pkg/distro"
	"github.com/replicate/pyrepack/pkg/repackerr"
)

//go:embed importer_shim.py.tmpl
var importerShimSource []byte

const (
	bootstrapModuleName         = "<frozen importlib._bootstrap>"
	bootstrapExternalModuleName = "<frozen importlib._bootstrap_external>"
	shimMarker                  = "\n# --- pyrepack in-memory import hook ---\n"
)

// Output carries both bootstrap modules' source and compiled bytecode,
// ready to be embedded as two of the four blobs in the runtime-config
// literal.
type Output struct {
	BootstrapSource           []byte
	BootstrapBytecode         []byte
	BootstrapExternalSource   []byte
	BootstrapExternalBytecode []byte
}

// Derive reads importlib._bootstrap and importlib._bootstrap_external
// from the distribution's py_modules, appends the shim to the external
// module, and compiles both at optimize level 0.
func Derive(d *distro.Distribution, compiler *bytecode.Compiler) (*Output, error) {
	bootstrapPath, ok := d.PyModules["importlib._bootstrap"]
	if !ok {
		return nil, &distro.DistributionError{Message: "distribution is missing importlib._bootstrap"}
	}
	externalPath, ok := d.PyModules["importlib._bootstrap_external"]
	if !ok {
		return nil, &distro.DistributionError{Message: "distribution is missing importlib._bootstrap_external"}
	}

	bootstrapSource, err := os.ReadFile(bootstrapPath)
	if err != nil {
		return nil, repackerr.NewIoError("read", bootstrapPath, err)
	}

	externalBase, err := os.ReadFile(externalPath)
	if err != nil {
		return nil, repackerr.NewIoError("read", externalPath, err)
	}

	externalSource := append(append(append([]byte{}, externalBase...), []byte(shimMarker)...), importerShimSource...)

	results, err := compiler.CompileBatch([]bytecode.Request{
		{Name: bootstrapModuleName, Source: bootstrapSource, OptimizeLevel: 0},
		{Name: bootstrapExternalModuleName, Source: externalSource, OptimizeLevel: 0},
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		BootstrapSource:           bootstrapSource,
		BootstrapBytecode:         results[0].Bytecode,
		BootstrapExternalSource:   externalSource,
		BootstrapExternalBytecode: results[1].Bytecode,
	}, nil
}
