// Command pyrepack runs the repackaging engine from the context of a
// build script, the Go equivalent of run_from_build: it resolves a
// config file, loads the configured Python distribution, and writes the
// embedded-interpreter artifacts and build-script directives.
//
// CLI parsing and the Starlark/TOML front-end are out of scope for this
// repository; this binary only reads the documented env var contract
// and pkg/manifest's YAML convenience format, both already in scope.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/replicate/pyrepack/pkg/distro"
	"github.com/replicate/pyrepack/pkg/engine"
	"github.com/replicate/pyrepack/pkg/manifest"
	"github.com/replicate/pyrepack/pkg/util/console"
)

// buildScriptPath is the Go equivalent of the build_script argument
// run_from_build takes from Cargo's file!() macro: the source file of the
// entry point driving this run, emitted as a rerun-if-changed directive.
const buildScriptPath = "cmd/pyrepack/main.go"

func main() {
	if err := run(); err != nil {
		console.Errorf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	host := os.Getenv("HOST")
	if host == "" {
		return fmt.Errorf("HOST not defined")
	}
	target := os.Getenv("TARGET")
	if target == "" {
		return fmt.Errorf("TARGET not defined")
	}
	optLevel := os.Getenv("OPT_LEVEL")
	if optLevel == "" {
		optLevel = "0"
	}

	outDir := os.Getenv("OUT_DIR")
	if outDir == "" {
		return fmt.Errorf("OUT_DIR not defined")
	}
	console.Debugf("host=%s target=%s opt_level=%s", host, target, optLevel)

	configPath, err := resolveConfigPath(target)
	if err != nil {
		return err
	}

	distributionPath := os.Getenv("PYREPACK_DISTRIBUTION_JSON")
	if distributionPath == "" {
		return fmt.Errorf("PYREPACK_DISTRIBUTION_JSON not defined (archive resolution is an external collaborator; point this at a pre-parsed distribution descriptor)")
	}

	console.Infof("processing config file %s", configPath)
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	console.Infof("resolving Python distribution from %s", distributionPath)
	dist, err := distro.LoadJSON(distributionPath)
	if err != nil {
		return err
	}

	buildDir := outDir
	if bd := os.Getenv("PYREPACK_BUILD_DIR"); bd != "" {
		buildDir = bd
	}

	orch := &engine.Orchestrator{
		Config:          cfg,
		Distribution:    dist,
		TargetOS:        hostOSFromTriple(target),
		BuildDir:        buildDir,
		OutDir:          outDir,
		ConfigPath:      configPath,
		BuildScriptPath: buildScriptPath,
		OptLevel:        optLevel,
		ShowProgress:    console.IsTTY(os.Stderr),
	}

	result, err := orch.Run()
	if err != nil {
		return err
	}

	for _, line := range result.Directives {
		fmt.Println(line)
	}
	console.Infof("wrote runtime config to %s", result.RuntimeConfigPath)
	console.Infof("wrote libpython to %s", result.LibpythonPath)

	return nil
}

// resolveConfigPath implements the env var contract: an explicit
// PYOXIDIZER_CONFIG override wins; otherwise it searches ancestors of
// CARGO_MANIFEST_DIR for "pyrepack.<target>.yaml", the Go equivalent of
// find_pyoxidizer_config_file.
func resolveConfigPath(target string) (string, error) {
	if configEnv := os.Getenv("PYOXIDIZER_CONFIG"); configEnv != "" {
		console.Infof("using config file from PYOXIDIZER_CONFIG: %s", configEnv)
		return configEnv, nil
	}

	manifestDir := os.Getenv("CARGO_MANIFEST_DIR")
	if manifestDir == "" {
		return "", fmt.Errorf("CARGO_MANIFEST_DIR not defined")
	}

	return manifest.FindConfigFile(manifestDir, target)
}

func loadConfig(path string) (*manifest.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	result, err := manifest.Load(f)
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

// hostOSFromTriple extracts the targetdata OS key ("linux", "macos",
// "windows") from a Rust-style target triple (e.g.
// "x86_64-unknown-linux-gnu"), the same triples the HOST/TARGET env
// vars carry in the original Cargo build-script contract this repo's
// env var handling preserves.
func hostOSFromTriple(triple string) string {
	switch {
	case strings.Contains(triple, "linux"):
		return "linux"
	case strings.Contains(triple, "windows"):
		return "windows"
	case strings.Contains(triple, "apple") || strings.Contains(triple, "darwin"):
		return "macos"
	default:
		return "linux"
	}
}
