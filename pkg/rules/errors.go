package rules

import "fmt"

// ConfigError reports a malformed rule value: an unknown
// StdlibExtensionsPolicy string, or a StdlibExtensionVariant naming an
// extension or variant the distribution does not have.
type ConfigError struct {
	Rule    string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func (e *ConfigError) ConfigError() {}

// DistributionError reports the distribution itself being unusable for a
// requested rule, e.g. PipInstallSimple without pip available.
type DistributionError struct {
	Message string
}

func (e *DistributionError) Error() string { return e.Message }

func (e *DistributionError) DistributionError() {}
