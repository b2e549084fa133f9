package manifest

import "fmt"

// ConfigError is the base interface for all manifest errors, so callers
// can errors.As to recover manifest-specific detail. It corresponds to
// the engine-wide ConfigError taxonomy entry for malformed rule values.
type ConfigError interface {
	error
	ConfigError()
}

// ParseError indicates the YAML document could not be parsed.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) ConfigError() {}

// ValidationError indicates a semantically invalid rule: an unknown
// RuleType, a missing required field for the given Type, or a
// StdlibExtensionsPolicy value outside {minimal, all, no-libraries}.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) ConfigError() {}

// ValidationResult accumulates every validation error found in one pass.
type ValidationResult struct {
	Errors []error
}

func (r *ValidationResult) HasErrors() bool { return len(r.Errors) > 0 }

func (r *ValidationResult) AddError(err error) { r.Errors = append(r.Errors, err) }

func (r *ValidationResult) Err() error {
	if !r.HasErrors() {
		return nil
	}
	joined := r.Errors[0]
	for _, e := range r.Errors[1:] {
		joined = fmt.Errorf("%w; %w", joined, e)
	}
	return joined
}
