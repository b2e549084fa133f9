package manifest

import "fmt"

var stdlibExtensionsPolicies = map[string]bool{
	"minimal":      true,
	"all":          true,
	"no-libraries": true,
}

// Validate checks that every rule's Type is known and carries the fields
// its variant requires, without consulting a distribution (that happens
// during resolution, where a missing extension/variant is a distinct,
// later failure).
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	for i, rule := range cfg.Rules {
		if !knownRuleTypes[rule.Type] {
			result.AddError(&ValidationError{
				Field:   fmt.Sprintf("rules[%d].type", i),
				Value:   string(rule.Type),
				Message: "unknown packaging rule type",
			})
			continue
		}

		switch rule.Type {
		case RuleStdlibExtensionsPolicy:
			if !stdlibExtensionsPolicies[rule.Policy] {
				result.AddError(&ValidationError{
					Field:   fmt.Sprintf("rules[%d].policy", i),
					Value:   rule.Policy,
					Message: `must be one of "minimal", "all", "no-libraries"`,
				})
			}
		case RuleStdlibExtensionsExplicitIncludes, RuleStdlibExtensionsExplicitExcludes:
			if len(rule.Names) == 0 {
				result.AddError(&ValidationError{
					Field:   fmt.Sprintf("rules[%d].names", i),
					Message: "must be non-empty",
				})
			}
		case RuleStdlibExtensionVariant:
			if rule.Extension == "" || rule.Variant == "" {
				result.AddError(&ValidationError{
					Field:   fmt.Sprintf("rules[%d]", i),
					Message: "stdlib_extension_variant requires both extension and variant",
				})
			}
		case RuleVirtualenv, RulePackageRoot:
			if rule.Path == "" {
				result.AddError(&ValidationError{
					Field:   fmt.Sprintf("rules[%d].path", i),
					Message: "must be set",
				})
			}
			if rule.Type == RulePackageRoot && len(rule.Packages) == 0 {
				result.AddError(&ValidationError{
					Field:   fmt.Sprintf("rules[%d].packages", i),
					Message: "must be non-empty",
				})
			}
		case RulePipInstallSimple:
			if rule.Package == "" {
				result.AddError(&ValidationError{
					Field:   fmt.Sprintf("rules[%d].package", i),
					Message: "must be set",
				})
			}
		case RuleFilterFileInclude:
			if rule.Path == "" {
				result.AddError(&ValidationError{
					Field:   fmt.Sprintf("rules[%d].path", i),
					Message: "must be set",
				})
			}
		case RuleFilterFilesInclude:
			if rule.Glob == "" {
				result.AddError(&ValidationError{
					Field:   fmt.Sprintf("rules[%d].glob", i),
					Message: "must be set",
				})
			}
		}
	}

	if cfg.Python.ProgramName == "" {
		result.AddError(&ValidationError{
			Field:   "python.program_name",
			Message: "must be set",
		})
	}

	switch cfg.Python.Run.Kind {
	case RunRepl:
	case RunModule:
		if cfg.Python.Run.Module == "" {
			result.AddError(&ValidationError{Field: "python.run.module", Message: "required when mode is module"})
		}
	case RunEval:
		if cfg.Python.Run.Code == "" {
			result.AddError(&ValidationError{Field: "python.run.code", Message: "required when mode is eval"})
		}
	default:
		result.AddError(&ValidationError{
			Field:   "python.run.mode",
			Value:   string(cfg.Python.Run.Kind),
			Message: `must be one of "repl", "module", "eval"`,
		})
	}

	return result
}
