package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// recognizedProviders is the set of valid generator provider names.
var recognizedProviders = map[string]bool{
	"openai": true,
	"ollama": true,
}

// Validate checks a Config for structural and semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	p := cfg.Project
	if p.Root == "" {
		errs = append(errs, ValidationError{Field: "project.root", Message: "is required"})
	}
	if strings.TrimSpace(p.TestCommand) == "" {
		errs = append(errs, ValidationError{Field: "project.test_command", Message: "is required"})
	}
	validateDuration("project.test_timeout", p.TestTimeout, &errs)
	if p.MaxOutput < 0 {
		errs = append(errs, ValidationError{Field: "project.max_output", Message: "must not be negative"})
	}

	pl := cfg.Pipeline
	if pl.MaxRetries < 1 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.max_retries",
			Message: fmt.Sprintf("must be at least 1, got %d", pl.MaxRetries),
		})
	}
	for i, r := range pl.Requirements {
		if strings.TrimSpace(r) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pipeline.requirements[%d]", i),
				Message: "must not be empty",
			})
		}
	}

	g := cfg.Generator
	if !recognizedProviders[g.Provider] {
		errs = append(errs, ValidationError{
			Field:   "generator.provider",
			Message: fmt.Sprintf("unrecognized provider %q", g.Provider),
		})
	}
	if g.Model == "" {
		errs = append(errs, ValidationError{Field: "generator.model", Message: "is required"})
	}
	if g.Temperature < 0 || g.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "generator.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %g", g.Temperature),
		})
	}
	validateDuration("generator.timeout", g.Timeout, &errs)
	if g.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "generator.rate_limit", Message: "must not be negative"})
	}
	if g.MaxTransportRetries < 0 {
		errs = append(errs, ValidationError{Field: "generator.max_transport_retries", Message: "must not be negative"})
	}

	return errs
}

func validateDuration(field, value string, errs *[]ValidationError) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration %q", value),
		})
		return
	}
	if d <= 0 {
		*errs = append(*errs, ValidationError{Field: field, Message: "must be positive"})
	}
}
