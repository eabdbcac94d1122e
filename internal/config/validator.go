package config

import (
	"fmt"
	"strings"

	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/arch"
	"github.com/coral-mesh/dwarf-type-reader/pkg/dwarfinfo/document"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}

	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		builder.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}

var (
	logLevels  = []string{"trace", "debug", "info", "warn", "error"}
	logFormats = []string{"auto", "pretty", "json"}
)

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errors []ValidationError

	if c.Extract.Arch != "" {
		if _, ok := arch.Lookup(c.Extract.Arch); !ok {
			errors = append(errors, ValidationError{
				Field:   "extract.arch",
				Message: fmt.Sprintf("unknown architecture %q (supported: %s)", c.Extract.Arch, strings.Join(arch.Names(), ", ")),
			})
		}
	}

	switch c.Extract.PointerSize {
	case 0, 4, 8:
	default:
		errors = append(errors, ValidationError{
			Field:   "extract.pointer_size",
			Message: "pointer size must be 4 or 8",
		})
	}

	if c.Extract.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "extract.workers",
			Message: "workers must be at least 1",
		})
	}

	if c.Extract.MaxEntries < 0 {
		errors = append(errors, ValidationError{
			Field:   "extract.max_entries",
			Message: "max entries must not be negative",
		})
	}

	if _, err := document.ParseFormat(c.Output.Format); err != nil {
		errors = append(errors, ValidationError{
			Field:   "output.format",
			Message: err.Error(),
		})
	}

	if c.Output.PerFile && c.Output.Path != "" {
		errors = append(errors, ValidationError{
			Field:   "output.path",
			Message: "output path cannot be combined with per-file output",
		})
	}

	if !contains(logLevels, c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of %s", strings.Join(logLevels, ", ")),
		})
	}

	if !contains(logFormats, c.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of %s", strings.Join(logFormats, ", ")),
		})
	}

	if c.Watch.Debounce < 0 {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce",
			Message: "debounce must not be negative",
		})
	}

	if len(errors) > 0 {
		return &MultiValidationError{Errors: errors}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
