package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // The config field path (e.g., "supervision.interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSupervision()...)
	errors = append(errors, c.validateBackend()...)
	errors = append(errors, c.validateRules()...)
	errors = append(errors, c.validateApps()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateHistory()...)

	return errors
}

// validateSupervision validates the SupervisionConfig.
func (c *Config) validateSupervision() []ValidationError {
	var errors []ValidationError

	const minIntervalMs = 100
	const maxIntervalMs = 60_000

	if c.Supervision.IntervalMs < minIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "supervision.interval_ms",
			Value:   c.Supervision.IntervalMs,
			Message: fmt.Sprintf("must be at least %dms", minIntervalMs),
		})
	}
	if c.Supervision.IntervalMs > maxIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "supervision.interval_ms",
			Value:   c.Supervision.IntervalMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxIntervalMs),
		})
	}

	const minParallel = 1
	const maxParallel = 32
	if c.Supervision.MaxParallel < minParallel {
		errors = append(errors, ValidationError{
			Field:   "supervision.max_parallel",
			Value:   c.Supervision.MaxParallel,
			Message: fmt.Sprintf("must be at least %d", minParallel),
		})
	}
	if c.Supervision.MaxParallel > maxParallel {
		errors = append(errors, ValidationError{
			Field:   "supervision.max_parallel",
			Value:   c.Supervision.MaxParallel,
			Message: fmt.Sprintf("exceeds maximum of %d", maxParallel),
		})
	}

	if c.Supervision.GraceTicks < 1 {
		errors = append(errors, ValidationError{
			Field:   "supervision.grace_ticks",
			Value:   c.Supervision.GraceTicks,
			Message: "must be at least 1",
		})
	}
	if c.Supervision.ObservationTicks < 1 {
		errors = append(errors, ValidationError{
			Field:   "supervision.observation_ticks",
			Value:   c.Supervision.ObservationTicks,
			Message: "must be at least 1",
		})
	}
	if c.Supervision.IdleTicks < 0 {
		errors = append(errors, ValidationError{
			Field:   "supervision.idle_ticks",
			Value:   c.Supervision.IdleTicks,
			Message: "must be non-negative (0 disables idle detection)",
		})
	}
	if c.Supervision.UnrecoverableThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "supervision.unrecoverable_threshold",
			Value:   c.Supervision.UnrecoverableThreshold,
			Message: "must be at least 1",
		})
	}
	if c.Supervision.RemovalGraceTicks < 1 {
		errors = append(errors, ValidationError{
			Field:   "supervision.removal_grace_ticks",
			Value:   c.Supervision.RemovalGraceTicks,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateBackend validates the BackendConfig.
func (c *Config) validateBackend() []ValidationError {
	var errors []ValidationError

	const minTimeoutMs = 50
	const maxTimeoutMs = 30_000
	if c.Backend.QueryTimeoutMs < minTimeoutMs {
		errors = append(errors, ValidationError{
			Field:   "backend.query_timeout_ms",
			Value:   c.Backend.QueryTimeoutMs,
			Message: fmt.Sprintf("must be at least %dms", minTimeoutMs),
		})
	}
	if c.Backend.QueryTimeoutMs > maxTimeoutMs {
		errors = append(errors, ValidationError{
			Field:   "backend.query_timeout_ms",
			Value:   c.Backend.QueryTimeoutMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxTimeoutMs),
		})
	}

	const minDepth = 1
	const maxDepth = 50
	if c.Backend.MaxDepth < minDepth {
		errors = append(errors, ValidationError{
			Field:   "backend.max_depth",
			Value:   c.Backend.MaxDepth,
			Message: fmt.Sprintf("must be at least %d", minDepth),
		})
	}
	if c.Backend.MaxDepth > maxDepth {
		errors = append(errors, ValidationError{
			Field:   "backend.max_depth",
			Value:   c.Backend.MaxDepth,
			Message: fmt.Sprintf("exceeds maximum of %d", maxDepth),
		})
	}

	return errors
}

// validateRules validates the RulesConfig.
func (c *Config) validateRules() []ValidationError {
	var errors []ValidationError

	if c.Rules.Ceiling < 1 {
		errors = append(errors, ValidationError{
			Field:   "rules.ceiling",
			Value:   c.Rules.Ceiling,
			Message: "must be at least 1",
		})
	}
	if c.Rules.WarnMargin < 0 {
		errors = append(errors, ValidationError{
			Field:   "rules.warn_margin",
			Value:   c.Rules.WarnMargin,
			Message: "must be non-negative",
		})
	}
	if c.Rules.WarnMargin >= c.Rules.Ceiling && c.Rules.Ceiling >= 1 {
		errors = append(errors, ValidationError{
			Field:   "rules.warn_margin",
			Value:   c.Rules.WarnMargin,
			Message: fmt.Sprintf("must be less than ceiling (%d)", c.Rules.Ceiling),
		})
	}

	return errors
}

// validateApps validates the AppsConfig.
func (c *Config) validateApps() []ValidationError {
	var errors []ValidationError

	for i, id := range c.Apps.BundleIDs {
		if strings.TrimSpace(id) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("apps.bundle_ids[%d]", i),
				Value:   id,
				Message: "bundle identifier cannot be empty",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig.
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validateHistory validates the HistoryConfig.
func (c *Config) validateHistory() []ValidationError {
	var errors []ValidationError

	const maxHistory = 10_000
	if c.History.Size < 1 {
		errors = append(errors, ValidationError{
			Field:   "history.size",
			Value:   c.History.Size,
			Message: "must be at least 1",
		})
	}
	if c.History.Size > maxHistory {
		errors = append(errors, ValidationError{
			Field:   "history.size",
			Value:   c.History.Size,
			Message: fmt.Sprintf("exceeds maximum of %d", maxHistory),
		})
	}

	return errors
}
