package config

import (
	"strings"
	"testing"
)

func TestValidate_CatchesBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"interval too small", func(c *Config) { c.Supervision.IntervalMs = 10 }, "supervision.interval_ms"},
		{"interval too large", func(c *Config) { c.Supervision.IntervalMs = 100_000 }, "supervision.interval_ms"},
		{"zero parallelism", func(c *Config) { c.Supervision.MaxParallel = 0 }, "supervision.max_parallel"},
		{"zero grace ticks", func(c *Config) { c.Supervision.GraceTicks = 0 }, "supervision.grace_ticks"},
		{"zero observation ticks", func(c *Config) { c.Supervision.ObservationTicks = 0 }, "supervision.observation_ticks"},
		{"negative idle ticks", func(c *Config) { c.Supervision.IdleTicks = -1 }, "supervision.idle_ticks"},
		{"zero unrecoverable threshold", func(c *Config) { c.Supervision.UnrecoverableThreshold = 0 }, "supervision.unrecoverable_threshold"},
		{"tiny query timeout", func(c *Config) { c.Backend.QueryTimeoutMs = 1 }, "backend.query_timeout_ms"},
		{"zero max depth", func(c *Config) { c.Backend.MaxDepth = 0 }, "backend.max_depth"},
		{"zero ceiling", func(c *Config) { c.Rules.Ceiling = 0 }, "rules.ceiling"},
		{"margin above ceiling", func(c *Config) { c.Rules.WarnMargin = 30 }, "rules.warn_margin"},
		{"empty bundle id", func(c *Config) { c.Apps.BundleIDs = []string{" "} }, "apps.bundle_ids[0]"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"zero history size", func(c *Config) { c.History.Size = 0 }, "history.size"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			errs := cfg.Validate()
			if len(errs) == 0 {
				t.Fatal("expected a validation error")
			}
			found := false
			for _, e := range errs {
				if e.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for field %s in %v", tc.field, ValidationErrors(errs))
			}
		})
	}
}

func TestValidationErrors_ErrorFormat(t *testing.T) {
	errs := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("Error() = %q, want a count header", msg)
	}
	if !strings.Contains(msg, "a: bad (got: 1)") {
		t.Errorf("Error() = %q, want the first error inline", msg)
	}

	one := ValidationErrors{{Field: "a", Value: 1, Message: "bad"}}
	if one.Error() != "a: bad (got: 1)" {
		t.Errorf("single error format = %q", one.Error())
	}
}
