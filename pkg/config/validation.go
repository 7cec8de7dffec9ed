package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var validate = validator.New()

// Validate checks struct tags, then the rules tags cannot express.
// Kind-specific store configs are validated later by their adapters.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("telemetry.profiling.endpoint is required when profiling is enabled")
	}
	if cfg.Probe.Enabled {
		if _, err := cron.ParseStandard(cfg.Probe.Schedule); err != nil {
			return fmt.Errorf("probe.schedule %q: %w", cfg.Probe.Schedule, err)
		}
	}
	if cfg.Metrics.Enabled && cfg.API.IsEnabled() && cfg.Metrics.Port == cfg.API.Port {
		return fmt.Errorf("metrics.port and api.port must differ (both %d)", cfg.API.Port)
	}

	if _, err := cfg.Descriptors(); err != nil {
		return err
	}
	return nil
}

// formatValidationError renders validator errors one per line with the
// failing tag, e.g. "Logging.Level: failed 'oneof' validation (value: X)".
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	lines := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		line := fmt.Sprintf("%s: failed '%s' validation", field, fe.Tag())
		if fe.Param() != "" {
			line += fmt.Sprintf(" (param: %s)", fe.Param())
		}
		line += fmt.Sprintf(" (value: %v)", fe.Value())
		lines = append(lines, line)
	}
	return errors.New(strings.Join(lines, "\n"))
}
