package config

import (
	"encoding/json"
	"fmt"
	"os"

	"sendlater/internal/constants"
	"sendlater/internal/models"
	"sendlater/internal/security"
)

var (
	ErrMissingGatewayURL = models.ConfigError{Message: "missing delivery gateway URL"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Gateway.BaseURL == "" {
		return ErrMissingGatewayURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}

	if c.Gateway.TimeoutSec <= 0 {
		c.Gateway.TimeoutSec = constants.DefaultGatewayTimeoutSec
	}
	if c.Gateway.BreakerMaxFail <= 0 {
		c.Gateway.BreakerMaxFail = constants.DefaultBreakerMaxFailures
	}
	if c.Gateway.BreakerResetMs <= 0 {
		c.Gateway.BreakerResetMs = constants.DefaultBreakerResetTimeoutMs
	}

	if c.Sync.IntervalSec <= 0 {
		c.Sync.IntervalSec = constants.DefaultSyncIntervalSec
	}
	if c.Sync.RetentionDays < 0 {
		return models.ConfigError{Message: "retentionDays must be zero or positive"}
	}

	if c.Connectivity.ProbeURL == "" {
		// Probing the gateway itself keeps online status honest about the
		// endpoint that matters.
		c.Connectivity.ProbeURL = c.Gateway.BaseURL
	}
	if c.Connectivity.ProbeIntervalSec <= 0 {
		c.Connectivity.ProbeIntervalSec = constants.DefaultProbeIntervalSec
	}
	if c.Connectivity.DebounceMs <= 0 {
		c.Connectivity.DebounceMs = constants.DefaultReconnectDebounceMs
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultInitialBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "sendlater"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 0.1
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("SENDLATER_GATEWAY_URL"); url != "" {
		c.Gateway.BaseURL = url
	}
	if key := os.Getenv("SENDLATER_GATEWAY_API_KEY"); key != "" {
		c.Gateway.APIKey = key
	}
	if path := os.Getenv("SENDLATER_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if url := os.Getenv("SENDLATER_PROBE_URL"); url != "" {
		c.Connectivity.ProbeURL = url
	}
}
