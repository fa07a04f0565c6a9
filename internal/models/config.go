package models

// Config holds the application configuration
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Gateway      GatewayConfig      `json:"gateway"`
	Sync         SyncConfig         `json:"sync"`
	Connectivity ConnectivityConfig `json:"connectivity"`
	Retry        RetryConfig        `json:"retry"`
	Tracing      TracingConfig      `json:"tracing"`
	LogLevel     string             `json:"log_level"`
}

// ServerConfig holds the HTTP API configuration
type ServerConfig struct {
	Port int `json:"port"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// GatewayConfig holds delivery gateway related configurations
type GatewayConfig struct {
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	TimeoutSec     int    `json:"timeoutSec"`
	BreakerEnabled bool   `json:"breakerEnabled"`
	BreakerMaxFail int    `json:"breakerMaxFailures"`
	BreakerResetMs int    `json:"breakerResetMs"`
}

// SyncConfig holds sync engine related configurations
type SyncConfig struct {
	IntervalSec   int  `json:"intervalSec"`
	AutoSync      bool `json:"autoSync"`
	RetentionDays int  `json:"retentionDays"`
}

// ConnectivityConfig holds connectivity monitor related configurations
type ConnectivityConfig struct {
	ProbeURL         string `json:"probe_url"`
	ProbeIntervalSec int    `json:"probeIntervalSec"`
	DebounceMs       int    `json:"debounceMs"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// TracingConfig holds OpenTelemetry related configurations
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
