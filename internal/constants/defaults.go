package constants

// Message limits
const (
	MaxMessageLength = 1000
)

// Default sync configuration values
const (
	DefaultSyncIntervalSec = 60
)

// Default connectivity configuration values
const (
	DefaultProbeIntervalSec    = 15
	DefaultReconnectDebounceMs = 1000
	DefaultProbeTimeoutSec     = 5
)

// Default gateway configuration values
const (
	DefaultGatewayTimeoutSec     = 30
	DefaultBreakerMaxFailures    = 5
	DefaultBreakerResetTimeoutMs = 30000
)

// Default retry configuration values
const (
	DefaultInitialBackoffMs      = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultMaxAttempts           = 5
	DefaultDatabaseRetryAttempts = 3
)

// Default server configuration values
const (
	DefaultServerPort           = 8082
	DefaultServerReadTimeoutSec = 15
	DefaultServerWriteTimeout   = 15
	DefaultServerIdleTimeoutSec = 60
	DefaultGracefulShutdownSec  = 30
)
