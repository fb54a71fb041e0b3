package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
//
// WebSocket-level knobs (queue size, heartbeat, rate limits, origin policy)
// are read by the chat gateway itself; this struct covers the process-level
// surface.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("PALAVER_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("PALAVER_LOG_LEVEL", "info"),
		LogFormat: EnvString("PALAVER_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("PALAVER_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		IdleTimeout:       EnvDuration("PALAVER_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("PALAVER_HTTP_MAX_HEADER_BYTES", 1<<20),
	}
}
