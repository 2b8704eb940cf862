package session

import "time"

const (
	DefaultPort           = 25575
	DefaultRequestTimeout = 3 * time.Second
)

// BackoffConfig defines reconnect delay behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

// TLSConfig wraps the TCP stream, for servers fronted by a TLS terminator.
type TLSConfig struct {
	Enabled            bool
	CAFile             string
	ServerName         string
	InsecureSkipVerify bool
}

// Config defines transport/session defaults for one RCON connection.
type Config struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	WriteTimeout   time.Duration
	// ReconnectDelay is applied after every open attempt, successful or not.
	ReconnectDelay BackoffConfig
	// ConcurrentRequests marks a server deployment that answers requests out of
	// order; fire-and-forget sends only detach their wait when it is set.
	ConcurrentRequests bool
	SecurityMode       SecurityMode
	TLS                TLSConfig
}

// DefaultConfig returns the protocol defaults: 3s answer timeout and a flat 100ms
// post-connect delay.
func DefaultConfig() Config {
	return Config{
		DialTimeout:    5 * time.Second,
		RequestTimeout: DefaultRequestTimeout,
		WriteTimeout:   5 * time.Second,
		ReconnectDelay: BackoffConfig{
			InitialDelay: 100 * time.Millisecond,
			Multiplier:   1.0,
			MaxDelay:     100 * time.Millisecond,
			Jitter:       false,
		},
		SecurityMode: SecurityModeDevelopment,
	}
}

// WithDefaults fills zero-valued durations from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReconnectDelay == (BackoffConfig{}) {
		c.ReconnectDelay = def.ReconnectDelay
	}
	c.SecurityMode = NormalizeSecurityMode(c.SecurityMode)
	return c
}
