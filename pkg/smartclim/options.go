package smartclim

import (
	"errors"
	"log/slog"
	"time"
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig) error

// clientConfig holds the configuration for a Client.
type clientConfig struct {
	adapter        string
	connectTimeout time.Duration
	requestTimeout time.Duration
	retries        int
	logger         *slog.Logger
}

// defaultConfig returns the default client configuration.
func defaultConfig() *clientConfig {
	return &clientConfig{
		adapter:        "hci0",
		connectTimeout: 10 * time.Second,
		requestTimeout: 5 * time.Second,
		retries:        2,
		logger:         nil,
	}
}

// WithAdapter selects the local Bluetooth adapter, e.g. "hci1".
// Default is "hci0".
func WithAdapter(id string) ClientOption {
	return func(c *clientConfig) error {
		if id == "" {
			return errors.New("adapter id must not be empty")
		}
		c.adapter = id
		return nil
	}
}

// WithConnectTimeout sets the timeout for establishing a connection
// and discovering the sensor's characteristics.
// Default is 10 seconds.
func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("connect timeout must be positive")
		}
		c.connectTimeout = d
		return nil
	}
}

// WithRequestTimeout sets the timeout for a single characteristic read.
// Default is 5 seconds.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		c.requestTimeout = d
		return nil
	}
}

// WithRetries sets how many times a failed values read is retried.
// Default is 2.
func WithRetries(n int) ClientOption {
	return func(c *clientConfig) error {
		if n < 0 {
			return errors.New("retries must not be negative")
		}
		c.retries = n
		return nil
	}
}

// WithLogger sets a structured logger for debug and error logging.
// By default, no logging is performed.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) error {
		c.logger = logger
		return nil
	}
}

func applyOptions(opts []ClientOption) (*clientConfig, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
