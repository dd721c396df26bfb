package fluentlogger

import (
	"fmt"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
)

type Config struct {
	Host      string
	Port      int
	TagPrefix string

	// Async buffers records and sends them from a background goroutine, so
	// an unreachable Fluent Bit does not slow down request handling.
	Async        bool
	Timeout      time.Duration
	MaxRetry     int
	BufferLimit  int
	WriteTimeout time.Duration
}

// NewClient creates the Fluent Bit client. The connection is established
// lazily; errors surface on the first post.
func NewClient(cfg Config) (*fluent.Fluent, error) {
	if cfg.TagPrefix == "" {
		return nil, fmt.Errorf("fluentd tag prefix is required")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("fluentd host is required")
	}

	client, err := fluent.New(fluent.Config{
		FluentHost:   cfg.Host,
		FluentPort:   cfg.Port,
		TagPrefix:    cfg.TagPrefix,
		Async:        cfg.Async,
		Timeout:      cfg.Timeout,
		MaxRetry:     cfg.MaxRetry,
		BufferLimit:  cfg.BufferLimit,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fluentd logger: %w", err)
	}
	return client, nil
}
