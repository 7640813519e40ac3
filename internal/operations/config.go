package operations

import (
	"time"

	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

const (
	// DefaultPollInterval is the wait before re-polling a stage that is
	// neither active nor failed
	DefaultPollInterval = 300000 * time.Millisecond
	// DefaultRequestTimeout bounds a single pipeline call
	DefaultRequestTimeout = 30 * time.Second
	// DefaultHistorySize is the number of runs kept in memory
	DefaultHistorySize = 50
)

// Config represents the job execution configuration
type Config struct {
	// StartAction is the action that submits a series
	StartAction string `json:"start_action"`

	// PollInterval is the fixed delay between polls of a pending stage
	PollInterval time.Duration `json:"poll_interval"`

	// RequestTimeout bounds each pipeline call
	RequestTimeout time.Duration `json:"request_timeout"`
}

// NewConfig returns the default job configuration
func NewConfig() *Config {
	return &Config{
		StartAction:    domain.ActionStart,
		PollInterval:   DefaultPollInterval,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// ConfigBuilder provides a fluent interface for building job configurations
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: NewConfig(),
	}
}

// WithStartAction sets the submit action name
func (b *ConfigBuilder) WithStartAction(action string) *ConfigBuilder {
	if action != "" {
		b.config.StartAction = action
	}
	return b
}

// WithPollInterval sets the re-poll delay
func (b *ConfigBuilder) WithPollInterval(interval time.Duration) *ConfigBuilder {
	if interval > 0 {
		b.config.PollInterval = interval
	}
	return b
}

// WithRequestTimeout sets the per-call timeout
func (b *ConfigBuilder) WithRequestTimeout(timeout time.Duration) *ConfigBuilder {
	if timeout > 0 {
		b.config.RequestTimeout = timeout
	}
	return b
}

// Build returns the built configuration
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
