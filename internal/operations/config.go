package operations

import (
	"time"

	"loanrecovery/internal/config"
	"loanrecovery/internal/recovery"
)

// DefaultStepTimeout bounds a single step when no override is set.
const DefaultStepTimeout = 5 * time.Minute

// Config represents the pipeline execution configuration
type Config struct {
	// Model parameters shared by every run
	Params recovery.Params `json:"params"`

	// Step-specific timeouts
	StepTimeouts map[string]time.Duration `json:"step_timeouts"`

	// Fallback timeout for steps without an override
	DefaultTimeout time.Duration `json:"default_timeout"`
}

// NewConfig returns the default pipeline configuration
func NewConfig() *Config {
	return &Config{
		Params:         recovery.DefaultParams(),
		StepTimeouts:   make(map[string]time.Duration),
		DefaultTimeout: DefaultStepTimeout,
	}
}

// ConfigFromPipeline builds the run configuration from application settings
func ConfigFromPipeline(cfg config.PipelineConfig) *Config {
	c := NewConfig()
	c.Params = recovery.Params{
		Seed:          cfg.Seed,
		Clusters:      cfg.Clusters,
		KMeansInit:    cfg.KMeansInit,
		KMeansMaxIter: cfg.KMeansMaxIter,
		KMeansTol:     cfg.KMeansTol,
		TestSize:      cfg.TestSize,
		Trees:         cfg.Trees,
	}
	if cfg.StepTimeout > 0 {
		c.DefaultTimeout = cfg.StepTimeout
	}
	for stepID, timeout := range cfg.StepTimeouts {
		c.SetStepTimeout(stepID, timeout)
	}
	return c
}

// GetStepTimeout returns the timeout for a specific Step
func (c *Config) GetStepTimeout(stepID string) time.Duration {
	if timeout, ok := c.StepTimeouts[stepID]; ok && timeout > 0 {
		return timeout
	}
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return DefaultStepTimeout
}

// SetStepTimeout sets the timeout for a specific Step
func (c *Config) SetStepTimeout(stepID string, timeout time.Duration) {
	if c.StepTimeouts == nil {
		c.StepTimeouts = make(map[string]time.Duration)
	}
	c.StepTimeouts[stepID] = timeout
}
