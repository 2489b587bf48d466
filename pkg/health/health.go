package health

import (
	"context"
	"time"
)

// Result is the outcome of a single check attempt
type Result struct {
	Healthy  bool
	Message  string
	Duration time.Duration
}

// Checker performs one check attempt against a target
type Checker interface {
	Check(ctx context.Context) Result
}

// Config bounds how often and how long a target is tried
type Config struct {
	// Interval is the pause between two attempts on the same target
	Interval time.Duration

	// Timeout bounds each attempt
	Timeout time.Duration

	// Retries is the number of failed attempts after which a target is
	// unreachable
	Retries int
}

// DefaultConfig returns the settings used by the CLI and the shell
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		Timeout:  5 * time.Second,
		Retries:  3,
	}
}
