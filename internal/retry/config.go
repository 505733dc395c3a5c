package retry

import "time"

// Config holds the parameters of an ExponentialBackoffStrategy.
type Config struct {
	MaxRetries   int           // Maximum number of retry attempts after the first try
	InitialDelay time.Duration // Delay before the first retry
	Multiplier   int           // Factor the delay is multiplied by after each failed attempt
	MaxDelay     time.Duration // Upper bound the delay is clamped to
}

// RPCRetryConfig is the fixed retry schedule every RPC adapter call uses:
// 3 retries with waits 10ms, 100ms, 1s (multiplier x10).
func RPCRetryConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 10 * time.Millisecond,
		Multiplier:   10,
		MaxDelay:     time.Second,
	}
}

// NewStrategy builds the ExponentialBackoffStrategy described by cfg.
func NewStrategy(cfg Config) Strategy {
	return NewExponentialBackoffStrategy(cfg.MaxRetries, cfg.InitialDelay, cfg.Multiplier, cfg.MaxDelay)
}
