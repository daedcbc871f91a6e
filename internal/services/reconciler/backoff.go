package reconciler

import "time"

type BackoffConfig struct {
	Step1 time.Duration // default: 30 seconds
	Step2 time.Duration // default: 2 minutes
	Step3 time.Duration // default: 10 minutes
	Step4 time.Duration // default: 30 minutes
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Step1: 30 * time.Second,
		Step2: 2 * time.Minute,
		Step3: 10 * time.Minute,
		Step4: 30 * time.Minute,
	}
}

// Backoff spaces out retries of an artifact that keeps failing.
type Backoff struct {
	cfg BackoffConfig
}

func NewBackoff(cfg BackoffConfig) *Backoff {
	def := DefaultBackoffConfig()
	if cfg.Step1 <= 0 {
		cfg.Step1 = def.Step1
	}
	if cfg.Step2 <= 0 {
		cfg.Step2 = def.Step2
	}
	if cfg.Step3 <= 0 {
		cfg.Step3 = def.Step3
	}
	if cfg.Step4 <= 0 {
		cfg.Step4 = def.Step4
	}
	return &Backoff{cfg: cfg}
}

// Delay is the wait before the attempt that follows failure number nextFailCount.
func (b *Backoff) Delay(nextFailCount int32) time.Duration {
	switch {
	case nextFailCount <= 1:
		return b.cfg.Step1
	case nextFailCount == 2:
		return b.cfg.Step2
	case nextFailCount == 3:
		return b.cfg.Step3
	default:
		return b.cfg.Step4
	}
}
