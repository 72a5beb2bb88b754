package core

import "time"

type BackoffPolicy interface {
	Delay(attempt int) time.Duration
}

// ExponentialBackoff computes min(Initial*2^(attempt-1), Max) for attempt >= 1.
type ExponentialBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

func NewExponentialBackoff(cfg ProcessingConfig) ExponentialBackoff {
	cfg = withProcessingDefaults(cfg)
	return ExponentialBackoff{Initial: cfg.InitialDelay, Max: cfg.MaxDelay}
}

func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := b.Max
	if maximum < initial {
		maximum = initial
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	return delay
}

// NextEligibleAt returns nil when no retry remains for the attempt just failed.
func NextEligibleAt(policy BackoffPolicy, now time.Time, attempt int, maxAttempts int) *time.Time {
	if attempt >= maxAttempts {
		return nil
	}
	next := now.Add(policy.Delay(attempt)).UTC()
	return &next
}
