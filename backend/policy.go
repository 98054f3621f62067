package backend

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds the retry loop. The zero value means "use defaults";
// a Policy is immutable after construction and safe to share read-only
// across any number of wrappers.
type Policy struct {
	// MaxAttempts is the total number of tries per operation, the first
	// included. Minimum 1.
	MaxAttempts int

	// MinDelay is the initial backoff interval.
	MinDelay time.Duration

	// MaxDelay caps the backoff interval.
	MaxDelay time.Duration
}

// DefaultPolicy mirrors the original tool's defaults: five attempts with
// a delay that starts well under the volume transfer time.
var DefaultPolicy = Policy{
	MaxAttempts: 5,
	MinDelay:    500 * time.Millisecond,
	MaxDelay:    30 * time.Second,
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.MinDelay <= 0 {
		p.MinDelay = DefaultPolicy.MinDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy.MaxDelay
	}
	return p
}

// newBackOff builds the per-operation backoff state. Exponential with
// jitter; the attempt bound lives in the wrapper loop, so the backoff
// itself never stops.
func (p Policy) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.MinDelay
	bo.MaxInterval = p.MaxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}
