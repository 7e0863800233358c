package resilience

import "time"

// Verdict tells a Guard what to do with a failed attempt.
type Verdict int

const (
	// Fail returns the error and counts it against the breaker.
	Fail Verdict = iota
	// Retry backs off and tries again, counting the failure.
	Retry
	// Abort returns the error without counting it. Cancelled callers and bad input land here.
	Abort
)

type Classifier func(err error) Verdict

// Backoff spaces retries. Linear waits Initial, 2*Initial, 3*Initial; otherwise each
// wait is Factor times the previous. Max caps both.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Linear  bool
}

// Delay is the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Initial <= 0 {
		return 0
	}
	var d time.Duration
	if b.Linear {
		d = b.Initial * time.Duration(attempt)
	} else {
		f := float64(b.Initial)
		for i := 1; i < attempt; i++ {
			f *= b.Factor
			if b.Max > 0 && f >= float64(b.Max) {
				return b.Max
			}
		}
		d = time.Duration(f)
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Breaker opens per operation once at least MinRequests were seen and the failure
// ratio reaches FailureRatio. It stays open for OpenFor.
type Breaker struct {
	Enabled       bool
	MinRequests   uint32
	FailureRatio  float64
	OpenFor       time.Duration
	HalfOpenCalls uint32
}

type Policy struct {
	Attempts int
	Backoff  Backoff
	Breaker  Breaker
}

// PublishPolicy guards broker notifications: a short retry burst, then the breaker
// keeps a dead broker from slowing every forward down.
func PublishPolicy() Policy {
	return Policy{
		Attempts: 3,
		Backoff:  Backoff{Initial: 100 * time.Millisecond, Max: 400 * time.Millisecond, Factor: 2},
		Breaker: Breaker{
			Enabled:       true,
			MinRequests:   10,
			FailureRatio:  0.5,
			OpenFor:       30 * time.Second,
			HalfOpenCalls: 2,
		},
	}
}

// ConnectPolicy retries the first database ping with linear backoff and no breaker.
func ConnectPolicy(attempts int, step time.Duration) Policy {
	return Policy{
		Attempts: attempts,
		Backoff:  Backoff{Initial: step, Max: step * time.Duration(max(attempts, 1)), Linear: true},
	}
}

func (p Policy) withDefaults() Policy {
	def := PublishPolicy()
	out := p
	if out.Attempts <= 0 {
		out.Attempts = 1
	}
	if out.Backoff.Factor < 1 {
		out.Backoff.Factor = def.Backoff.Factor
	}
	if out.Backoff.Max > 0 && out.Backoff.Max < out.Backoff.Initial {
		out.Backoff.Max = out.Backoff.Initial
	}
	if out.Breaker.Enabled {
		if out.Breaker.MinRequests == 0 {
			out.Breaker.MinRequests = def.Breaker.MinRequests
		}
		if out.Breaker.FailureRatio <= 0 || out.Breaker.FailureRatio > 1 {
			out.Breaker.FailureRatio = def.Breaker.FailureRatio
		}
		if out.Breaker.OpenFor <= 0 {
			out.Breaker.OpenFor = def.Breaker.OpenFor
		}
		if out.Breaker.HalfOpenCalls == 0 {
			out.Breaker.HalfOpenCalls = def.Breaker.HalfOpenCalls
		}
	}
	return out
}
