package sequence

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/netbill/internal/billingerr"
	"github.com/smallbiznis/netbill/internal/config"
)

// collisionError marks a unique-constraint violation on an identifier column.
type collisionError struct {
	err error
}

func (e *collisionError) Error() string { return "identifier collision: " + e.err.Error() }
func (e *collisionError) Unwrap() error { return e.err }

// Collision wraps err so Retrier.Do will allocate a new identifier and try again.
func Collision(err error) error {
	if err == nil {
		return nil
	}
	return &collisionError{err: err}
}

func IsCollision(err error) bool {
	var c *collisionError
	return errors.As(err, &c)
}

// Policy bounds the collision retry loop.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxJitter   time.Duration
}

func PolicyFromConfig(cfg config.SequencePolicy) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
		MaxJitter:   cfg.MaxJitter,
	}
}

// Retrier re-runs an allocate-and-persist operation while it reports
// collisions.
type Retrier struct {
	policy  func() Policy
	onRetry func(ctx context.Context, stem string, attempt int, err error)
}

type RetrierOption func(*Retrier)

// WithRetryHook is called after every collision that will be retried.
func WithRetryHook(fn func(ctx context.Context, stem string, attempt int, err error)) RetrierOption {
	return func(r *Retrier) { r.onRetry = fn }
}

// NewRetrier reads the policy on every call so hot-reloaded settings apply to
// the next operation.
func NewRetrier(policy func() Policy, opts ...RetrierOption) *Retrier {
	r := &Retrier{policy: policy}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs op until it succeeds, returns a non-collision error, or the attempt
// budget is spent. op receives the 1-based attempt number.
func (r *Retrier) Do(ctx context.Context, stem string, op func(ctx context.Context, attempt int) error) error {
	policy := r.policy()
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	attempt := 0
	var lastCollision error
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := op(ctx, attempt)
		switch {
		case err == nil:
			return struct{}{}, nil
		case IsCollision(err):
			lastCollision = err
			if r.onRetry != nil && attempt < policy.MaxAttempts {
				r.onRetry(ctx, stem, attempt, err)
			}
			return struct{}{}, err
		default:
			return struct{}{}, backoff.Permanent(err)
		}
	},
		backoff.WithBackOff(newJitterBackOff(policy)),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if IsCollision(err) {
		return &billingerr.SequenceExhaustedError{Stem: stem, Attempts: attempt, Err: lastCollision}
	}
	return err
}

// jitterBackOff doubles from BaseDelay up to MaxDelay and adds a uniform
// random delay in [0, MaxJitter).
type jitterBackOff struct {
	policy Policy
	n      int
}

func newJitterBackOff(policy Policy) *jitterBackOff {
	return &jitterBackOff{policy: policy}
}

func (b *jitterBackOff) NextBackOff() time.Duration {
	d := b.policy.BaseDelay
	for i := 0; i < b.n && d < b.policy.MaxDelay; i++ {
		d *= 2
	}
	if b.policy.MaxDelay > 0 && d > b.policy.MaxDelay {
		d = b.policy.MaxDelay
	}
	b.n++

	if b.policy.MaxJitter > 0 {
		d += rand.N(b.policy.MaxJitter)
	}
	return d
}

func (b *jitterBackOff) Reset() {
	b.n = 0
}
