// Package rotation evaluates an installed identity's remaining validity
// and reports whether renewal is required or recommended. It only reports
// status; triggering a new enrollment is the caller's decision.
package rotation

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/remiblancher/mtls-identity/internal/identity"
)

// Threshold bounds and defaults, in days.
const (
	// DefaultThreshold is the required-rotation window.
	DefaultThreshold = 14

	// MinThreshold and MaxThreshold clamp configured thresholds.
	MinThreshold = 1
	MaxThreshold = 90

	// RecommendedWindow is the fixed recommended-rotation window.
	RecommendedWindow = 30

	// DefaultInterval is the periodic evaluation cadence.
	DefaultInterval = time.Hour
)

// Status is the outcome of a rotation evaluation.
type Status struct {
	// DaysUntilExpiry is non-negative; 0 when already expired.
	DaysUntilExpiry int

	// Required means rotation must happen now.
	Required bool

	// Recommended means rotation should be scheduled.
	Recommended bool

	// Degraded means the remote status could not be fetched and the
	// judgment is local-only.
	Degraded bool

	// LastEvaluated is when this status was computed.
	LastEvaluated time.Time
}

// RemoteStatus is the issuing side's view of a certificate.
type RemoteStatus struct {
	Required    bool
	Recommended bool
}

// StatusFetcher retrieves the issuing side's rotation judgment.
type StatusFetcher interface {
	// Fetch returns the remote status for a certificate name. It carries
	// a bounded timeout and fails fast without retrying.
	Fetch(ctx context.Context, certName string) (*RemoteStatus, error)
}

// Error wraps a remote status fetch failure. Non-fatal: evaluation
// degrades to local-only judgment.
type Error struct {
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("rotation status fetch: %v", e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Err }

// Engine evaluates rotation status on a fixed interval and on demand.
type Engine struct {
	mu        sync.Mutex
	threshold int
	last      *Status
	reeval    chan struct{}

	interval   time.Duration
	identities identity.Store
	fetcher    StatusFetcher

	// now is the clock source, overridable in tests.
	now func() time.Time
}

// NewEngine creates a rotation engine. A nil fetcher disables remote
// evaluation; every status is then local-only but not degraded.
func NewEngine(identities identity.Store, fetcher StatusFetcher, threshold int, interval time.Duration) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Engine{
		threshold:  ClampThreshold(threshold),
		reeval:     make(chan struct{}, 1),
		interval:   interval,
		identities: identities,
		fetcher:    fetcher,
		now:        time.Now,
	}
}

// Threshold returns the current required-rotation threshold in days.
func (e *Engine) Threshold() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.threshold
}

// SetThreshold updates the threshold, clamped to [MinThreshold,
// MaxThreshold], and triggers an immediate re-evaluation.
func (e *Engine) SetThreshold(days int) {
	e.mu.Lock()
	e.threshold = ClampThreshold(days)
	e.mu.Unlock()

	select {
	case e.reeval <- struct{}{}:
	default:
	}
}

// LastStatus returns the most recent evaluation, or nil.
func (e *Engine) LastStatus() *Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return nil
	}
	s := *e.last
	return &s
}

// Evaluate computes the rotation status for an identity. The local
// judgment is OR-combined with the remote one, so either side can force
// rotation; a failed remote fetch degrades to local-only and is surfaced
// through Status.Degraded rather than hidden.
func (e *Engine) Evaluate(ctx context.Context, id *identity.Identity) Status {
	now := e.now()
	days := daysUntilExpiry(id.Certificate.NotAfter, now)
	expired := now.After(id.Certificate.NotAfter)

	e.mu.Lock()
	threshold := e.threshold
	e.mu.Unlock()

	status := Status{
		DaysUntilExpiry: days,
		Required:        expired || days <= threshold,
		Recommended:     expired || days <= RecommendedWindow,
		LastEvaluated:   now,
	}

	if e.fetcher != nil {
		remote, err := e.fetcher.Fetch(ctx, id.Certificate.Subject.CommonName)
		if err != nil {
			status.Degraded = true
			log.Printf("%v (falling back to local evaluation)", &Error{Err: err})
		} else {
			status.Required = status.Required || remote.Required
			status.Recommended = status.Recommended || remote.Recommended
		}
	}

	e.mu.Lock()
	e.last = &status
	e.mu.Unlock()

	return status
}

// EvaluateCurrent evaluates the store's current identity.
func (e *Engine) EvaluateCurrent(ctx context.Context) (Status, error) {
	id, err := e.identities.Current()
	if err != nil {
		return Status{}, err
	}
	return e.Evaluate(ctx, id), nil
}

// Run evaluates the current identity on the configured interval, plus
// immediately after every threshold change, until the context ends.
// It never initiates enrollment.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.runOnce(ctx)
		case <-e.reeval:
			e.runOnce(ctx)
		}
	}
}

// runOnce performs a single evaluation pass.
func (e *Engine) runOnce(ctx context.Context) {
	status, err := e.EvaluateCurrent(ctx)
	if err != nil {
		log.Printf("rotation evaluation skipped: %v", err)
		return
	}
	if status.Required {
		log.Printf("rotation required: %d days until expiry", status.DaysUntilExpiry)
	}
}

// daysUntilExpiry returns whole days until notAfter, floored at zero.
func daysUntilExpiry(notAfter, now time.Time) int {
	if now.After(notAfter) {
		return 0
	}
	return int(notAfter.Sub(now).Hours() / 24)
}

// ClampThreshold clamps a threshold into [MinThreshold, MaxThreshold].
// Values below the minimum select the default rather than the most
// aggressive policy.
func ClampThreshold(days int) int {
	switch {
	case days < MinThreshold:
		return DefaultThreshold
	case days > MaxThreshold:
		return MaxThreshold
	default:
		return days
	}
}
