// Package poller implements the client-side polling contract over a record's
// job status: fetch on a fixed interval until a terminal state or a bounded
// attempt count is reached.
package poller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/voxelmed/voxelmed/pkg/models"
)

// State is the poller's view of a job. Timeout is a poller-side terminal
// state: the server may still be infering, but this poller gave up.
type State string

const (
	StateIdle      State = "idle"
	StateInfering  State = "infering"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timeout"
)

// Terminal reports whether polling stops in this state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

// StatusFetcher fetches the persisted job status for a record: one of the
// models.JobStatus values, or "idle" when no job exists yet.
type StatusFetcher interface {
	JobStatus(ctx context.Context, recordID uuid.UUID) (string, error)
}

// Config bounds a polling run.
type Config struct {
	Interval    time.Duration
	MaxAttempts int
}

const (
	defaultInterval    = 3 * time.Second
	defaultMaxAttempts = 100
)

// Poller polls a record's job status until terminal. Safe to reuse across
// records but not for concurrent Poll calls.
type Poller struct {
	fetch StatusFetcher
	cfg   Config
	state State

	// OnTerminal, when set, is invoked exactly once per Poll run with the
	// final state.
	OnTerminal func(State)
}

// New creates a Poller. Zero config fields fall back to defaults.
func New(fetch StatusFetcher, cfg Config) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Poller{fetch: fetch, cfg: cfg, state: StateIdle}
}

// State returns the state observed by the most recent fetch (StateIdle
// before the first one).
func (p *Poller) State() State {
	return p.state
}

// Poll fetches the job status until it is terminal or the attempt budget is
// spent. It returns the final state; StateTimedOut means the job was still
// not terminal after MaxAttempts fetches.
func (p *Poller) Poll(ctx context.Context, recordID uuid.UUID) (State, error) {
	p.state = StateIdle

	for attempt := 1; ; attempt++ {
		status, err := p.fetch.JobStatus(ctx, recordID)
		if err != nil {
			return p.state, err
		}

		p.state = mapStatus(status)
		if p.state.Terminal() {
			return p.finish(p.state), nil
		}

		if attempt >= p.cfg.MaxAttempts {
			p.state = StateTimedOut
			return p.finish(StateTimedOut), nil
		}

		select {
		case <-ctx.Done():
			return p.state, ctx.Err()
		case <-time.After(p.cfg.Interval):
		}
	}
}

func (p *Poller) finish(s State) State {
	if p.OnTerminal != nil {
		p.OnTerminal(s)
	}
	return s
}

func mapStatus(status string) State {
	switch status {
	case models.JobStatusInfering:
		return StateInfering
	case models.JobStatusCompleted:
		return StateCompleted
	case models.JobStatusFailed:
		return StateFailed
	default:
		return StateIdle
	}
}
