// Package round implements the round lifecycle state machine: the single
// source of truth for whether trading is open and when it ends.
package round

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marketsim/tradefloor/internal/store"
)

// Status is one of the round lifecycle states.
type Status string

const (
	Idle    Status = "IDLE"
	Running Status = "RUNNING"
	Paused  Status = "PAUSED"
	Ended   Status = "ENDED"
)

// ErrInvalidTransition is returned by pause/resume when the round is not in
// a state that allows the requested transition.
var ErrInvalidTransition = errors.New("round: invalid transition")

// Snapshot is a point-in-time view of the round state for query responses.
type Snapshot struct {
	Status    Status
	Deadline  time.Time
	Remaining time.Duration
}

// Controller owns round state exclusively. It is injected into the Market
// Simulator (as a TradingOpen) and the Trade Executor, never accessed
// through a package global.
type Controller struct {
	mu       sync.Mutex
	status   Status
	deadline time.Time
	// remaining is captured on pause and consumed on resume.
	remaining time.Duration

	duration time.Duration
	st       store.Store
}

// New constructs a Controller with the given round duration. If a persisted
// state is available it should be applied via Restore before serving traffic.
func New(duration time.Duration, st store.Store) *Controller {
	return &Controller{
		status:   Idle,
		duration: duration,
		st:       st,
	}
}

// Restore applies a previously persisted round state, e.g. after a restart.
// A deadline already in the past for a RUNNING round is normalized to ENDED.
func (c *Controller) Restore(rs store.RoundState, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = Status(rs.Status)
	c.deadline = rs.Deadline
	c.remaining = rs.RemainingOnPause

	if c.status == Running && !now.Before(c.deadline) {
		c.status = Ended
	}
}

// Start begins a new round, or re-arms one from ENDED. No-op from RUNNING or PAUSED.
func (c *Controller) Start(ctx context.Context, now time.Time) (Status, error) {
	c.mu.Lock()
	switch c.status {
	case Idle, Ended:
		c.status = Running
		c.deadline = now.Add(c.duration)
	case Running, Paused:
		// no-op, return current status
	}
	status := c.status
	c.mu.Unlock()

	return status, c.persist(ctx)
}

// Pause suspends a RUNNING round, capturing the remaining duration.
// Rejects from IDLE or ENDED.
func (c *Controller) Pause(ctx context.Context, now time.Time) (Status, error) {
	c.mu.Lock()
	switch c.status {
	case Running:
		c.remaining = c.deadline.Sub(now)
		c.status = Paused
	case Paused:
		// no-op
	case Idle, Ended:
		c.mu.Unlock()
		return c.statusLocked(), ErrInvalidTransition
	}
	status := c.status
	c.mu.Unlock()

	return status, c.persist(ctx)
}

// Resume continues a PAUSED round from its captured remaining duration.
// Rejects from IDLE or ENDED.
func (c *Controller) Resume(ctx context.Context, now time.Time) (Status, error) {
	c.mu.Lock()
	switch c.status {
	case Paused:
		c.deadline = now.Add(c.remaining)
		c.status = Running
	case Running:
		// no-op
	case Idle, Ended:
		c.mu.Unlock()
		return c.statusLocked(), ErrInvalidTransition
	}
	status := c.status
	c.mu.Unlock()

	return status, c.persist(ctx)
}

// Reset returns the round to IDLE unconditionally.
func (c *Controller) Reset(ctx context.Context) (Status, error) {
	c.mu.Lock()
	c.status = Idle
	c.deadline = time.Time{}
	c.remaining = 0
	c.mu.Unlock()

	return Idle, c.persist(ctx)
}

// Snapshot returns the current round state, applying the deadline-elapsed
// transition to ENDED if applicable.
func (c *Controller) Snapshot(now time.Time) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.advanceLocked(now)

	snap := Snapshot{Status: c.status, Deadline: c.deadline}
	if c.status == Paused {
		snap.Remaining = c.remaining
	} else if c.status == Running {
		snap.Remaining = c.deadline.Sub(now)
	}
	return snap
}

// IsTradingOpen is the pure predicate consumed by the Market Simulator and
// Trade Executor: true only when status = RUNNING and now < deadline.
func (c *Controller) IsTradingOpen(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.advanceLocked(now)
	return c.status == Running && now.Before(c.deadline)
}

// advanceLocked applies the passive tick→ENDED transition. Caller holds mu.
func (c *Controller) advanceLocked(now time.Time) {
	if c.status == Running && !now.Before(c.deadline) {
		c.status = Ended
	}
}

func (c *Controller) statusLocked() Status {
	return c.status
}

func (c *Controller) persist(ctx context.Context) error {
	if c.st == nil {
		return nil
	}
	c.mu.Lock()
	rs := store.RoundState{
		Status:           string(c.status),
		Deadline:         c.deadline,
		RemainingOnPause: c.remaining,
	}
	c.mu.Unlock()

	return c.st.SaveRoundState(ctx, rs)
}
