// Package admission bounds the number of concurrently active sessions.
//
// The controller is a counting semaphore over a buffered channel: Acquire
// sends into the channel and Release receives from it. Goroutines blocked
// on a full channel are queued by the runtime in arrival order, so waiters
// are admitted FIFO.
package admission

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/yndnr/kvwait/internal/core/domain"
)

// Recorder receives slot occupancy updates. The metrics registry satisfies it.
type Recorder interface {
	SetSessionsActive(n int)
	SetAdmissionWaiting(n int)
	SessionAdmitted()
}

// Controller caps the number of held slots at a fixed maximum.
type Controller struct {
	slots    chan struct{}
	waiting  atomic.Int64
	recorder Recorder
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder reports occupancy changes to r.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// New creates a controller admitting at most maxSessions concurrent holders.
func New(maxSessions int, opts ...Option) (*Controller, error) {
	if maxSessions <= 0 {
		return nil, domain.ErrInvalidConfig.WithDetails(
			fmt.Sprintf("max sessions must be a positive integer, got %d", maxSessions))
	}

	c := &Controller{
		slots: make(chan struct{}, maxSessions),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Acquire blocks until a slot is free and takes it. If ctx ends first, no
// slot is taken and the returned error wraps domain.ErrAdmissionCancelled.
func (c *Controller) Acquire(ctx context.Context) error {
	// Fast path keeps uncontended admissions out of the waiting gauge.
	select {
	case c.slots <- struct{}{}:
		c.admitted()
		return nil
	default:
	}

	c.setWaiting(c.waiting.Add(1))
	defer func() { c.setWaiting(c.waiting.Add(-1)) }()

	select {
	case c.slots <- struct{}{}:
		c.admitted()
		return nil
	case <-ctx.Done():
		return domain.ErrAdmissionCancelled.WithCause(ctx.Err())
	}
}

// Release returns one slot and lets the longest waiter in. Releasing with no
// slot held is a no-op.
func (c *Controller) Release() {
	select {
	case <-c.slots:
	default:
		return
	}
	if c.recorder != nil {
		c.recorder.SetSessionsActive(len(c.slots))
	}
}

// Active returns the number of held slots.
func (c *Controller) Active() int {
	return len(c.slots)
}

// Waiting returns the number of callers blocked in Acquire.
func (c *Controller) Waiting() int {
	return int(c.waiting.Load())
}

// Max returns the configured slot count.
func (c *Controller) Max() int {
	return cap(c.slots)
}

func (c *Controller) admitted() {
	if c.recorder == nil {
		return
	}
	c.recorder.SessionAdmitted()
	c.recorder.SetSessionsActive(len(c.slots))
}

func (c *Controller) setWaiting(n int64) {
	if c.recorder != nil {
		c.recorder.SetAdmissionWaiting(int(n))
	}
}
