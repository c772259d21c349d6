package renewal

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAborted is delivered to waiters when the renewal function panics.
var ErrAborted = errors.New("renewal aborted")

// Role reports how a caller took part in a renewal.
type Role int

const (
	// RoleLeader performed the renewal call.
	RoleLeader Role = iota
	// RoleWaiter was queued behind an in-flight renewal.
	RoleWaiter
	// RoleStale arrived while idle, after a renewal settled that postdates
	// its dispatch.
	RoleStale
)

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "leader"
	case RoleWaiter:
		return "waiter"
	case RoleStale:
		return "stale"
	default:
		return "unknown"
	}
}

// RenewFunc performs one renewal call.
type RenewFunc func(ctx context.Context) error

// Hooks receive state transitions. All hooks are optional and are called
// without the coordinator lock held.
type Hooks struct {
	// Started runs in the leader goroutine before the renewal call.
	Started func(ctx context.Context)
	// Queued runs when a waiter is appended; depth includes the new waiter.
	Queued func(ctx context.Context, seq uint64, depth int)
	// Released runs once per waiter, in FIFO order, after its result is delivered.
	Released func(ctx context.Context, seq uint64, err error)
	// Settled runs after the queue is drained.
	Settled func(ctx context.Context, err error, waiters int, elapsed time.Duration)
	// Failed runs once per failed renewal, after every waiter was rejected.
	Failed func(ctx context.Context, err error)
}

type waiter struct {
	seq  uint64
	done chan error
}

// Coordinator guarantees at most one in-flight renewal and queues concurrent
// expired-session reports behind it.
type Coordinator struct {
	renew RenewFunc
	hooks Hooks

	mu         sync.Mutex
	refreshing bool
	waiters    []*waiter
	nextSeq    uint64
	epoch      uint64
	lastErr    error
}

// New returns an idle coordinator that renews through fn.
func New(fn RenewFunc, hooks Hooks) *Coordinator {
	return &Coordinator{
		renew: fn,
		hooks: hooks,
	}
}

// Epoch returns the number of settled renewals. Callers capture it before
// dispatching a request and pass it back to [Coordinator.Await].
func (c *Coordinator) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Refreshing reports whether a renewal is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Pending returns the current waiter queue depth.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Await reports an expired session observed by a request dispatched at
// epoch. It returns once the session has been renewed (nil error) or the
// renewal failed (the renewal's error, unchanged).
//
// While a renewal is in flight every caller is queued behind it, whatever
// its epoch. Only an idle coordinator answers an older epoch from the last
// settlement.
//
// A waiter whose ctx ends returns ctx.Err(); its queue slot is still
// released on settlement.
func (c *Coordinator) Await(ctx context.Context, epoch uint64) (Role, error) {
	c.mu.Lock()
	if c.refreshing {
		w := &waiter{seq: c.nextSeq, done: make(chan error, 1)}
		c.nextSeq++
		c.waiters = append(c.waiters, w)
		depth := len(c.waiters)
		c.mu.Unlock()

		if c.hooks.Queued != nil {
			c.hooks.Queued(ctx, w.seq, depth)
		}
		select {
		case err := <-w.done:
			return RoleWaiter, err
		case <-ctx.Done():
			return RoleWaiter, ctx.Err()
		}
	}
	if epoch < c.epoch {
		err := c.lastErr
		c.mu.Unlock()
		return RoleStale, err
	}
	c.refreshing = true
	c.mu.Unlock()

	return RoleLeader, c.lead(ctx)
}

func (c *Coordinator) lead(ctx context.Context) (err error) {
	// The renewal is shared by every waiter, so the leader's cancellation
	// must not abort it.
	rctx := context.WithoutCancel(ctx)
	start := time.Now()

	err = ErrAborted
	defer func() {
		c.settle(rctx, err, time.Since(start))
	}()

	if c.hooks.Started != nil {
		c.hooks.Started(rctx)
	}
	err = c.renew(rctx)
	return err
}

func (c *Coordinator) settle(ctx context.Context, err error, elapsed time.Duration) {
	c.mu.Lock()
	c.refreshing = false
	c.epoch++
	c.lastErr = err
	queue := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range queue {
		w.done <- err
		if c.hooks.Released != nil {
			c.hooks.Released(ctx, w.seq, err)
		}
	}
	if c.hooks.Settled != nil {
		c.hooks.Settled(ctx, err, len(queue), elapsed)
	}
	if err != nil && c.hooks.Failed != nil {
		c.hooks.Failed(ctx, err)
	}
}
