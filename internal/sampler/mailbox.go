package sampler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/liftview/internal/mechanism"
)

// ErrSuperseded is returned to a poster whose snapshot was replaced by a
// newer one before the render side took it.
var ErrSuperseded = errors.New("snapshot superseded before it was accepted")

type delivery struct {
	snap mechanism.Snapshot
	done chan error // buffered; receives exactly one result
}

// Mailbox is a single-slot handoff from the sampler to the render context.
// Post parks a snapshot and waits; Drain, called on the render context,
// takes it and releases the poster.
type Mailbox struct {
	mu      sync.Mutex
	pending *delivery
	wake    chan struct{}

	superseded atomic.Uint64
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{wake: make(chan struct{}, 1)}
}

// Post parks snap and blocks until the render side accepts it or ctx is
// done. On ctx expiry the snapshot stays in the slot until it is drained or
// replaced by a later Post.
func (m *Mailbox) Post(ctx context.Context, snap mechanism.Snapshot) error {
	return m.post(ctx, snap, nil)
}

// post is Post with an extra expiry channel; a nil expire never fires.
func (m *Mailbox) post(ctx context.Context, snap mechanism.Snapshot, expire <-chan time.Time) error {
	d := &delivery{snap: snap, done: make(chan error, 1)}

	m.mu.Lock()
	if m.pending != nil {
		m.pending.done <- ErrSuperseded
		m.superseded.Add(1)
	}
	m.pending = d
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-d.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-expire:
		return errAcceptTimeout
	}
}

var errAcceptTimeout = errors.New("render side did not accept in time")

// Drain hands the pending snapshot, if any, to accept and then releases its
// poster. It reports whether a snapshot was delivered. Drain must only be
// called from the render context.
func (m *Mailbox) Drain(accept func(mechanism.Snapshot)) bool {
	m.mu.Lock()
	d := m.pending
	m.pending = nil
	m.mu.Unlock()

	if d == nil {
		return false
	}
	accept(d.snap)
	d.done <- nil
	return true
}

// Wake is signalled after every Post, for render contexts that block
// instead of polling. One signal may cover several posts.
func (m *Mailbox) Wake() <-chan struct{} { return m.wake }

// Pending reports whether a snapshot is waiting to be drained.
func (m *Mailbox) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Superseded counts snapshots replaced before the render side took them.
func (m *Mailbox) Superseded() uint64 { return m.superseded.Load() }
