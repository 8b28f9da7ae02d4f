package mediaparser

import (
	"context"
	"sync"
)

// mailbox is the one-slot handoff between engine threads publishing stream
// items and the reader consuming them. All state is guarded by the owning
// parser's mutex; at most one item is queued at any time.
type mailbox struct {
	mu            *sync.Mutex
	itemAvailable sync.Cond
	slotEmpty     sync.Cond
	progress      *sync.Cond // Parser construction progress, may be nil

	slot     Event
	full     bool
	enabled  bool
	flushing bool
	eos      bool
}

func newMailbox(mu *sync.Mutex, progress *sync.Cond) *mailbox {
	m := &mailbox{mu: mu, progress: progress}
	m.itemAvailable.L = mu
	m.slotEmpty.L = mu
	return m
}

// publishResult reports what happened to a published item.
type publishResult int

const (
	published publishResult = iota
	discarded               // Stream is flushing
	dropped                 // Stream is disabled
)

// publish hands ev to the reader, blocking while the slot is occupied.
// Items published while flushing are discarded and data for a disabled
// stream is dropped; in both cases the payload is released.
func (m *mailbox) publish(ev Event) publishResult {
	m.mu.Lock()
	for m.full && !m.flushing && m.enabled {
		m.slotEmpty.Wait()
	}
	if m.flushing {
		m.mu.Unlock()
		ev.release()
		return discarded
	}
	if !m.enabled {
		return m.publishDisabledLocked(ev)
	}

	m.slot = ev
	m.full = true
	m.mu.Unlock()
	m.itemAvailable.Signal()
	return published
}

// publishDisabledLocked handles ev for a stream nobody reads. Data is
// dropped; EOS is recorded so construction can observe it. It unlocks mu.
func (m *mailbox) publishDisabledLocked(ev Event) publishResult {
	if ev.Type != EventEOS {
		m.mu.Unlock()
		ev.release()
		return dropped
	}
	m.eos = true
	if m.progress != nil {
		m.progress.Broadcast()
	}
	m.mu.Unlock()
	return published
}

// consume takes the queued item, blocking until one is available, the
// stream starts flushing, the stream has ended, or ctx is cancelled.
func (m *mailbox) consume(ctx context.Context) (Event, error) {
	if ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			m.mu.Lock()
			m.itemAvailable.Broadcast()
			m.mu.Unlock()
		})
		defer stop()
	}

	m.mu.Lock()
	for !m.full && !m.flushing && !m.eos && ctx.Err() == nil {
		m.itemAvailable.Wait()
	}
	if !m.full {
		var err error
		switch {
		case m.flushing:
			err = ErrFlushing
		case m.eos:
			err = ErrEndOfStream
		default:
			err = ctx.Err()
		}
		m.mu.Unlock()
		return Event{}, err
	}

	ev := m.slot
	m.slot = Event{}
	m.full = false
	if ev.Type == EventEOS {
		m.eos = true
	}
	m.mu.Unlock()
	m.slotEmpty.Signal()
	return ev, nil
}

// flushStart discards the queued item and wakes a blocked publisher, which
// then takes the discard path.
func (m *mailbox) flushStart() {
	m.mu.Lock()
	m.flushStartLocked()
	m.mu.Unlock()
}

func (m *mailbox) flushStartLocked() {
	m.flushing = true
	m.dropLocked()
	m.slotEmpty.Broadcast()
	m.itemAvailable.Broadcast()
}

func (m *mailbox) flushStop() {
	m.mu.Lock()
	m.flushing = false
	m.mu.Unlock()
}

func (m *mailbox) dropLocked() {
	if m.full {
		m.slot.release()
		m.slot = Event{}
		m.full = false
	}
}

func (m *mailbox) setEnabled(enabled bool) {
	m.mu.Lock()
	m.enabled = enabled
	if !enabled {
		m.dropLocked()
		m.slotEmpty.Broadcast()
	}
	m.mu.Unlock()
}

// pending reports whether an item is queued.
func (m *mailbox) pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.full
}
