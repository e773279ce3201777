package store

import (
	"context"
	"sync"
)

// Subscription is a live, coalescing feed of one document. The channel
// always holds at most one pending snapshot: when the consumer lags, newer
// commits replace older undelivered ones (last value wins).
type Subscription struct {
	ch     chan Snapshot
	done   chan struct{}
	cancel func()
	once   sync.Once
}

// C returns the snapshot channel. It is never closed while the
// subscription is open; after Close no further values are delivered.
func (s *Subscription) C() <-chan Snapshot { return s.ch }

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		close(s.done)
	})
}

// hub fans committed snapshots out to subscribers. Channels are collected
// under the lock and sent to without blocking, so a stalled consumer can
// never hold up a commit.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*Subscription]struct{})}
}

func (h *hub) subscribe(ctx context.Context, path string, initial Snapshot) *Subscription {
	sub := &Subscription{ch: make(chan Snapshot, 1), done: make(chan struct{})}
	sub.cancel = func() { h.remove(path, sub) }

	h.mu.Lock()
	if h.subs[path] == nil {
		h.subs[path] = make(map[*Subscription]struct{})
	}
	h.subs[path][sub] = struct{}{}
	h.mu.Unlock()

	sub.ch <- initial

	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub
}

func (h *hub) remove(path string, sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.subs[path]; m != nil {
		delete(m, sub)
		if len(m) == 0 {
			delete(h.subs, path)
		}
	}
}

// publish delivers a committed snapshot to every subscriber of its path,
// replacing any undelivered previous value.
func (h *hub) publish(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[snap.Path] {
		select {
		case sub.ch <- snap:
		default:
			// Drop the stale pending value, then queue the new one.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
		}
	}
}
