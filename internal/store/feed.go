package store

import (
	"bytes"
	"context"
	"sync"
)

// Feed delivers snapshots of one watched path to one callback, on its own
// goroutine. Snapshots are coalesced: a slow callback only ever sees the most
// recent value, never a backlog.
type Feed struct {
	path   string
	fn     func(Snapshot)
	mu     sync.Mutex
	latest Snapshot
	primed bool
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func NewFeed(path string, fn func(Snapshot)) *Feed {
	return &Feed{
		path:   path,
		fn:     fn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (f *Feed) Path() string {
	return f.path
}

// Offer queues snap unless it is identical to the last offered snapshot.
func (f *Feed) Offer(snap Snapshot) {
	f.mu.Lock()
	if f.primed && f.latest.Exists == snap.Exists && bytes.Equal(f.latest.Value, snap.Value) {
		f.mu.Unlock()
		return
	}
	f.latest = snap
	f.primed = true
	f.mu.Unlock()

	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *Feed) Stop() {
	f.once.Do(func() { close(f.done) })
}

// Run delivers snapshots until Stop is called or ctx ends, then calls release.
func (f *Feed) Run(ctx context.Context, release func()) {
	defer release()
	for {
		select {
		case <-f.done:
			return
		case <-ctx.Done():
			return
		case <-f.notify:
			f.mu.Lock()
			snap := f.latest
			f.mu.Unlock()
			f.fn(snap)
		}
	}
}
