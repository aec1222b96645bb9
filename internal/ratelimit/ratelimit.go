// Package ratelimit implements fixed-window admission control keyed by
// client identity.  A window is identified by floor(unix / windowSeconds);
// the counter for an identity resets implicitly when the window id changes.
//
// Fixed windows accept bursts at window boundaries (up to 2*max requests in
// any span of one window length) in exchange for O(1) memory per identity,
// O(1) work per call and no background sweeper.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // time until the current window ends; zero when allowed
}

// Limiter decides whether the identity may proceed and records the attempt.
type Limiter interface {
	Take(ctx context.Context, identity string) Decision
}

// Allow is a convenience wrapper returning only the admission bit.
func Allow(ctx context.Context, l Limiter, identity string) bool {
	return l.Take(ctx, identity).Allowed
}

// Disabled admits every request.
type Disabled struct{}

func (Disabled) Take(context.Context, string) Decision { return Decision{Allowed: true} }

// pruneThreshold bounds the in-memory map.  When exceeded, entries from past
// windows are dropped inline by the next new identity, at most once per
// window id.
const pruneThreshold = 10000

type window struct {
	id    int64
	count int
}

// FixedWindow is an in-process, mutex-guarded fixed-window counter.  State is
// lost on restart, which transiently degrades to no limiting.
type FixedWindow struct {
	mu       sync.Mutex
	windows  map[string]*window
	seconds  int64
	max      int
	now      func() time.Time
	prunedID int64 // window id of the last prune
	prunes   int
}

// Option customises a FixedWindow.
type Option func(*FixedWindow)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(f *FixedWindow) { f.now = now }
}

// NewFixedWindow returns a limiter admitting at most max calls per identity
// in each window of the given length.  Windows shorter than a second are
// rounded up to one second; max below 1 is treated as 1.
func NewFixedWindow(length time.Duration, max int, opts ...Option) *FixedWindow {
	secs := int64(length / time.Second)
	if secs < 1 {
		secs = 1
	}
	if max < 1 {
		max = 1
	}
	f := &FixedWindow{
		windows:  make(map[string]*window),
		seconds:  secs,
		max:      max,
		now:      time.Now,
		prunedID: math.MinInt64,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Take implements Limiter.
func (f *FixedWindow) Take(_ context.Context, identity string) Decision {
	now := f.now()
	id := now.Unix() / f.seconds

	f.mu.Lock()
	defer f.mu.Unlock()

	w, ok := f.windows[identity]
	if !ok {
		if len(f.windows) >= pruneThreshold && f.prunedID != id {
			f.pruneLocked(id)
		}
		w = &window{id: id}
		f.windows[identity] = w
	}
	if w.id != id {
		w.id = id
		w.count = 0
	}
	w.count++

	d := Decision{Allowed: w.count <= f.max, Limit: f.max, Remaining: f.max - w.count}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		end := time.Unix((id+1)*f.seconds, 0)
		d.RetryAfter = end.Sub(now)
	}
	return d
}

func (f *FixedWindow) pruneLocked(current int64) {
	f.prunedID = current
	f.prunes++
	for k, w := range f.windows {
		if w.id != current {
			delete(f.windows, k)
		}
	}
}

// Len reports the number of tracked identities.
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}
