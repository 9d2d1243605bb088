package clock

import (
	"sync"
	"time"
)

// Fake is a manually-advanced Clock for deterministic tests.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	tickers []*fakeTicker
}

func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) MonotonicNow() int64 {
	return f.Now().UnixNano()
}

type fakeTimer struct {
	fireAt time.Time
	ch     chan time.Time
}

func (f *Fake) TimerAfter(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{fireAt: f.now.Add(d), ch: make(chan time.Time, 1)}
	f.timers = append(f.timers, t)
	return t.ch
}

type fakeTicker struct {
	period time.Duration
	next   time.Time
	ch     chan time.Time
	mu     *sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (f *Fake) NewTicker(d time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{period: d, next: f.now.Add(d), ch: make(chan time.Time, 16), mu: &f.mu}
	f.tickers = append(f.tickers, t)
	return t
}

// Advance moves time forward by d, firing any timers/tickers whose deadline
// has passed (tickers may fire multiple times if d spans several periods).
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target := f.now.Add(d)

	remaining := f.timers[:0]
	for _, t := range f.timers {
		if !t.fireAt.After(target) {
			select {
			case t.ch <- target:
			default:
			}
		} else {
			remaining = append(remaining, t)
		}
	}
	f.timers = remaining

	for _, t := range f.tickers {
		if t.stopped {
			continue
		}
		for !t.next.After(target) {
			select {
			case t.ch <- t.next:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}

	f.now = target
}
