package hal

import (
	"sync/atomic"
	"time"
)

// maxCatchUp bounds the ticks emitted for one wall-clock gap, so a stalled
// window does not replay seconds of timer interrupts at once.
const maxCatchUp = 50

// hostTime is the timer: a buffered stream of tick sequence numbers. Ticks
// that do not fit the buffer are counted as dropped.
type hostTime struct {
	ch     chan uint64
	seq    uint64
	period time.Duration

	last    time.Time
	owed    time.Duration
	dropped atomic.Uint64
}

func newHostTime(periodMs int) *hostTime {
	if periodMs <= 0 {
		periodMs = 10
	}
	return &hostTime{ch: make(chan uint64, 1024), period: time.Duration(periodMs) * time.Millisecond}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

// Dropped returns the number of ticks lost to a full buffer or a clamped
// catch-up.
func (t *hostTime) Dropped() uint64 { return t.dropped.Load() }

// advance emits the ticks owed between the previous call and now. The first
// call emits one tick.
func (t *hostTime) advance(now time.Time) {
	if t.last.IsZero() {
		t.last = now
		t.emit(1)
		return
	}
	t.owed += now.Sub(t.last)
	t.last = now

	n := uint64(t.owed / t.period)
	t.owed %= t.period
	if n > maxCatchUp {
		t.dropped.Add(n - maxCatchUp)
		n = maxCatchUp
	}
	t.emit(n)
}

func (t *hostTime) emit(n uint64) {
	for ; n > 0; n-- {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
			t.dropped.Add(1)
		}
	}
}
