package hal

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the no-window host runner.
type HeadlessConfig struct {
	// Hz is the number of kernel ticks per wall-clock second. Zero follows
	// Options.TickPeriodMs.
	Hz int
	// Ticks stops the runner after that many kernel ticks; 0 runs forever.
	Ticks   uint64
	Options Options
}

func (c HeadlessConfig) period() (time.Duration, error) {
	if c.Hz < 0 {
		return 0, fmt.Errorf("hal: invalid headless hz: %d", c.Hz)
	}
	if c.Hz > 0 {
		return time.Second / time.Duration(c.Hz), nil
	}
	ms := c.Options.TickPeriodMs
	if ms <= 0 {
		ms = 10
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// RunHeadless runs the board without opening a window, one timer interrupt
// per period.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg HeadlessConfig) error {
	d, err := cfg.period()
	if err != nil {
		return err
	}
	h, err := newHost(cfg.Options)
	if err != nil {
		return err
	}
	defer h.close()

	step := newApp(h)
	t := time.NewTicker(d)
	defer t.Stop()
	return drive(ctx, t.C, h.t, step, cfg.Ticks)
}

// drive emits one tick per clock edge and steps the board after each. It
// returns after limit ticks when limit is nonzero.
func drive(ctx context.Context, clock <-chan time.Time, ht *hostTime, step func() error, limit uint64) error {
	for n := uint64(0); limit == 0 || n < limit; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock:
		}
		ht.emit(1)
		if step == nil {
			continue
		}
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
