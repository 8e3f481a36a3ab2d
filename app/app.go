// Package app wires the HAL, the console and the machine into a runnable
// board.
package app

import (
	"errors"
	"fmt"

	"aegis/console"
	"aegis/hal"
	"aegis/internal/bootcfg"
	"aegis/internal/buildinfo"
	"aegis/kernel"
	"aegis/machine"
)

type Config struct {
	Boot *bootcfg.File
	// MirrorSerial copies console output to the HAL serial line.
	MirrorSerial bool
	CapturePath  string
	// KeepOnHalt keeps Step returning nil after a kernel halt, leaving the
	// halt report on screen.
	KeepOnHalt   bool
	StepsPerTick int
}

// System is a booted board.
type System struct {
	h     hal.HAL
	m     *machine.Machine
	con   *console.Console
	ticks <-chan uint64

	keepOnHalt bool
	halted     bool
}

// New boots the board described by cfg on h.
func New(h hal.HAL, cfg Config) (*System, error) {
	if cfg.Boot == nil {
		f, err := bootcfg.Default()
		if err != nil {
			return nil, err
		}
		cfg.Boot = f
	}

	opts := console.Options{CapturePath: cfg.CapturePath}
	if cfg.MirrorSerial {
		if s := h.Serial(); s != nil {
			opts.Serial = s
		}
	}
	con, err := console.New(h.Display(), opts)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(con, "%s\n", buildinfo.Banner())

	s := &System{h: h, con: con, keepOnHalt: cfg.KeepOnHalt}
	if t := h.Time(); t != nil {
		s.ticks = t.Ticks()
	}

	m, err := machine.New(machine.Config{
		Boot:         cfg.Boot,
		Console:      con,
		Logger:       h.Logger(),
		OnHalt:       s.onHalt,
		StepsPerTick: cfg.StepsPerTick,
	})
	if err != nil {
		_ = con.Close()
		return nil, err
	}
	s.m = m
	return s, nil
}

// Machine returns the running board.
func (s *System) Machine() *machine.Machine { return s.m }

// Step runs one machine tick per timer tick received since the last call.
func (s *System) Step() error {
	if s.halted {
		return nil
	}
	for {
		select {
		case <-s.ticks:
			if err := s.m.Tick(); err != nil {
				return s.stop(err)
			}
		default:
			return nil
		}
	}
}

func (s *System) stop(err error) error {
	if errors.Is(err, kernel.ErrHalted) && s.keepOnHalt {
		s.halted = true
		return nil
	}
	return err
}

// Close releases the console's capture file.
func (s *System) Close() error {
	return s.con.Close()
}
