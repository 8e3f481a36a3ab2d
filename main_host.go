//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"aegis/app"
	"aegis/hal"
	"aegis/internal/bootcfg"
	"aegis/kernel"
	"aegis/monitor"

	"golang.org/x/sync/errgroup"
)

var errStopped = errors.New("stopped")

type options struct {
	headless bool
	run      hal.HeadlessConfig
	config   string
	capture  string
	logLevel string
	monitor  bool
}

func main() {
	var o options
	flag.BoolVar(&o.headless, "headless", false, "Run without a window.")
	flag.IntVar(&o.run.Hz, "hz", 0, "Tick rate in headless mode (0 = follow the boot table tick_ms).")
	flag.Uint64Var(&o.run.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.StringVar(&o.config, "config", "", "Boot task table (YAML). Empty uses the built-in table.")
	flag.StringVar(&o.run.Options.SerialPort, "uart", "", "Host serial device to mirror the console onto.")
	flag.IntVar(&o.run.Options.Baud, "baud", 115200, "Baud rate for -uart.")
	flag.StringVar(&o.capture, "capture", "", "Append console output to this file.")
	flag.BoolVar(&o.monitor, "monitor", false, "Run the operator monitor on the controlling terminal.")
	flag.StringVar(&o.logLevel, "log-level", "", "Kernel log level: error, warn, info or debug.")
	flag.Parse()

	if err := run(o); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(o options) error {
	boot, err := bootcfg.Load(o.config)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		if _, err := kernel.ParseLogLevel(o.logLevel); err != nil {
			return err
		}
		boot.LogLevel = o.logLevel
	}
	o.run.Options.TickPeriodMs = boot.TickMs

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	var sys *app.System
	ready := make(chan *app.System, 1)
	newApp := func(h hal.HAL) func() error {
		s, err := app.New(h, app.Config{
			Boot:         boot,
			MirrorSerial: o.headless || o.run.Options.SerialPort != "",
			CapturePath:  o.capture,
			KeepOnHalt:   !o.headless,
		})
		if err != nil {
			return func() error { return err }
		}
		sys = s
		ready <- s
		return func() error {
			if ctx.Err() != nil {
				return errStopped
			}
			return s.Step()
		}
	}

	if o.monitor {
		g.Go(func() error {
			select {
			case s := <-ready:
				err := monitor.Run(ctx, s.Machine())
				if errors.Is(err, monitor.ErrQuit) {
					return errStopped
				}
				return err
			case <-ctx.Done():
				return nil
			}
		})
	}

	var runErr error
	if o.headless {
		g.Go(func() error {
			defer stop()
			return hal.RunHeadless(ctx, newApp, o.run)
		})
	} else {
		// The window must own the main goroutine.
		runErr = hal.RunWindow(newApp, o.run.Options)
		stop()
	}

	err = g.Wait()
	if sys != nil {
		if cerr := sys.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if runErr != nil {
		err = runErr
	}
	if errors.Is(err, errStopped) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
