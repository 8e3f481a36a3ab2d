// Command bootcheck validates a boot task table and prints the layout the
// board would boot with. With -ticks it also runs the board headless and
// prints the console.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"aegis/hal"
	"aegis/internal/bootcfg"
	"aegis/kernel"
	"aegis/machine"
)

func main() {
	var (
		config = flag.String("config", "", "Boot task table (YAML). Empty checks the built-in table.")
		ticks  = flag.Uint64("ticks", 0, "Run the board for N ticks after checking.")
		logs   = flag.Bool("log", false, "Print kernel log lines while running.")
	)
	flag.Parse()

	if err := run(os.Stdout, *config, *ticks, *logs); err != nil {
		fatalf("error: %v", err)
	}
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func run(out io.Writer, path string, ticks uint64, logs bool) error {
	boot, err := bootcfg.Load(path)
	if err != nil {
		return err
	}

	console := io.Discard
	if ticks > 0 {
		console = out
	}
	var logger kernel.Logger
	if logs {
		logger = hal.NewLogger(out)
	}
	m, err := machine.New(machine.Config{Boot: boot, Console: console, Logger: logger})
	if err != nil {
		return err
	}
	if err := report(out, boot, m); err != nil {
		return err
	}

	for i := uint64(0); i < ticks; i++ {
		if err := m.Tick(); err != nil {
			return fmt.Errorf("tick %d: %w", i+1, err)
		}
	}
	return nil
}

func report(out io.Writer, boot *bootcfg.File, m *machine.Machine) error {
	fmt.Fprintf(out, "tick %dms, sensor every %d ticks, log %s\n", boot.TickMs, boot.SensorPeriod, boot.Level())

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tNAME\tPRI\tENTRY\tREGION\tSTACK\tCAPS")
	for _, t := range m.Tasks() {
		if t.State == kernel.Inactive {
			continue
		}
		base, size := m.Region(t.ID)
		fmt.Fprintf(tw, "%d\t%s\t%d\t%#x\t%#x+%d\t%#x\t%s\n",
			t.ID, t.Name, t.BasePriority, machine.EntryPoint(t.ID), base, size, base+size, t.Caps)
	}
	return tw.Flush()
}
