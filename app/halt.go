package app

import (
	"fmt"
	"strings"

	"aegis/kernel"
)

const (
	sgrRed   = "\x1b[31m"
	sgrReset = "\x1b[0m"
)

// onHalt reports a kernel halt on the log and on the console. It runs inside
// the machine's trap handling and must not call back into the machine.
func (s *System) onHalt(info kernel.HaltInfo) {
	lines := haltReport(info)
	if l := s.h.Logger(); l != nil {
		for _, line := range lines {
			l.WriteLineString(line)
		}
		for _, line := range strings.Split(string(info.Stack), "\n") {
			if line != "" {
				l.WriteLineString(line)
			}
		}
	}

	s.con.Clear()
	fmt.Fprintf(s.con, "%s%s%s\n", sgrRed, lines[0], sgrReset)
	for _, line := range lines[1:] {
		fmt.Fprintln(s.con, line)
	}
}

// haltReport renders the first lines of a halt report. The first line is
// the headline.
func haltReport(info kernel.HaltInfo) []string {
	f := info.Frame
	lines := []string{
		"AegisOS halted",
		"reason: " + info.Reason,
		fmt.Sprintf("task: T%d  tick: %d", info.Task, info.Tick),
		fmt.Sprintf("pc: %#x  sp: %#x  pstate: %#x", f.PC, f.SP, f.PSTATE),
	}
	for i := 0; i < 8; i += 2 {
		lines = append(lines, fmt.Sprintf("x%d: %#x  x%d: %#x", i, f.X[i], i+1, f.X[i+1]))
	}
	return lines
}
