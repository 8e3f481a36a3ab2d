// Package monitor is the operator console on the controlling terminal. It
// inspects the board and injects interrupts and faults.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"aegis/kernel"
	"aegis/machine"

	"github.com/google/shlex"
	"github.com/mattn/go-tty"
)

// ErrQuit is returned by Exec for the quit command.
var ErrQuit = errors.New("monitor: quit")

// Board is what the monitor can see and poke. *machine.Machine implements it.
type Board interface {
	Tasks() []machine.TaskInfo
	Endpoints() []machine.Endpoint
	IRQBindings() []kernel.IRQBinding
	Grants() []kernel.GrantInfo
	Caps(id kernel.TaskID) (kernel.CapMask, error)
	RaiseIRQ(intid uint32) error
	FaultTask(id kernel.TaskID) error
	InjectSError() error
}

type command struct {
	name  string
	usage string
	run   func(m *Monitor, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{"ps", "list task slots", (*Monitor).ps},
		{"ep", "show endpoint queues", (*Monitor).endpoints},
		{"grants", "show grant slots", (*Monitor).grants},
		{"irq", "irq [intid]: list routes, or raise intid", (*Monitor).irq},
		{"fault", "fault <task>: inject a fault", (*Monitor).fault},
		{"caps", "caps <task>: show capabilities", (*Monitor).caps},
		{"serror", "inject an SError (halts the kernel)", (*Monitor).serror},
		{"help", "list commands", (*Monitor).help},
		{"quit", "stop the board", func(*Monitor, []string) error { return ErrQuit }},
	}
}

// Monitor executes command lines against a board.
type Monitor struct {
	b   Board
	out io.Writer
}

func New(b Board, out io.Writer) *Monitor {
	return &Monitor{b: b, out: out}
}

// Exec runs one command line. Blank lines are ignored.
func (m *Monitor) Exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	name := strings.ToLower(args[0])
	if name == "exit" {
		name = "quit"
	}
	for _, c := range commands {
		if c.name == name {
			return c.run(m, args[1:])
		}
	}
	return fmt.Errorf("monitor: unknown command %q (try help)", args[0])
}

// Run reads commands from the controlling terminal until ctx ends or the
// operator quits. Quitting returns ErrQuit.
func Run(ctx context.Context, b Board) error {
	t, err := tty.Open()
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	var once sync.Once
	closeTTY := func() { once.Do(func() { _ = t.Close() }) }
	defer closeTTY()

	return serve(ctx, New(b, t.Output()), t, closeTTY)
}

// lineReader is the input side of a terminal.
type lineReader interface {
	ReadString() (string, error)
}

// serve executes lines from in. When ctx ends it calls stop, which must make
// a pending ReadString fail so the reader goroutine exits.
func serve(ctx context.Context, m *Monitor, in lineReader, stop func()) error {
	type result struct {
		line string
		err  error
	}
	lines := make(chan result)
	go func() {
		for {
			s, err := in.ReadString()
			select {
			case lines <- result{s, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		fmt.Fprint(m.out, "aegis> ")
		select {
		case <-ctx.Done():
			stop()
			return nil
		case r := <-lines:
			if r.err != nil {
				if errors.Is(r.err, io.EOF) {
					return nil
				}
				return fmt.Errorf("monitor: %w", r.err)
			}
			if err := m.Exec(r.line); err != nil {
				if errors.Is(err, ErrQuit) {
					return err
				}
				fmt.Fprintln(m.out, err)
			}
		}
	}
}

func (m *Monitor) ps([]string) error {
	tw := tabwriter.NewWriter(m.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATE\tPRI\tBUDGET\tHB\tNOTIFY\tPC")
	for _, t := range m.b.Tasks() {
		mark := " "
		if t.Current {
			mark = "*"
		}
		budget := "-"
		if t.Budget != 0 {
			budget = fmt.Sprintf("%d/%d", t.TicksUsed, t.Budget)
		}
		fmt.Fprintf(tw, "%s%d\t%s\t%s\t%d/%d\t%s\t%d\t%#x\t%#x\n",
			mark, t.ID, t.Name, t.State, t.Priority, t.BasePriority, budget, t.Heartbeat, t.NotifyPending, t.PC)
	}
	return tw.Flush()
}

func (m *Monitor) endpoints([]string) error {
	for i, ep := range m.b.Endpoints() {
		recv := "-"
		if ep.Receiver != kernel.NoTask {
			recv = fmt.Sprintf("T%d", ep.Receiver)
		}
		fmt.Fprintf(m.out, "ep%d receiver=%s senders=%v\n", i, recv, ep.Senders)
	}
	return nil
}

func (m *Monitor) grants([]string) error {
	for i, g := range m.b.Grants() {
		if !g.Active {
			fmt.Fprintf(m.out, "grant %d: inactive\n", i)
			continue
		}
		fmt.Fprintf(m.out, "grant %d: T%d -> T%d page %#x\n", i, g.Owner, g.Peer, g.Phys)
	}
	return nil
}

func (m *Monitor) irq(args []string) error {
	if len(args) == 0 {
		routes := m.b.IRQBindings()
		if len(routes) == 0 {
			fmt.Fprintln(m.out, "no irq routes")
		}
		for _, r := range routes {
			fmt.Fprintf(m.out, "INTID %d -> T%d bit %#x pending_ack=%v\n", r.INTID, r.Task, r.Bit, r.PendingAck)
		}
		return nil
	}
	n, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return fmt.Errorf("irq: bad intid %q", args[0])
	}
	if err := m.b.RaiseIRQ(uint32(n)); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "raised INTID %d\n", n)
	return nil
}

func (m *Monitor) fault(args []string) error {
	id, err := taskArg("fault", args)
	if err != nil {
		return err
	}
	if err := m.b.FaultTask(id); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "faulted T%d\n", id)
	return nil
}

func (m *Monitor) caps(args []string) error {
	id, err := taskArg("caps", args)
	if err != nil {
		return err
	}
	c, err := m.b.Caps(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(m.out, "T%d: %#x %s\n", id, uint64(c), c)
	return nil
}

func (m *Monitor) serror([]string) error {
	err := m.b.InjectSError()
	if errors.Is(err, kernel.ErrHalted) {
		fmt.Fprintln(m.out, "kernel halted")
		return nil
	}
	return err
}

func (m *Monitor) help([]string) error {
	for _, c := range commands {
		fmt.Fprintf(m.out, "%-7s %s\n", c.name, c.usage)
	}
	return nil
}

// taskArg parses a task id given as "3" or "T3".
func taskArg(cmd string, args []string) (kernel.TaskID, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: %s <task>", cmd)
	}
	s := strings.TrimPrefix(strings.ToUpper(args[0]), "T")
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil || n >= kernel.NumTasks {
		return 0, fmt.Errorf("%s: bad task %q", cmd, args[0])
	}
	return kernel.TaskID(n), nil
}
