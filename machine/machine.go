// Package machine is the host board: a CPU that runs task programs until
// they trap, an interrupt controller, RAM with per-task address spaces and
// a sensor device, all driven by the kernel's trap entry.
package machine

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"aegis/internal/bootcfg"
	"aegis/kernel"
	"aegis/programs"
)

// DefaultStepsPerTick bounds the traps taken between two timer interrupts.
const DefaultStepsPerTick = 16

var (
	ErrUnknownProgram = errors.New("machine: unknown program")
	ErrBadTask        = errors.New("machine: bad task")
	ErrBadINTID       = errors.New("machine: bad interrupt id")
)

// Config wires a machine.
type Config struct {
	Boot *bootcfg.File
	// Console receives SYS_WRITE output and UART stores.
	Console io.Writer
	Logger  kernel.Logger
	OnHalt  func(kernel.HaltInfo)

	StepsPerTick int
}

// Machine owns the kernel and the CPU state. Its methods are safe for
// concurrent use; each one runs to completion before the next.
type Machine struct {
	mu sync.Mutex

	k   *kernel.Kernel
	cpu kernel.Frame
	gic *GIC
	mem *Memory

	progs [kernel.NumTasks]programs.Program
	envs  [kernel.NumTasks]programs.Env

	stepsPerTick int
	sensorPeriod uint64
	ticks        uint64
	idle         bool
}

// New builds the board from a boot table and boots the kernel.
func New(cfg Config) (*Machine, error) {
	if cfg.Boot == nil {
		return nil, bootcfg.ErrNoTasks
	}
	m := &Machine{
		gic:          &GIC{},
		mem:          NewMemory(cfg.Console),
		stepsPerTick: cfg.StepsPerTick,
		sensorPeriod: cfg.Boot.SensorPeriod,
	}
	if m.stepsPerTick <= 0 {
		m.stepsPerTick = DefaultStepsPerTick
	}
	m.k = kernel.New(kernel.Config{
		AddressSpaces: m.mem,
		Interrupts:    m.gic,
		Console:       cfg.Console,
		Logger:        cfg.Logger,
		LogLevel:      cfg.Boot.Level(),
		OnHalt:        cfg.OnHalt,
	})

	var specs [kernel.NumTasks]kernel.TaskSpec
	for _, t := range cfg.Boot.Tasks {
		spec, err := m.load(t)
		if err != nil {
			return nil, err
		}
		specs[t.Slot] = spec
	}
	m.k.Boot(specs[:], &m.cpu)
	return m, nil
}

// load prepares the address space and program of one task slot.
func (m *Machine) load(t bootcfg.Task) (kernel.TaskSpec, error) {
	id := kernel.TaskID(t.Slot)
	if id >= kernel.NumTasks {
		return kernel.TaskSpec{}, fmt.Errorf("%w: slot %d", ErrBadTask, t.Slot)
	}
	p, ok := programs.Lookup(t.Program)
	if !ok {
		return kernel.TaskSpec{}, fmt.Errorf("%w: %q (slot %d)", ErrUnknownProgram, t.Program, t.Slot)
	}
	caps, err := t.CapMask()
	if err != nil {
		return kernel.TaskSpec{}, err
	}
	size, err := t.MemoryBytes()
	if err != nil {
		return kernel.TaskSpec{}, err
	}
	base, err := m.mem.Carve(id, size)
	if err != nil {
		return kernel.TaskSpec{}, err
	}

	name := t.Name
	if name == "" {
		name = t.Program
	}
	entry := EntryPoint(id)
	m.progs[id] = p
	m.envs[id] = programs.Env{Task: id, Entry: entry, Data: base, Mem: m.mem.View(id)}
	return kernel.TaskSpec{
		Name:       name,
		EntryPoint: entry,
		StackTop:   base + size,
		Caps:       caps,
		Priority:   t.Priority,
		Budget:     t.Budget,
		Heartbeat:  t.Heartbeat,
	}, nil
}

// Tick delivers one timer interrupt and runs the CPU until it idles or its
// step allowance for the tick is used up.
func (m *Machine) Tick() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ticks++
	m.gic.Raise(kernel.TimerINTID)
	if m.sensorPeriod > 0 && m.ticks%m.sensorPeriod == 0 {
		m.gic.Raise(programs.SensorINTID)
	}
	return m.run()
}

func (m *Machine) run() error {
	m.idle = false
	for i := 0; i < m.stepsPerTick; i++ {
		if m.gic.HasPending() {
			if err := m.k.Trap(&m.cpu, kernel.Trap{Kind: kernel.TrapIRQ}); err != nil {
				return err
			}
			continue
		}
		trap, ok := m.exec()
		if !ok {
			m.idle = true
			return nil
		}
		if err := m.k.Trap(&m.cpu, trap); err != nil {
			return err
		}
	}
	return nil
}

// exec runs the current task's program until its next trap.
func (m *Machine) exec() (kernel.Trap, bool) {
	cur := m.k.Current()
	p := m.progs[cur]
	if p == nil {
		return kernel.Trap{Kind: kernel.TrapFault, Class: kernel.FaultInstructionAbort, Addr: m.cpu.PC}, true
	}
	return p.Exec(&m.cpu, &m.envs[cur])
}

// RaiseIRQ latches a device interrupt. It is taken on the next tick.
func (m *Machine) RaiseIRQ(intid uint32) error {
	if intid >= kernel.SpuriousINTID {
		return fmt.Errorf("%w: %d", ErrBadINTID, intid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gic.Raise(intid)
	return nil
}

// FaultTask injects a fault into a task as if it had trapped.
func (m *Machine) FaultTask(id kernel.TaskID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id >= kernel.NumTasks {
		return fmt.Errorf("%w: %d", ErrBadTask, id)
	}
	cur := m.k.Current()
	if !m.k.FaultTask(id) {
		return fmt.Errorf("%w: T%d is not running or ready", ErrBadTask, id)
	}
	// The live registers belong to the faulted task; the scheduler has
	// already picked its successor.
	if id == cur {
		m.k.Resume(&m.cpu)
	}
	return nil
}

// InjectSError delivers an SError to the CPU. The kernel treats it as
// unrecoverable and halts.
func (m *Machine) InjectSError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.k.Trap(&m.cpu, kernel.Trap{Kind: kernel.TrapFault, Class: kernel.FaultSError})
}

// Ticks returns the number of host ticks delivered.
func (m *Machine) Ticks() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks
}

// Idle reports whether the CPU went idle during the last tick.
func (m *Machine) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idle
}

// Halted reports whether the kernel has stopped.
func (m *Machine) Halted() (kernel.HaltInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.k.Halted()
}
