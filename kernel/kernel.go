package kernel

import "io"

// Timing constants, in timer ticks.
const (
	// RestartDelay is how long a faulted task waits before it is restarted.
	RestartDelay = 100
	// EpochLength is the budget replenishment window.
	EpochLength = 100
	// WatchdogScanPeriod is the cadence of heartbeat checks.
	WatchdogScanPeriod = 10
)

// AddressSpaces is the MMU collaborator.
type AddressSpaces interface {
	// Switch activates the address space of a task.
	Switch(task TaskID)
	// ReadUser copies user memory visible to task into dst.
	ReadUser(task TaskID, addr uint64, dst []byte) bool
	// MapPage makes a physical page accessible to task.
	MapPage(task TaskID, phys uint64)
	// UnmapPage removes a page mapping from task.
	UnmapPage(task TaskID, phys uint64)
	// MapDevice exposes a device's registers to task and returns a result code.
	MapDevice(task TaskID, device uint64) uint64
}

// InterruptController is the interrupt-controller collaborator.
type InterruptController interface {
	// Acknowledge returns the highest priority pending interrupt, or SpuriousINTID.
	Acknowledge() uint32
	EndInterrupt(intid uint32)
	Enable(intid uint32)
	Disable(intid uint32)
}

// Config wires a kernel to its collaborators. Nil fields get inert defaults.
type Config struct {
	AddressSpaces AddressSpaces
	Interrupts    InterruptController
	// Console receives SYS_WRITE output (the UART).
	Console  io.Writer
	Logger   Logger
	LogLevel LogLevel
	// OnHalt is invoked once when the kernel halts.
	OnHalt func(HaltInfo)
}

// Kernel owns every kernel table. All methods assume the caller serializes
// access: one trap is handled to completion before the next begins.
type Kernel struct {
	tcbs      [NumTasks]TCB
	endpoints [NumEndpoints]endpoint
	grants    [NumGrants]grant
	irqs      [NumIRQBindings]irqBinding

	current    TaskID
	ticks      uint64
	epochTicks uint64

	mmu     AddressSpaces
	gic     InterruptController
	console io.Writer

	log      Logger
	logLevel LogLevel

	halted   bool
	haltInfo HaltInfo
	onHalt   func(HaltInfo)

	writeBuf [MaxWriteLen]byte
}

// New creates a kernel with every slot Inactive.
func New(cfg Config) *Kernel {
	k := &Kernel{
		mmu:      cfg.AddressSpaces,
		gic:      cfg.Interrupts,
		console:  cfg.Console,
		log:      cfg.Logger,
		logLevel: cfg.LogLevel,
		onHalt:   cfg.OnHalt,
	}
	if k.mmu == nil {
		k.mmu = nopAddressSpaces{}
	}
	if k.gic == nil {
		k.gic = nopInterrupts{}
	}
	if k.console == nil {
		k.console = io.Discard
	}
	for i := range k.tcbs {
		k.tcbs[i].ID = TaskID(i)
		k.tcbs[i].replyFrom = NoTask
	}
	for i := range k.endpoints {
		k.endpoints[i].receiver = NoTask
	}
	for i := range k.grants {
		k.grants[i] = emptyGrant
	}
	k.current = IdleTask
	return k
}

// Boot loads the task table, selects the first task and loads its context into cpu.
//
// Slots beyond len(specs), and specs with a zero entry point, stay Inactive.
func (k *Kernel) Boot(specs []TaskSpec, cpu *Frame) {
	for i := 0; i < NumTasks && i < len(specs); i++ {
		s := specs[i]
		t := &k.tcbs[i]
		t.Name = s.Name
		t.EntryPoint = s.EntryPoint
		t.StackTop = s.StackTop
		t.Caps = s.Caps & CapAll
		t.BasePriority = min(s.Priority, MaxPriority)
		t.Priority = t.BasePriority
		t.Budget = s.Budget
		t.HeartbeatInterval = s.Heartbeat
		t.bootHeartbeat = s.Heartbeat
		t.LastHeartbeat = k.ticks
		if s.EntryPoint == 0 {
			continue
		}
		t.Frame.reset(s.EntryPoint, s.StackTop)
		t.State = Ready
	}
	k.gic.Enable(TimerINTID)
	k.logf(LevelInfo, "scheduler ready (%d tasks, priority-based)", NumTasks)

	k.current = IdleTask
	k.schedule()
	*cpu = k.tcbs[k.current].Frame
}

// Current returns the running task.
func (k *Kernel) Current() TaskID { return k.current }

// Ticks returns the number of timer ticks since boot.
func (k *Kernel) Ticks() uint64 { return k.ticks }

// Task returns a copy of a task's control block.
func (k *Kernel) Task(id TaskID) (TCB, bool) {
	if id >= NumTasks {
		return TCB{}, false
	}
	return k.tcbs[id], true
}

// Senders returns the tasks queued on an endpoint in service order.
func (k *Kernel) Senders(ep int) []TaskID {
	if ep < 0 || ep >= NumEndpoints {
		return nil
	}
	return k.endpoints[ep].senders.snapshot()
}

// Receiver returns the task waiting to receive on an endpoint.
func (k *Kernel) Receiver(ep int) (TaskID, bool) {
	if ep < 0 || ep >= NumEndpoints {
		return NoTask, false
	}
	r := k.endpoints[ep].receiver
	return r, r != NoTask
}

type nopAddressSpaces struct{}

func (nopAddressSpaces) Switch(TaskID)                        {}
func (nopAddressSpaces) ReadUser(TaskID, uint64, []byte) bool { return false }
func (nopAddressSpaces) MapPage(TaskID, uint64)               {}
func (nopAddressSpaces) UnmapPage(TaskID, uint64)             {}
func (nopAddressSpaces) MapDevice(TaskID, uint64) uint64      { return 0 }

type nopInterrupts struct{}

func (nopInterrupts) Acknowledge() uint32 { return SpuriousINTID }
func (nopInterrupts) EndInterrupt(uint32) {}
func (nopInterrupts) Enable(uint32)       {}
func (nopInterrupts) Disable(uint32)      {}
