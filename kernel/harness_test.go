package kernel

import (
	"bytes"
	"strings"
	"testing"
)

type fakeMMU struct {
	switches []TaskID
	mapped   map[TaskID]map[uint64]bool
	mem      map[uint64]byte
	unmapped bool // ReadUser fails
	device   uint64
}

func newFakeMMU() *fakeMMU {
	return &fakeMMU{mapped: make(map[TaskID]map[uint64]bool), mem: make(map[uint64]byte)}
}

func (m *fakeMMU) Switch(id TaskID) { m.switches = append(m.switches, id) }

func (m *fakeMMU) ReadUser(_ TaskID, addr uint64, dst []byte) bool {
	if m.unmapped {
		return false
	}
	for i := range dst {
		dst[i] = m.mem[addr+uint64(i)]
	}
	return true
}

func (m *fakeMMU) MapPage(id TaskID, phys uint64) {
	if m.mapped[id] == nil {
		m.mapped[id] = make(map[uint64]bool)
	}
	m.mapped[id][phys] = true
}

func (m *fakeMMU) UnmapPage(id TaskID, phys uint64) { delete(m.mapped[id], phys) }

func (m *fakeMMU) MapDevice(TaskID, uint64) uint64 { return m.device }

func (m *fakeMMU) isMapped(id TaskID, phys uint64) bool { return m.mapped[id][phys] }

type fakeGIC struct {
	pending []uint32
	enabled map[uint32]bool
	eoi     []uint32
}

func (g *fakeGIC) Acknowledge() uint32 {
	if len(g.pending) == 0 {
		return SpuriousINTID
	}
	id := g.pending[0]
	g.pending = g.pending[1:]
	return id
}

func (g *fakeGIC) EndInterrupt(id uint32) { g.eoi = append(g.eoi, id) }
func (g *fakeGIC) Enable(id uint32)       { g.enabled[id] = true }
func (g *fakeGIC) Disable(id uint32)      { g.enabled[id] = false }

type lineLog struct{ lines []string }

func (l *lineLog) WriteLineString(s string) { l.lines = append(l.lines, s) }

type harness struct {
	t       *testing.T
	k       *Kernel
	cpu     Frame
	mmu     *fakeMMU
	gic     *fakeGIC
	log     *lineLog
	console bytes.Buffer
	halts   int
}

func spec(name string, prio uint8, caps CapMask) TaskSpec {
	return TaskSpec{Name: name, EntryPoint: 0x4000_1000, StackTop: 0x4000_8000, Caps: caps, Priority: prio}
}

// newHarness boots specs into slots 0.. and an idle task into the idle slot
// unless specs already fill it.
func newHarness(t *testing.T, specs ...TaskSpec) *harness {
	t.Helper()
	h := &harness{
		t:   t,
		mmu: newFakeMMU(),
		gic: &fakeGIC{enabled: make(map[uint32]bool)},
		log: &lineLog{},
	}
	h.k = New(Config{
		AddressSpaces: h.mmu,
		Interrupts:    h.gic,
		Console:       &h.console,
		Logger:        h.log,
		LogLevel:      LevelDebug,
		OnHalt:        func(HaltInfo) { h.halts++ },
	})
	table := make([]TaskSpec, NumTasks)
	copy(table, specs)
	if table[IdleTask].EntryPoint == 0 {
		table[IdleTask] = TaskSpec{Name: "idle", EntryPoint: 0x4000_7000, StackTop: 0x4000_F000, Caps: CapYield}
	}
	h.k.Boot(table, &h.cpu)
	return h
}

// become makes id the running task without a scheduling decision.
func (h *harness) become(id TaskID) {
	k := h.k
	if t := &k.tcbs[k.current]; t.State == Running {
		t.State = Ready
	}
	k.tcbs[id].State = Running
	k.current = id
	h.cpu = k.tcbs[id].Frame
}

// sys issues a syscall from task id.
func (h *harness) sys(id TaskID, nr Syscall, ep uint64, args ...uint64) {
	h.t.Helper()
	h.become(id)
	copy(h.cpu.X[:], args)
	h.cpu.X[RegSyscall] = uint64(nr)
	h.cpu.X[RegEndpoint] = ep
	if err := h.k.Trap(&h.cpu, Trap{Kind: TrapSyscall}); err != nil {
		h.t.Fatalf("Trap(%s) err = %v, want nil", nr, err)
	}
}

// tick delivers n timer interrupts to whichever task is running.
func (h *harness) tick(n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		h.gic.pending = append(h.gic.pending, TimerINTID)
		if err := h.k.Trap(&h.cpu, Trap{Kind: TrapIRQ}); err != nil {
			h.t.Fatalf("Trap(timer) err = %v, want nil", err)
		}
	}
}

func (h *harness) state(id TaskID) State { return h.k.tcbs[id].State }

func (h *harness) x0(id TaskID) uint64 { return h.k.tcbs[id].Frame.X[0] }

func (h *harness) logged(substr string) bool {
	for _, l := range h.log.lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}
