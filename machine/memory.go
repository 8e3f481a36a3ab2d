package machine

import (
	"errors"
	"fmt"
	"io"

	"aegis/kernel"
	"aegis/programs"
)

// Address map of the host board. User addresses are identity mapped.
const (
	PageSize = 4096

	// TextBase is where task entry points live, TextStride apart.
	TextBase   = kernel.UserRAMBase
	TextStride = 0x1_0000

	// RegionBase is where per-task data and stack regions are carved.
	RegionBase = 0x4200_0000

	numDevices = 1
)

var ErrOutOfMemory = errors.New("machine: user RAM exhausted")

type region struct {
	base, size uint64
}

func (r region) contains(addr uint64) bool {
	return r.size != 0 && addr >= r.base && addr < r.base+r.size
}

// Memory is the board's RAM and per-task address spaces. It implements
// kernel.AddressSpaces.
type Memory struct {
	pages   map[uint64]*[PageSize]byte
	regions [kernel.NumTasks]region
	shared  [kernel.NumTasks]map[uint64]bool
	devices [kernel.NumTasks]bool
	next    uint64

	uart   io.Writer
	active kernel.TaskID
}

// NewMemory creates an empty RAM. Bytes stored to the UART data register go
// to uart.
func NewMemory(uart io.Writer) *Memory {
	if uart == nil {
		uart = io.Discard
	}
	m := &Memory{
		pages:  make(map[uint64]*[PageSize]byte),
		next:   RegionBase,
		uart:   uart,
		active: kernel.IdleTask,
	}
	for i := range m.shared {
		m.shared[i] = make(map[uint64]bool)
	}
	return m
}

// Carve assigns task a private region of size bytes and returns its base.
func (m *Memory) Carve(task kernel.TaskID, size uint64) (uint64, error) {
	if task >= kernel.NumTasks {
		return 0, fmt.Errorf("machine: carve: bad task %d", task)
	}
	size = (size + PageSize - 1) &^ (PageSize - 1)
	if size == 0 || m.next+size > kernel.UserRAMEnd {
		return 0, fmt.Errorf("%w: T%d wants %d bytes", ErrOutOfMemory, task, size)
	}
	m.regions[task] = region{base: m.next, size: size}
	m.next += size
	return m.regions[task].base, nil
}

// Region returns the base and size of a task's private region.
func (m *Memory) Region(task kernel.TaskID) (base, size uint64) {
	if task >= kernel.NumTasks {
		return 0, 0
	}
	r := m.regions[task]
	return r.base, r.size
}

// EntryPoint returns the text address of a task slot.
func EntryPoint(task kernel.TaskID) uint64 {
	return TextBase + uint64(task)*TextStride
}

func (m *Memory) Switch(task kernel.TaskID) { m.active = task }

// Active returns the task whose address space is live.
func (m *Memory) Active() kernel.TaskID { return m.active }

func (m *Memory) MapPage(task kernel.TaskID, phys uint64) {
	if task < kernel.NumTasks {
		m.shared[task][phys&^(PageSize-1)] = true
	}
}

func (m *Memory) UnmapPage(task kernel.TaskID, phys uint64) {
	if task < kernel.NumTasks {
		delete(m.shared[task], phys&^(PageSize-1))
	}
}

// Mapped reports whether a shared page is mapped for task.
func (m *Memory) Mapped(task kernel.TaskID, phys uint64) bool {
	return task < kernel.NumTasks && m.shared[task][phys&^(PageSize-1)]
}

// MapDevice exposes device registers to task. Device 0 is UART0.
func (m *Memory) MapDevice(task kernel.TaskID, device uint64) uint64 {
	if device >= numDevices {
		return kernel.ErrDeviceInvalid
	}
	if task >= kernel.NumTasks {
		return kernel.ErrDeviceTask
	}
	m.devices[task] = true
	return 0
}

func (m *Memory) ReadUser(task kernel.TaskID, addr uint64, dst []byte) bool {
	if !m.accessible(task, addr, uint64(len(dst))) {
		return false
	}
	m.copyOut(addr, dst)
	return true
}

// accessible reports whether every byte of [addr, addr+n) is in task's
// region or in a page shared with it.
func (m *Memory) accessible(task kernel.TaskID, addr, n uint64) bool {
	if task >= kernel.NumTasks || n == 0 || addr+n < addr {
		return false
	}
	r := m.regions[task]
	for p := addr &^ (PageSize - 1); p < addr+n; p += PageSize {
		if r.contains(p) || m.shared[task][p] {
			continue
		}
		return false
	}
	return true
}

func (m *Memory) page(addr uint64) *[PageSize]byte {
	pn := addr &^ (PageSize - 1)
	p := m.pages[pn]
	if p == nil {
		p = new([PageSize]byte)
		m.pages[pn] = p
	}
	return p
}

func (m *Memory) copyOut(addr uint64, dst []byte) {
	for len(dst) > 0 {
		off := addr & (PageSize - 1)
		n := copy(dst, m.page(addr)[off:])
		dst = dst[n:]
		addr += uint64(n)
	}
}

func (m *Memory) copyIn(addr uint64, src []byte) {
	for len(src) > 0 {
		off := addr & (PageSize - 1)
		n := copy(m.page(addr)[off:], src)
		src = src[n:]
		addr += uint64(n)
	}
}

func (m *Memory) isUART(addr uint64) bool {
	return addr&^(PageSize-1) == programs.UART0Base
}

// View returns task's view of memory, as seen by its program.
func (m *Memory) View(task kernel.TaskID) programs.Memory {
	return taskView{m: m, task: task}
}

type taskView struct {
	m    *Memory
	task kernel.TaskID
}

func (v taskView) Read(addr uint64, dst []byte) bool {
	if v.m.isUART(addr) {
		if !v.m.devices[v.task] {
			return false
		}
		clear(dst)
		return true
	}
	return v.m.ReadUser(v.task, addr, dst)
}

func (v taskView) Write(addr uint64, src []byte) bool {
	if v.m.isUART(addr) {
		if !v.m.devices[v.task] {
			return false
		}
		if addr == programs.UART0Base {
			_, _ = v.m.uart.Write(src)
		}
		return true
	}
	if !v.m.accessible(v.task, addr, uint64(len(src))) {
		return false
	}
	v.m.copyIn(addr, src)
	return true
}
