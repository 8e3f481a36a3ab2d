package machine

import (
	"bytes"
	"errors"
	"testing"

	"aegis/kernel"
	"aegis/programs"
)

func TestGICAcknowledgeOrder(t *testing.T) {
	var g GIC
	g.Raise(40)
	g.Raise(kernel.TimerINTID)
	if g.HasPending() {
		t.Fatalf("HasPending() = true with nothing enabled")
	}
	if got := g.Acknowledge(); got != kernel.SpuriousINTID {
		t.Fatalf("Acknowledge() = %d, want spurious", got)
	}

	g.Enable(40)
	g.Enable(kernel.TimerINTID)
	if got := g.Acknowledge(); got != kernel.TimerINTID {
		t.Fatalf("Acknowledge() = %d, want %d", got, kernel.TimerINTID)
	}
	// Active lines are not delivered again until EOI.
	g.Raise(kernel.TimerINTID)
	if got := g.Acknowledge(); got != 40 {
		t.Fatalf("Acknowledge() = %d, want 40", got)
	}
	if g.HasPending() {
		t.Fatalf("HasPending() = true while timer is active")
	}
	g.EndInterrupt(kernel.TimerINTID)
	if got := g.Acknowledge(); got != kernel.TimerINTID {
		t.Fatalf("Acknowledge() after EOI = %d, want %d", got, kernel.TimerINTID)
	}

	g.Raise(50)
	g.Enable(50)
	g.Disable(50)
	if g.IsEnabled(50) || !g.IsPending(50) {
		t.Fatalf("INTID 50 enabled=%v pending=%v, want masked and pending", g.IsEnabled(50), g.IsPending(50))
	}
}

func TestMemoryRegions(t *testing.T) {
	m := NewMemory(nil)
	base0, err := m.Carve(0, 5000)
	if err != nil {
		t.Fatalf("Carve(0) err = %v", err)
	}
	base1, _ := m.Carve(1, PageSize)
	if base0 != RegionBase || base1 != RegionBase+2*PageSize {
		t.Fatalf("bases = %#x, %#x", base0, base1)
	}
	if _, size := m.Region(0); size != 2*PageSize {
		t.Fatalf("Region(0) size = %d, want %d", size, 2*PageSize)
	}

	v0 := m.View(0)
	if !v0.Write(base0+PageSize-2, []byte("span")) {
		t.Fatalf("Write across own pages failed")
	}
	got := make([]byte, 4)
	if !m.ReadUser(0, base0+PageSize-2, got) || string(got) != "span" {
		t.Fatalf("ReadUser() = %q", got)
	}
	if m.ReadUser(1, base0, got) {
		t.Fatalf("T1 read T0's region")
	}
	if v0.Write(base1, []byte{1}) {
		t.Fatalf("T0 wrote T1's region")
	}
	if v0.Write(0, []byte{1}) {
		t.Fatalf("write to address 0 succeeded")
	}
	if m.ReadUser(0, base0, nil) {
		t.Fatalf("empty read succeeded")
	}

	if _, err := m.Carve(2, kernel.UserRAMEnd); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("Carve(huge) err = %v, want %v", err, ErrOutOfMemory)
	}
}

func TestMemoryGrantPages(t *testing.T) {
	m := NewMemory(nil)
	page, _ := kernel.GrantPage(1)
	if m.View(2).Write(page, []byte{7}) {
		t.Fatalf("write to unmapped grant page succeeded")
	}
	m.MapPage(2, page)
	m.MapPage(3, page)
	if !m.View(2).Write(page+8, []byte{7}) {
		t.Fatalf("owner write failed")
	}
	var b [1]byte
	if !m.View(3).Read(page+8, b[:]) || b[0] != 7 {
		t.Fatalf("peer read = %v, want 7", b[0])
	}
	m.UnmapPage(3, page)
	if m.Mapped(3, page) || m.View(3).Read(page, b[:]) {
		t.Fatalf("peer still sees the page after unmap")
	}
}

func TestMemoryDevices(t *testing.T) {
	var uart bytes.Buffer
	m := NewMemory(&uart)
	if m.View(4).Write(programs.UART0Base, []byte{'x'}) {
		t.Fatalf("UART write before device_map succeeded")
	}
	if got := m.MapDevice(4, 1); got != kernel.ErrDeviceInvalid {
		t.Fatalf("MapDevice(4, 1) = %#x, want %#x", got, uint64(kernel.ErrDeviceInvalid))
	}
	if got := m.MapDevice(kernel.NoTask, 0); got != kernel.ErrDeviceTask {
		t.Fatalf("MapDevice(NoTask, 0) = %#x, want %#x", got, uint64(kernel.ErrDeviceTask))
	}
	if got := m.MapDevice(4, 0); got != 0 {
		t.Fatalf("MapDevice(4, 0) = %#x, want 0", got)
	}
	v := m.View(4)
	v.Write(programs.UART0Base, []byte{'o'})
	v.Write(programs.UART0Base, []byte{'k'})
	v.Write(programs.UART0Base+0x18, []byte{0xFF})
	if uart.String() != "ok" {
		t.Fatalf("uart = %q, want ok", uart.String())
	}
	if m.View(5).Write(programs.UART0Base, []byte{'x'}) {
		t.Fatalf("T5 wrote T4's device")
	}

	m.Switch(4)
	if m.Active() != 4 {
		t.Fatalf("Active() = %d, want 4", m.Active())
	}
}

func TestEntryPoint(t *testing.T) {
	if got := EntryPoint(2); got != kernel.UserRAMBase+2*TextStride {
		t.Fatalf("EntryPoint(2) = %#x", got)
	}
}
