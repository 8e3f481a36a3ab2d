package kernel

import (
	"errors"
	"testing"
)

func TestWriteWithoutCapabilityFaults(t *testing.T) {
	h := newHarness(t, spec("nocaps", 3, CapNone))
	h.mmu.mem[0x4000_2000] = 'x'

	if got := RequiredCapability(uint64(SysWrite), 0); got != CapWrite {
		t.Fatalf("RequiredCapability(write) = %s, want WRITE", got)
	}
	h.sys(0, SysWrite, 0, 0x4000_2000, 1)
	if got := h.state(0); got != Faulted {
		t.Fatalf("state = %s, want faulted", got)
	}
	if h.console.Len() != 0 {
		t.Fatalf("console = %q, want nothing written", h.console.String())
	}
	if !h.logged("CAP DENIED: write (#4) needs WRITE") {
		t.Fatalf("missing CAP DENIED log line: %q", h.log.lines)
	}
	if got := h.k.Current(); got != IdleTask {
		t.Fatalf("Current() = %d, want idle", got)
	}
}

func TestWriteCopiesUserBytes(t *testing.T) {
	h := newHarness(t, spec("hello", 3, CapWrite))
	for i, c := range []byte("hi\n") {
		h.mmu.mem[0x4000_3000+uint64(i)] = c
	}

	h.sys(0, SysWrite, 0, 0x4000_3000, 3)
	if got := h.console.String(); got != "hi\n" {
		t.Fatalf("console = %q, want %q", got, "hi\n")
	}

	h.sys(0, SysWrite, 0, 0x1000, 3)
	h.sys(0, SysWrite, 0, 0x4000_3000, 0)
	h.sys(0, SysWrite, 0, 0x4000_3000, MaxWriteLen+1)
	h.mmu.unmapped = true
	h.sys(0, SysWrite, 0, 0x4000_3000, 3)
	if got := h.console.String(); got != "hi\n" {
		t.Fatalf("console = %q after invalid writes, want unchanged", got)
	}
	if got := h.state(0); got != Running {
		t.Fatalf("state = %s, want running", got)
	}
}

func TestValidateWriteArgs(t *testing.T) {
	tests := []struct {
		addr, n uint64
		want    bool
	}{
		{UserRAMBase, 1, true},
		{UserRAMBase, MaxWriteLen, true},
		{UserRAMEnd - 256, 256, true},
		{UserRAMEnd - 255, 256, false},
		{UserRAMBase, 0, false},
		{UserRAMBase, MaxWriteLen + 1, false},
		{UserRAMBase - 1, 2, false},
		{^uint64(0) - 10, 20, false},
	}
	for _, tt := range tests {
		if got := ValidateWriteArgs(tt.addr, tt.n); got != tt.want {
			t.Fatalf("ValidateWriteArgs(%#x, %d) = %v, want %v", tt.addr, tt.n, got, tt.want)
		}
	}
}

func TestUnknownSyscallFaults(t *testing.T) {
	h := newHarness(t, spec("a", 3, CapAll))
	h.sys(0, Syscall(99), 0)
	if got := h.state(0); got != Faulted {
		t.Fatalf("state = %s, want faulted", got)
	}
	if !h.logged("UNSATISFIABLE") {
		t.Fatalf("missing denial log line")
	}
}

func TestUserFaultRecovers(t *testing.T) {
	h := newHarness(t, spec("crash", 3, CapYield))
	h.cpu.PC = 0x4000_1234
	if err := h.k.Trap(&h.cpu, Trap{Kind: TrapFault, Class: FaultInstructionAbort, Addr: 0x10}); err != nil {
		t.Fatalf("Trap() err = %v, want nil", err)
	}
	if got := h.state(0); got != Faulted {
		t.Fatalf("state = %s, want faulted", got)
	}
	if _, halted := h.k.Halted(); halted {
		t.Fatalf("kernel halted on a user fault")
	}
	if h.k.tcbs[0].Frame.PC != 0x4000_1234 {
		t.Fatalf("faulting context not saved")
	}
}

func TestKernelFaultHalts(t *testing.T) {
	h := newHarness(t, spec("a", 3, CapYield))
	err := h.k.Trap(&h.cpu, Trap{Kind: TrapFault, FromKernel: true, Class: FaultDataAbort, Addr: 0x8})
	if !errors.Is(err, ErrHalted) {
		t.Fatalf("Trap() err = %v, want ErrHalted", err)
	}
	info, halted := h.k.Halted()
	if !halted || info.Trap.Class != FaultDataAbort || len(info.Stack) == 0 {
		t.Fatalf("Halted() = (%+v, %v)", info.Trap, halted)
	}
	if h.halts != 1 {
		t.Fatalf("OnHalt called %d times, want 1", h.halts)
	}

	h.cpu.X[RegSyscall] = uint64(SysYield)
	if err := h.k.Trap(&h.cpu, Trap{Kind: TrapSyscall}); !errors.Is(err, ErrHalted) {
		t.Fatalf("Trap() after halt err = %v, want ErrHalted", err)
	}
	h.k.Trap(&h.cpu, Trap{Kind: TrapFault, Class: FaultSError})
	if h.halts != 1 {
		t.Fatalf("OnHalt called %d times, want 1", h.halts)
	}
}

func TestSErrorHalts(t *testing.T) {
	h := newHarness(t, spec("a", 3, CapYield))
	if err := h.k.Trap(&h.cpu, Trap{Kind: TrapFault, Class: FaultSError}); !errors.Is(err, ErrHalted) {
		t.Fatalf("Trap(SError) err = %v, want ErrHalted", err)
	}
}

func TestTickAccounting(t *testing.T) {
	h := newHarness(t, spec("a", 3, CapYield))
	h.tick(5)
	if got := h.k.Ticks(); got != 5 {
		t.Fatalf("Ticks() = %d, want 5", got)
	}
	if got := h.k.tcbs[0].TicksUsed; got != 5 {
		t.Fatalf("TicksUsed = %d, want 5", got)
	}
	if got := len(h.gic.eoi); got != 5 {
		t.Fatalf("EndInterrupt calls = %d, want 5", got)
	}
	if !h.gic.enabled[TimerINTID] {
		t.Fatalf("timer not enabled at boot")
	}
}

func TestDeviceMapDelegates(t *testing.T) {
	h := newHarness(t, spec("drv", 3, CapDeviceMap))
	h.mmu.device = ErrDeviceInvalid
	h.sys(0, SysDeviceMap, 0, 9)
	if got := h.x0(0); got != ErrDeviceInvalid {
		t.Fatalf("X0 = %#x, want %#x", got, uint64(ErrDeviceInvalid))
	}
}

func TestLogFormatAndLevel(t *testing.T) {
	if got, want := FormatLogLine(0x1F, 3, LevelWarn, "hello"), "[TICK:0000001F] [T3] [WARN ] hello"; got != want {
		t.Fatalf("FormatLogLine() = %q, want %q", got, want)
	}

	log := &lineLog{}
	k := New(Config{Logger: log, LogLevel: LevelWarn})
	k.logf(LevelInfo, "quiet")
	k.logf(LevelError, "loud")
	if len(log.lines) != 1 || log.lines[0] != "[TICK:00000000] [T7] [ERROR] loud" {
		t.Fatalf("lines = %q", log.lines)
	}

	for in, want := range map[string]LogLevel{"debug": LevelDebug, "WARN": LevelWarn, "": LevelInfo, "error": LevelError} {
		got, err := ParseLogLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLogLevel(%q) = (%s, %v), want %s", in, got, err, want)
		}
	}
	if _, err := ParseLogLevel("loud"); err == nil {
		t.Fatalf("ParseLogLevel(loud) err = nil")
	}
}

func TestSyscallString(t *testing.T) {
	if got := SysWaitNotify.String(); got != "wait_notify" {
		t.Fatalf("String() = %q", got)
	}
	if got := Syscall(42).String(); got != "syscall(42)" {
		t.Fatalf("String() = %q", got)
	}
}
