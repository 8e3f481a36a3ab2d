package kernel

import "testing"

func TestNotifyPendingThenWait(t *testing.T) {
	h := newHarness(t, spec("waiter", 2, CapWaitNotify), spec("notifier", 2, CapNotify))

	h.sys(1, SysNotify, 0, 0b0101)
	h.sys(1, SysNotify, 0, 0b0010)
	if got := h.k.tcbs[0].NotifyPending; got != 0b0111 {
		t.Fatalf("NotifyPending = %#b, want 0b111", got)
	}

	h.sys(0, SysWaitNotify, 0)
	if got := h.x0(0); got != 0b0111 {
		t.Fatalf("wait X0 = %#b, want 0b111", got)
	}
	if got := h.state(0); got != Running {
		t.Fatalf("state = %s, want running (no block)", got)
	}
	if got := h.k.tcbs[0].NotifyPending; got != 0 {
		t.Fatalf("NotifyPending = %#b, want 0", got)
	}
}

func TestWaitBlocksUntilNotified(t *testing.T) {
	h := newHarness(t, spec("waiter", 2, CapWaitNotify), spec("notifier", 2, CapNotify))

	h.sys(0, SysWaitNotify, 0)
	if got := h.state(0); got != Blocked || !h.k.IsWaitingNotification(0) {
		t.Fatalf("state = %s, waiting = %v; want blocked and waiting", got, h.k.IsWaitingNotification(0))
	}

	h.sys(1, SysNotify, 0, 0)
	if got := h.state(0); got != Blocked {
		t.Fatalf("zero bits woke the waiter")
	}

	h.sys(1, SysNotify, 0, 0x80)
	if got := h.state(0); got != Ready {
		t.Fatalf("state = %s, want ready", got)
	}
	if got := h.x0(0); got != 0x80 {
		t.Fatalf("waiter X0 = %#x, want 0x80", got)
	}
	if h.k.IsWaitingNotification(0) || h.k.tcbs[0].NotifyPending != 0 {
		t.Fatalf("notification state not cleared after delivery")
	}
}

func TestNotifyInvalidTarget(t *testing.T) {
	h := newHarness(t, spec("notifier", 2, CapNotify))
	h.sys(0, SysNotify, NumTasks, 1)
	if got := h.x0(0); got != ErrNotifyTarget {
		t.Fatalf("X0 = %#x, want %#x", got, uint64(ErrNotifyTarget))
	}
}

func TestFaultClearsNotifyWait(t *testing.T) {
	h := newHarness(t, spec("waiter", 2, CapWaitNotify), spec("notifier", 2, CapNotify))
	h.sys(0, SysWaitNotify, 0)
	h.k.FaultTask(0)

	h.k.DeliverNotification(0, 1)
	if got := h.state(0); got != Faulted {
		t.Fatalf("notification revived a faulted task: state = %s", got)
	}
	if h.k.IsWaitingNotification(NumTasks) {
		t.Fatalf("IsWaitingNotification(out of range) = true")
	}
}
