package kernel

import (
	"reflect"
	"testing"
)

const ep0Caps = CapSendEP0 | CapRecvEP0

func TestSendToWaitingReceiver(t *testing.T) {
	h := newHarness(t,
		spec("recv", 3, CapRecvEP1|CapRecvEP0),
		spec("send", 2, CapSendEP1),
	)
	h.sys(0, SysRecv, 1)
	if got := h.state(0); got != Blocked {
		t.Fatalf("receiver state = %s, want blocked", got)
	}
	if r, ok := h.k.Receiver(1); !ok || r != 0 {
		t.Fatalf("Receiver(1) = (%d, %v), want (0, true)", r, ok)
	}

	h.sys(1, SysSend, 1, 0xA, 0xB, 0xC, 0xD, 0xE)
	if got, want := h.k.tcbs[0].Frame.Payload(), [MsgRegs]uint64{0xA, 0xB, 0xC, 0xD}; got != want {
		t.Fatalf("receiver payload = %v, want %v", got, want)
	}
	if got := h.k.tcbs[0].Frame.X[4]; got == 0xE {
		t.Fatalf("X4 was copied; only %d registers are message registers", MsgRegs)
	}
	if got := h.state(0); got != Ready {
		t.Fatalf("receiver state = %s, want ready", got)
	}
	if got := h.state(1); got != Running {
		t.Fatalf("sender state = %s, want running (no block)", got)
	}
	if _, ok := h.k.Receiver(1); ok {
		t.Fatalf("Receiver(1) still set after delivery")
	}
	if _, ok := h.k.Receiver(0); ok {
		t.Fatalf("Receiver(0) set; endpoints must not cross-talk")
	}
}

func TestSendersServedFIFO(t *testing.T) {
	h := newHarness(t,
		spec("recv", 1, CapRecvEP0),
		spec("s1", 2, CapSendEP0),
		spec("s2", 2, CapSendEP0),
		spec("s3", 2, CapSendEP0),
	)
	h.sys(2, SysSend, 0, 200)
	h.sys(1, SysSend, 0, 100)
	h.sys(3, SysSend, 0, 300)
	if got, want := h.k.Senders(0), []TaskID{2, 1, 3}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Senders(0) = %v, want %v", got, want)
	}

	for _, want := range []struct {
		id  TaskID
		val uint64
	}{{2, 200}, {1, 100}, {3, 300}} {
		h.sys(0, SysRecv, 0)
		if got := h.x0(0); got != want.val {
			t.Fatalf("recv X0 = %d, want %d", got, want.val)
		}
		if got := h.state(want.id); got != Ready {
			t.Fatalf("sender T%d state = %s, want ready", want.id, got)
		}
	}
	if got := h.k.Senders(0); len(got) != 0 {
		t.Fatalf("Senders(0) = %v, want empty", got)
	}
}

func TestSenderQueueFullIsNoop(t *testing.T) {
	specs := []TaskSpec{}
	for i := 0; i <= MaxWaiters; i++ {
		specs = append(specs, spec("s", 2, CapSendEP2))
	}
	h := newHarness(t, specs...)
	for i := 0; i < MaxWaiters; i++ {
		h.sys(TaskID(i), SysSend, 2)
	}
	before := h.k.Senders(2)

	h.sys(MaxWaiters, SysSend, 2)
	if got := h.state(MaxWaiters); got != Running {
		t.Fatalf("overflowing sender state = %s, want running", got)
	}
	if got := h.k.Senders(2); !reflect.DeepEqual(got, before) {
		t.Fatalf("Senders(2) = %v, want unchanged %v", got, before)
	}
	if !h.logged("sender queue full") {
		t.Fatalf("missing queue-full log line")
	}
}

func TestInvalidEndpointHasNoEffect(t *testing.T) {
	h := newHarness(t, spec("a", 2, CapAll))
	ops := map[string]func(uint64){"send": h.k.sysSend, "recv": h.k.sysRecv, "call": h.k.sysCall}
	for name, op := range ops {
		op(NumEndpoints)
		if got := h.state(0); got != Running {
			t.Fatalf("%s on bad endpoint: state = %s, want running", name, got)
		}
	}
	for ep := 0; ep < NumEndpoints; ep++ {
		if s := h.k.Senders(ep); len(s) != 0 {
			t.Fatalf("Senders(%d) = %v, want empty", ep, s)
		}
	}

	// Through dispatch the same call is a capability failure.
	h.sys(0, SysSend, NumEndpoints)
	if got := h.state(0); got != Faulted {
		t.Fatalf("state = %s, want faulted", got)
	}
}

func TestCallReplyRoundTrip(t *testing.T) {
	const a, b = TaskID(0), TaskID(1)
	h := newHarness(t, spec("client", 2, ep0Caps), spec("server", 2, ep0Caps))

	h.sys(a, SysCall, 0, 1, 2, 3, 4)
	if got := h.state(a); got != Blocked {
		t.Fatalf("caller state = %s, want blocked", got)
	}
	if got, want := h.k.Senders(0), []TaskID{a}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Senders(0) = %v, want %v", got, want)
	}

	h.sys(b, SysRecv, 0)
	if got := h.k.Senders(0); len(got) != 0 {
		t.Fatalf("Senders(0) = %v, want caller removed", got)
	}
	if got, want := h.k.tcbs[b].Frame.Payload(), [MsgRegs]uint64{1, 2, 3, 4}; got != want {
		t.Fatalf("server payload = %v, want %v", got, want)
	}
	if r, ok := h.k.Receiver(0); !ok || r != a {
		t.Fatalf("Receiver(0) = (%d, %v), want caller %d waiting for reply", r, ok, a)
	}
	if got := h.state(a); got != Blocked {
		t.Fatalf("caller state = %s, want blocked until reply", got)
	}

	h.sys(b, SysSend, 0, 10, 20, 30, 40)
	if got, want := h.k.tcbs[a].Frame.Payload(), [MsgRegs]uint64{10, 20, 30, 40}; got != want {
		t.Fatalf("caller reply = %v, want %v", got, want)
	}
	if got := h.state(a); got != Ready {
		t.Fatalf("caller state = %s, want ready", got)
	}
	if got := h.state(b); got != Running && got != Ready {
		t.Fatalf("server state = %s, want runnable", got)
	}
}

func TestCallToWaitingServerBoostsIt(t *testing.T) {
	const client, server = TaskID(0), TaskID(1)
	h := newHarness(t, spec("client", 6, ep0Caps), spec("server", 1, ep0Caps))

	h.sys(server, SysRecv, 0)
	h.sys(client, SysCall, 0, 7)
	if got := h.x0(server); got != 7 {
		t.Fatalf("server X0 = %d, want 7", got)
	}
	if got := h.k.tcbs[server].Priority; got != 6 {
		t.Fatalf("server priority = %d, want inherited 6", got)
	}
	if got := h.k.Current(); got != server {
		t.Fatalf("Current() = %d, want boosted server", got)
	}

	h.sys(server, SysSend, 0, 8)
	if got := h.x0(client); got != 8 {
		t.Fatalf("client reply X0 = %d, want 8", got)
	}
	if got := h.k.tcbs[server].Priority; got != 1 {
		t.Fatalf("server priority after reply = %d, want base 1", got)
	}
	if got := h.k.tcbs[client].Priority; got != 6 {
		t.Fatalf("client priority = %d, want 6", got)
	}
}

func TestQueuedCallerBoostsServerOnReceive(t *testing.T) {
	const client, server = TaskID(0), TaskID(1)
	h := newHarness(t, spec("client", 5, ep0Caps), spec("server", 2, ep0Caps))

	h.sys(client, SysCall, 0, 1)
	h.sys(server, SysRecv, 0)
	if got := h.k.tcbs[server].Priority; got != 5 {
		t.Fatalf("server priority = %d, want 5", got)
	}
}

func TestBoostNeverLowers(t *testing.T) {
	h := newHarness(t, spec("lo", 1, ep0Caps), spec("hi", 6, ep0Caps))
	h.k.boostPriority(0, 1)
	if got := h.k.tcbs[1].Priority; got != 6 {
		t.Fatalf("priority = %d, want 6 (unchanged)", got)
	}
}

func TestReplyWaiterIgnoresOtherSenders(t *testing.T) {
	const c1, server, c2 = TaskID(0), TaskID(1), TaskID(2)
	h := newHarness(t,
		spec("c1", 3, ep0Caps),
		spec("server", 3, ep0Caps),
		spec("c2", 3, ep0Caps),
	)
	h.sys(server, SysRecv, 0)
	h.sys(c1, SysCall, 0, 11)

	h.sys(c2, SysCall, 0, 22)
	if got := h.x0(c1); got == 22 {
		t.Fatalf("c1 received c2's request")
	}
	if got, want := h.k.Senders(0), []TaskID{c2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Senders(0) = %v, want %v", got, want)
	}

	h.sys(server, SysSend, 0, 12)
	if got := h.x0(c1); got != 12 {
		t.Fatalf("c1 reply = %d, want 12", got)
	}
	h.sys(server, SysRecv, 0)
	if got := h.x0(server); got != 22 {
		t.Fatalf("server X0 = %d, want c2's 22", got)
	}
}

func TestQueuedCallerWithBusySlotGetsNoReply(t *testing.T) {
	const c1, server, c2 = TaskID(0), TaskID(1), TaskID(2)
	h := newHarness(t,
		spec("c1", 3, ep0Caps),
		spec("server", 3, ep0Caps),
		spec("c2", 3, ep0Caps),
	)
	h.sys(server, SysRecv, 0)
	h.sys(c1, SysCall, 0, 11)
	h.sys(c2, SysCall, 0, 22)

	// c1 still holds the receiver slot waiting for its reply.
	h.sys(server, SysRecv, 0)
	if got := h.x0(server); got != 22 {
		t.Fatalf("server X0 = %d, want c2's 22", got)
	}
	if got := h.state(c2); got != Ready {
		t.Fatalf("c2 state = %s, want ready", got)
	}
	if got := h.x0(c2); got != ErrNoReply {
		t.Fatalf("c2 X0 = %#x, want %#x", got, uint64(ErrNoReply))
	}
	if r, ok := h.k.Receiver(0); !ok || r != c1 {
		t.Fatalf("Receiver(0) = %d, %v; want c1", r, ok)
	}
}

func TestReplyDropsServerToBaseWithCallerStillWaiting(t *testing.T) {
	const c0, server, c1 = TaskID(0), TaskID(1), TaskID(2)
	h := newHarness(t,
		spec("c0", 5, CapAll),
		spec("server", 1, CapAll),
		spec("c1", 6, CapAll),
	)
	h.sys(server, SysRecv, 0)
	h.sys(c0, SysCall, 0, 1)
	h.sys(c1, SysCall, 1, 2)
	h.sys(server, SysRecv, 1)
	if got := h.k.tcbs[server].Priority; got != 6 {
		t.Fatalf("server priority = %d, want 6", got)
	}

	h.sys(server, SysSend, 0, 10)
	if got := h.x0(c0); got != 10 {
		t.Fatalf("c0 reply = %d, want 10", got)
	}
	if got := h.k.tcbs[server].Priority; got != 1 {
		t.Fatalf("server priority = %d, want base 1", got)
	}
	if got := h.state(c1); got != Blocked {
		t.Fatalf("c1 state = %s, want blocked on its reply", got)
	}
}

func TestCleanupRemovesTaskEverywhere(t *testing.T) {
	h := newHarness(t,
		spec("victim", 2, CapAll),
		spec("other", 2, CapAll),
	)
	h.sys(0, SysSend, 0)
	h.sys(1, SysSend, 2)
	h.k.endpoints[1].receiver = 0
	h.k.endpoints[3].senders.push(0)

	h.k.cleanupIPC(0)
	for ep := 0; ep < NumEndpoints; ep++ {
		for _, s := range h.k.Senders(ep) {
			if s == 0 {
				t.Fatalf("T0 still queued on endpoint %d", ep)
			}
		}
		if r, ok := h.k.Receiver(ep); ok && r == 0 {
			t.Fatalf("T0 still receiver of endpoint %d", ep)
		}
	}
	if got, want := h.k.Senders(2), []TaskID{1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Senders(2) = %v, want %v", got, want)
	}
}

func TestServerFaultReleasesCaller(t *testing.T) {
	const client, server = TaskID(0), TaskID(1)
	h := newHarness(t, spec("client", 5, ep0Caps), spec("server", 2, ep0Caps))

	h.sys(server, SysRecv, 0)
	h.sys(client, SysCall, 0, 1)
	if got := h.k.Current(); got != server {
		t.Fatalf("Current() = %d, want server", got)
	}
	h.become(server)
	if err := h.k.Trap(&h.cpu, Trap{Kind: TrapFault, Class: FaultDataAbort, Addr: 0x10}); err != nil {
		t.Fatalf("Trap() err = %v", err)
	}

	if got := h.state(server); got != Faulted {
		t.Fatalf("server state = %s, want faulted", got)
	}
	if got := h.k.tcbs[server].Priority; got != 2 {
		t.Fatalf("server priority = %d, want base 2", got)
	}
	if _, ok := h.k.Receiver(0); ok {
		t.Fatalf("caller still parked as receiver of a dead server")
	}
	if got := h.k.Current(); got != client {
		t.Fatalf("Current() = %d, want released client", got)
	}
	if got := h.x0(client); got != ErrNoReply {
		t.Fatalf("client X0 = %#x, want %#x", got, uint64(ErrNoReply))
	}
}
