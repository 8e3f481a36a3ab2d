package kernel

// ErrNoReply is left in a caller's X0 when it is released without a reply:
// its server died, or the endpoint's receiver slot was taken when the server
// picked up the request.
const ErrNoReply = 0xFFFF_3001

// sysSend delivers the current task's payload to the receiver waiting on ep,
// or queues the current task as a sender and blocks it.
//
// A full sender queue leaves the caller Running; it is expected to retry.
func (k *Kernel) sysSend(ep uint64) {
	if !validEndpoint(ep) {
		k.logf(LevelWarn, "IPC: invalid endpoint %d", ep)
		return
	}
	cur := k.current
	e := &k.endpoints[ep]
	if r, ok := k.receiverFor(e, cur); ok {
		e.receiver = NoTask
		k.deliver(cur, r)
		return
	}
	if !e.senders.push(cur) {
		k.logf(LevelWarn, "IPC: sender queue full (ep %d)", ep)
		return
	}
	k.tcbs[cur].State = Blocked
	k.schedule()
}

// sysRecv takes the oldest queued sender's payload, or blocks the current
// task as the endpoint's receiver.
func (k *Kernel) sysRecv(ep uint64) {
	if !validEndpoint(ep) {
		k.logf(LevelWarn, "IPC: invalid endpoint %d", ep)
		return
	}
	cur := k.current
	e := &k.endpoints[ep]
	if s, ok := e.senders.pop(); ok {
		k.copyMessage(s, cur)
		k.releaseSender(e, s, cur)
		return
	}
	if e.receiver != NoTask && e.receiver != cur {
		k.logf(LevelWarn, "IPC: receiver slot busy (ep %d, T%d)", ep, e.receiver)
		return
	}
	e.receiver = cur
	k.tcbs[cur].State = Blocked
	k.schedule()
}

// sysCall sends a request on ep and waits on the same endpoint for the reply.
func (k *Kernel) sysCall(ep uint64) {
	if !validEndpoint(ep) {
		k.logf(LevelWarn, "IPC: invalid endpoint %d", ep)
		return
	}
	cur := k.current
	e := &k.endpoints[ep]
	if r, ok := k.receiverFor(e, cur); ok {
		e.receiver = NoTask
		k.deliver(cur, r)
		e.receiver = cur
		k.tcbs[cur].replyFrom = r
		k.boostPriority(cur, r)
		k.tcbs[cur].State = Blocked
		k.schedule()
		return
	}
	if !e.senders.push(cur) {
		k.logf(LevelWarn, "IPC: sender queue full (ep %d)", ep)
		return
	}
	k.tcbs[cur].calling = true
	k.tcbs[cur].State = Blocked
	k.schedule()
}

// receiverFor returns the task waiting on e if from may deliver to it.
// A caller waiting for a reply only accepts a message from its server.
func (k *Kernel) receiverFor(e *endpoint, from TaskID) (TaskID, bool) {
	r := e.receiver
	if r == NoTask {
		return NoTask, false
	}
	if t := &k.tcbs[r]; t.awaitingReply() && t.replyFrom != from {
		return NoTask, false
	}
	return r, true
}

func (k *Kernel) copyMessage(from, to TaskID) {
	copy(k.tcbs[to].Frame.X[:MsgRegs], k.tcbs[from].Frame.X[:MsgRegs])
}

// deliver hands from's payload to the blocked task to and wakes it.
func (k *Kernel) deliver(from, to TaskID) {
	k.copyMessage(from, to)
	dst := &k.tcbs[to]
	if dst.replyFrom == from {
		// The reply ends the server's side of the exchange.
		k.restoreBasePriority(from)
	}
	dst.replyFrom = NoTask
	dst.calling = false
	dst.Priority = dst.BasePriority
	dst.State = Ready
}

// releaseSender finishes the sender side of a receive. A plain sender is made
// Ready; a caller becomes the endpoint's receiver to wait for its reply.
func (k *Kernel) releaseSender(e *endpoint, sender, server TaskID) {
	t := &k.tcbs[sender]
	t.Priority = t.BasePriority
	if t.calling && e.receiver == NoTask {
		t.calling = false
		t.replyFrom = server
		e.receiver = sender
		k.boostPriority(sender, server)
		return
	}
	if t.calling {
		t.Frame.X[0] = ErrNoReply
		k.logf(LevelWarn, "IPC: T%d gets no reply, receiver slot busy", sender)
	}
	t.calling = false
	t.State = Ready
}

// boostPriority raises holder's effective priority to blocker's. It never lowers it.
func (k *Kernel) boostPriority(blocker, holder TaskID) {
	bp := k.tcbs[blocker].Priority
	if bp > k.tcbs[holder].Priority {
		k.logf(LevelDebug, "priority inheritance: T%d %d -> %d (blocked T%d)",
			holder, k.tcbs[holder].Priority, bp, blocker)
		k.tcbs[holder].Priority = bp
	}
}

// restoreBasePriority ends id's inherited priority. A task carries a single
// boost: after it replies to one caller it drops to base even when another
// caller, on any endpoint, is still waiting on it for a reply.
func (k *Kernel) restoreBasePriority(id TaskID) {
	k.tcbs[id].Priority = k.tcbs[id].BasePriority
}

// cleanupIPC removes id from every sender queue and receiver slot and wakes
// callers that were waiting on id for a reply.
func (k *Kernel) cleanupIPC(id TaskID) {
	for i := range k.endpoints {
		e := &k.endpoints[i]
		e.senders.remove(id)
		if e.receiver == id {
			e.receiver = NoTask
		}
		if r := e.receiver; r != NoTask && k.tcbs[r].replyFrom == id {
			e.receiver = NoTask
			t := &k.tcbs[r]
			t.replyFrom = NoTask
			t.Priority = t.BasePriority
			t.Frame.X[0] = ErrNoReply
			t.State = Ready
			k.logf(LevelDebug, "IPC: T%d lost its server T%d (ep %d)", r, id, i)
		}
	}
	k.tcbs[id].calling = false
	k.tcbs[id].replyFrom = NoTask
}
