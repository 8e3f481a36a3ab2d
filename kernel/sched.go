package kernel

// schedule picks the next task and makes it current.
//
// Faulted tasks whose restart delay has elapsed re-enter the pool first. When
// nothing is eligible the idle task is forced Ready and chosen.
func (k *Kernel) schedule() {
	old := k.current
	if k.tcbs[old].State == Running {
		k.tcbs[old].State = Ready
	}

	for i := range k.tcbs {
		t := &k.tcbs[i]
		if t.State == Faulted && k.ticks-t.FaultTick >= RestartDelay {
			k.restartTask(TaskID(i))
		}
	}

	var (
		eligible [NumTasks]bool
		prio     [NumTasks]uint8
	)
	for i := range k.tcbs {
		t := &k.tcbs[i]
		eligible[i] = t.State == Ready && t.hasBudget()
		prio[i] = t.Priority
	}
	next, ok := selectNext(eligible, prio, old)
	if !ok {
		next = IdleTask
		idle := &k.tcbs[IdleTask]
		if idle.State == Faulted {
			k.restartTask(IdleTask)
		}
		idle.State = Ready
	}

	k.tcbs[next].State = Running
	k.current = next
	k.mmu.Switch(next)
}

// selectNext scans every slot once, starting after old, and returns the
// eligible slot with the strictly highest priority. Equal priorities resolve
// in scan order.
func selectNext(eligible [NumTasks]bool, prio [NumTasks]uint8, old TaskID) (TaskID, bool) {
	best := NoTask
	for off := 0; off < NumTasks; off++ {
		idx := TaskID((int(old) + 1 + off) % NumTasks)
		if !eligible[idx] {
			continue
		}
		if best == NoTask || prio[idx] > prio[best] {
			best = idx
		}
	}
	return best, best != NoTask
}

// tick accounts one timer interrupt and reschedules.
func (k *Kernel) tick() {
	k.ticks++
	k.tcbs[k.current].TicksUsed++

	k.epochTicks++
	if k.epochTicks >= EpochLength {
		k.epochReset()
	}
	if k.ticks%WatchdogScanPeriod == 0 {
		k.watchdogScan()
	}
	k.schedule()
}

// epochReset replenishes the budget of every live task.
func (k *Kernel) epochReset() {
	k.epochTicks = 0
	for i := range k.tcbs {
		t := &k.tcbs[i]
		if t.State != Inactive && t.State != Exited {
			t.TicksUsed = 0
		}
	}
}

// WatchdogShouldFault reports whether a task that last beat elapsed ticks ago
// has missed its heartbeat. An interval of zero disables the watchdog.
func WatchdogShouldFault(interval, elapsed uint64) bool {
	return interval != 0 && elapsed > interval
}

func (k *Kernel) watchdogScan() {
	for i := range k.tcbs {
		t := &k.tcbs[i]
		switch t.State {
		case Faulted, Inactive, Exited:
			continue
		}
		if !WatchdogShouldFault(t.HeartbeatInterval, k.ticks-t.LastHeartbeat) {
			continue
		}
		k.logAs(TaskID(i), LevelWarn, "WATCHDOG: missed heartbeat (interval %d)", t.HeartbeatInterval)
		k.markFaulted(TaskID(i))
	}
}

// markFaulted moves id to Faulted and releases everything it holds. It does
// not pick a new task.
func (k *Kernel) markFaulted(id TaskID) {
	t := &k.tcbs[id]
	t.State = Faulted
	t.FaultTick = k.ticks
	k.cleanupTask(id)
}

// faultCurrent faults the running task and schedules away from it.
func (k *Kernel) faultCurrent(reason string) {
	k.logf(LevelError, "TASK FAULTED: %s", reason)
	k.markFaulted(k.current)
	k.schedule()
}

// FaultTask marks a task Faulted and cleans up after it, as if it had trapped
// with a synchronous fault. It is a no-op for tasks that are not live.
func (k *Kernel) FaultTask(id TaskID) bool {
	if id >= NumTasks {
		return false
	}
	switch k.tcbs[id].State {
	case Inactive, Faulted, Exited:
		return false
	}
	k.logAs(id, LevelError, "TASK FAULTED: external request")
	k.markFaulted(id)
	if id == k.current {
		k.schedule()
	}
	return true
}

// exitCurrent terminates the running task for good.
func (k *Kernel) exitCurrent(code uint64) {
	k.logf(LevelInfo, "exited (code=%d)", code)
	k.tcbs[k.current].State = Exited
	k.cleanupTask(k.current)
	k.schedule()
}

// cleanupTask releases the scheduling and resource state of a dying task.
func (k *Kernel) cleanupTask(id TaskID) {
	t := &k.tcbs[id]
	t.Priority = t.BasePriority
	t.HeartbeatInterval = 0
	t.NotifyWaiting = false

	k.cleanupIPC(id)
	k.cleanupGrants(id)
	k.cleanupIRQs(id)
}

// restartTask reloads a Faulted task from its boot entry point. Other states
// are left alone.
func (k *Kernel) restartTask(id TaskID) {
	t := &k.tcbs[id]
	if t.State != Faulted {
		return
	}
	t.Frame.reset(t.EntryPoint, t.StackTop)
	t.State = Ready
	t.NotifyPending = 0
	t.NotifyWaiting = false
	t.Priority = t.BasePriority
	t.TicksUsed = 0
	t.HeartbeatInterval = t.bootHeartbeat
	t.LastHeartbeat = k.ticks
	t.calling = false
	t.replyFrom = NoTask
	k.logAs(id, LevelInfo, "TASK RESTARTED")
}

// sysHeartbeat arms the watchdog of the current task.
func (k *Kernel) sysHeartbeat(interval uint64) {
	t := &k.tcbs[k.current]
	t.HeartbeatInterval = interval
	t.LastHeartbeat = k.ticks
	t.Frame.X[0] = 0
}
