package kernel

// ErrNotifyTarget is returned in X0 when a notification names no task slot.
const ErrNotifyTarget = 0xFFFF_DEAD

// sysNotify ORs bits into target's pending set.
func (k *Kernel) sysNotify(target, bits uint64) {
	if target >= NumTasks {
		k.logf(LevelWarn, "SYS_NOTIFY: invalid target %d", target)
		k.tcbs[k.current].Frame.X[0] = ErrNotifyTarget
		return
	}
	k.DeliverNotification(TaskID(target), bits)
}

// sysWaitNotify returns the pending bits in X0, blocking if there are none.
func (k *Kernel) sysWaitNotify() {
	t := &k.tcbs[k.current]
	if t.NotifyPending != 0 {
		t.Frame.X[0] = t.NotifyPending
		t.NotifyPending = 0
		return
	}
	t.NotifyWaiting = true
	t.State = Blocked
	k.schedule()
}

// DeliverNotification ORs bits into a task's pending notifications and wakes
// it if it is blocked in wait-notify. Zero bits are ignored.
func (k *Kernel) DeliverNotification(id TaskID, bits uint64) {
	if id >= NumTasks || bits == 0 {
		return
	}
	t := &k.tcbs[id]
	t.NotifyPending |= bits
	if !t.NotifyWaiting {
		return
	}
	t.NotifyWaiting = false
	t.Frame.X[0] = t.NotifyPending
	t.NotifyPending = 0
	t.State = Ready
}

// IsWaitingNotification reports whether a task is blocked in wait-notify.
func (k *Kernel) IsWaitingNotification(id TaskID) bool {
	return id < NumTasks && k.tcbs[id].NotifyWaiting
}
