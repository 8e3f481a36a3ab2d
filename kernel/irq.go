package kernel

// Interrupt routing constants.
const (
	NumIRQBindings = 8
	// MinSPI is the lowest shared peripheral interrupt a task may bind.
	MinSPI = 32
	// TimerINTID is the scheduler tick (EL1 physical timer PPI).
	TimerINTID = 30
	// SpuriousINTID is returned by Acknowledge when nothing is pending.
	SpuriousINTID = 1023

	maxINTID = 1020
)

// IRQ result codes, returned in X0.
const (
	ErrIRQInvalid   = 0xFFFF_1001
	ErrIRQBound     = 0xFFFF_1002
	ErrIRQTableFull = 0xFFFF_1003
	ErrIRQNotBound  = 0xFFFF_1004
	ErrIRQNotOwner  = 0xFFFF_1005
)

// irqBinding routes one device interrupt to a notification bit of a task.
type irqBinding struct {
	intid      uint32
	task       TaskID
	bit        uint64
	active     bool
	pendingAck bool
}

func (k *Kernel) findIRQ(intid uint32) *irqBinding {
	for i := range k.irqs {
		if b := &k.irqs[i]; b.active && b.intid == intid {
			return b
		}
	}
	return nil
}

func (k *Kernel) irqBind(intid uint64, task TaskID, bit uint64) uint64 {
	if intid < MinSPI || intid >= maxINTID || bit == 0 {
		k.logf(LevelWarn, "IRQ: invalid binding (INTID %d, bit %#x)", intid, bit)
		return ErrIRQInvalid
	}
	if k.findIRQ(uint32(intid)) != nil {
		k.logf(LevelWarn, "IRQ: INTID %d already bound", intid)
		return ErrIRQBound
	}
	for i := range k.irqs {
		b := &k.irqs[i]
		if b.active {
			continue
		}
		*b = irqBinding{intid: uint32(intid), task: task, bit: bit, active: true}
		k.gic.Enable(uint32(intid))
		k.logf(LevelInfo, "IRQ BIND: INTID %d -> T%d, bit %#x", intid, task, bit)
		return 0
	}
	k.logf(LevelWarn, "IRQ: binding table full")
	return ErrIRQTableFull
}

// irqAck unmasks a routed interrupt once its handler task is done with it.
func (k *Kernel) irqAck(intid uint64, task TaskID) uint64 {
	if intid >= maxINTID {
		return ErrIRQNotBound
	}
	b := k.findIRQ(uint32(intid))
	if b == nil {
		return ErrIRQNotBound
	}
	if b.task != task {
		k.logf(LevelWarn, "IRQ ACK: T%d is not bound to INTID %d", task, intid)
		return ErrIRQNotOwner
	}
	if !b.pendingAck {
		return 0
	}
	b.pendingAck = false
	k.gic.Enable(b.intid)
	return 0
}

// routeIRQ turns a device interrupt into a notification and masks it until
// the bound task acknowledges it.
func (k *Kernel) routeIRQ(intid uint32) {
	b := k.findIRQ(intid)
	if b == nil {
		k.logf(LevelWarn, "IRQ INTID %d (unbound, ignored)", intid)
		return
	}
	k.DeliverNotification(b.task, b.bit)
	b.pendingAck = true
	k.gic.Disable(intid)
}

func (k *Kernel) cleanupIRQs(id TaskID) {
	for i := range k.irqs {
		b := &k.irqs[i]
		if !b.active || b.task != id {
			continue
		}
		k.logf(LevelInfo, "IRQ cleanup: unbind INTID %d from T%d", b.intid, id)
		k.gic.Disable(b.intid)
		*b = irqBinding{}
	}
}

// IRQBinding describes an active interrupt route.
type IRQBinding struct {
	INTID      uint32
	Task       TaskID
	Bit        uint64
	PendingAck bool
}

// IRQBindings returns the active interrupt routes.
func (k *Kernel) IRQBindings() []IRQBinding {
	var out []IRQBinding
	for _, b := range k.irqs {
		if b.active {
			out = append(out, IRQBinding{INTID: b.intid, Task: b.task, Bit: b.bit, PendingAck: b.pendingAck})
		}
	}
	return out
}
