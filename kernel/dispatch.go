package kernel

import "fmt"

// Syscall is a system call number, passed in X7.
type Syscall uint64

const (
	SysYield Syscall = iota
	SysSend
	SysRecv
	SysCall
	SysWrite
	SysNotify
	SysWaitNotify
	SysGrantCreate
	SysGrantRevoke
	SysIRQBind
	SysIRQAck
	SysDeviceMap
	SysHeartbeat
	SysExit
)

var syscallNames = [...]string{
	SysYield:       "yield",
	SysSend:        "send",
	SysRecv:        "recv",
	SysCall:        "call",
	SysWrite:       "write",
	SysNotify:      "notify",
	SysWaitNotify:  "wait_notify",
	SysGrantCreate: "grant_create",
	SysGrantRevoke: "grant_revoke",
	SysIRQBind:     "irq_bind",
	SysIRQAck:      "irq_ack",
	SysDeviceMap:   "device_map",
	SysHeartbeat:   "heartbeat",
	SysExit:        "exit",
}

func (s Syscall) String() string {
	if s < Syscall(len(syscallNames)) {
		return syscallNames[s]
	}
	return fmt.Sprintf("syscall(%d)", uint64(s))
}

// TrapKind classifies an entry into the kernel.
type TrapKind uint8

const (
	// TrapSyscall is an SVC from user mode.
	TrapSyscall TrapKind = iota
	// TrapFault is a synchronous exception or SError.
	TrapFault
	// TrapIRQ is an interrupt; the controller says which one.
	TrapIRQ
)

// FaultClass narrows down a TrapFault.
type FaultClass uint8

const (
	FaultUnknown FaultClass = iota
	FaultInstructionAbort
	FaultDataAbort
	FaultFPU
	FaultSError
)

func (c FaultClass) String() string {
	switch c {
	case FaultInstructionAbort:
		return "instruction abort"
	case FaultDataAbort:
		return "data abort"
	case FaultFPU:
		return "FP/SIMD trap"
	case FaultSError:
		return "SError"
	default:
		return "unhandled exception"
	}
}

// Trap describes why the CPU entered the kernel.
type Trap struct {
	Kind TrapKind
	// FromKernel marks exceptions taken while the kernel itself was running.
	FromKernel bool
	Class      FaultClass
	// Addr is the faulting address for aborts.
	Addr uint64
}

// User RAM visible to SYS_WRITE.
const (
	UserRAMBase = 0x4000_0000
	UserRAMEnd  = 0x4800_0000
	// MaxWriteLen is the largest SYS_WRITE transfer.
	MaxWriteLen = 256
)

// Device map result codes, returned in X0 by the address-space collaborator.
const (
	ErrDeviceInvalid = 0xFFFF_2001
	ErrDeviceTask    = 0xFFFF_2002
)

// Trap handles one kernel entry. cpu holds the interrupted task's registers on
// entry and the registers of the task to resume on return.
//
// Task failures are absorbed here. A fault taken in kernel mode, or an SError,
// halts the kernel; every later call returns ErrHalted.
func (k *Kernel) Trap(cpu *Frame, t Trap) error {
	if k.halted {
		return ErrHalted
	}
	if t.Kind == TrapFault && (t.FromKernel || t.Class == FaultSError) {
		k.halt(HaltInfo{
			Trap:   t,
			Frame:  *cpu,
			Reason: fmt.Sprintf("%s in kernel at %#x (PC %#x)", t.Class, t.Addr, cpu.PC),
		})
		return ErrHalted
	}

	k.tcbs[k.current].Frame = *cpu
	switch t.Kind {
	case TrapSyscall:
		k.syscall()
	case TrapFault:
		k.faultCurrent(fmt.Sprintf("%s at %#x (PC %#x)", t.Class, t.Addr, cpu.PC))
	case TrapIRQ:
		k.irq()
	default:
		k.faultCurrent(fmt.Sprintf("unknown trap kind %d", t.Kind))
	}
	*cpu = k.tcbs[k.current].Frame
	return nil
}

// Resume loads the current task's saved context into cpu. Callers use it
// after changing kernel state outside a trap, e.g. with FaultTask.
func (k *Kernel) Resume(cpu *Frame) {
	*cpu = k.tcbs[k.current].Frame
}

func (k *Kernel) irq() {
	intid := k.gic.Acknowledge()
	if intid == SpuriousINTID {
		return
	}
	if intid == TimerINTID {
		k.tick()
	} else {
		k.routeIRQ(intid)
	}
	k.gic.EndInterrupt(intid)
}

func (k *Kernel) syscall() {
	cur := k.current
	t := &k.tcbs[cur]
	nr, ep := t.Frame.Syscall()

	required := RequiredCapability(nr, ep)
	if !Check(t.Caps, required) {
		k.logf(LevelError, "CAP DENIED: %s (#%d) needs %s", Syscall(nr), nr, CapName(required))
		k.faultCurrent("capability denied")
		return
	}

	x := &t.Frame.X
	switch Syscall(nr) {
	case SysYield:
		k.schedule()
	case SysSend:
		k.sysSend(ep)
	case SysRecv:
		k.sysRecv(ep)
	case SysCall:
		k.sysCall(ep)
	case SysWrite:
		k.sysWrite(x[0], x[1])
	case SysNotify:
		k.sysNotify(ep, x[0])
	case SysWaitNotify:
		k.sysWaitNotify()
	case SysGrantCreate:
		x[0] = k.grantCreate(x[0], cur, ep)
	case SysGrantRevoke:
		x[0] = k.grantRevoke(x[0], cur)
	case SysIRQBind:
		x[0] = k.irqBind(x[0], cur, x[1])
	case SysIRQAck:
		x[0] = k.irqAck(x[0], cur)
	case SysDeviceMap:
		x[0] = k.mmu.MapDevice(cur, x[0])
	case SysHeartbeat:
		k.sysHeartbeat(x[0])
	case SysExit:
		k.exitCurrent(x[0])
	default:
		k.logf(LevelError, "unknown syscall #%d", nr)
		k.faultCurrent("unknown syscall")
	}
}

// ValidateWriteArgs reports whether a SYS_WRITE buffer is acceptable: a
// non-empty range of at most MaxWriteLen bytes inside user RAM.
func ValidateWriteArgs(addr, n uint64) bool {
	if n == 0 || n > MaxWriteLen {
		return false
	}
	end := addr + n
	return addr >= UserRAMBase && end <= UserRAMEnd && end >= addr
}

func (k *Kernel) sysWrite(addr, n uint64) {
	if !ValidateWriteArgs(addr, n) {
		if n > 0 {
			k.logf(LevelWarn, "SYS_WRITE: bad pointer %#x (len %d)", addr, n)
		}
		return
	}
	buf := k.writeBuf[:n]
	if !k.mmu.ReadUser(k.current, addr, buf) {
		k.logf(LevelWarn, "SYS_WRITE: %#x not mapped", addr)
		return
	}
	if _, err := k.console.Write(buf); err != nil {
		k.logf(LevelWarn, "SYS_WRITE: console: %v", err)
	}
}
