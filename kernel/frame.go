package kernel

// Frame is the saved CPU context of a task at the moment it trapped.
//
// The layout is shared with the trap entry/exit code and must not change:
// 31 general registers, SP_EL0, ELR, SPSR and two words of padding for
// 16-byte alignment (288 bytes).
type Frame struct {
	X      [31]uint64 // offset   0
	SP     uint64     // offset 248, user stack pointer
	PC     uint64     // offset 256, return address (ELR)
	PSTATE uint64     // offset 264, saved processor state (SPSR)
	_      [2]uint64  // offset 272
}

// FrameSize is the byte size of Frame.
const FrameSize = 288

// Register slots of the syscall ABI.
const (
	RegEndpoint = 6 // endpoint, target task or peer
	RegSyscall  = 7 // syscall number

	// MsgRegs is the number of payload registers, X0..X3.
	MsgRegs = 4
)

// ModeEL0t is the SPSR value that returns to user mode on the user stack.
const ModeEL0t = 0x000

// Syscall returns the syscall number and endpoint argument.
func (f *Frame) Syscall() (nr, ep uint64) {
	return f.X[RegSyscall], f.X[RegEndpoint]
}

// Payload returns the message registers.
func (f *Frame) Payload() [MsgRegs]uint64 {
	var p [MsgRegs]uint64
	copy(p[:], f.X[:MsgRegs])
	return p
}

// reset zeroes the frame and points it at a fresh entry.
func (f *Frame) reset(entry, stackTop uint64) {
	*f = Frame{}
	f.PC = entry
	f.SP = stackTop
	f.PSTATE = ModeEL0t
}
