package kernel

import (
	"errors"
	"runtime/debug"
)

// ErrHalted is returned by Trap once the kernel has stopped.
var ErrHalted = errors.New("kernel: halted")

// HaltInfo describes the unrecoverable trap that stopped the kernel.
type HaltInfo struct {
	Task   TaskID
	Tick   uint64
	Trap   Trap
	Frame  Frame
	Reason string
	// Stack is the host goroutine stack at the time of the halt.
	Stack []byte
}

// halt stops the kernel. Only the first call has any effect.
func (k *Kernel) halt(info HaltInfo) {
	if k.halted {
		return
	}
	k.halted = true
	info.Task = k.current
	info.Tick = k.ticks
	info.Stack = debug.Stack()
	k.haltInfo = info
	k.logf(LevelError, "HALTED: %s", info.Reason)
	if k.onHalt != nil {
		k.onHalt(info)
	}
}

// Halted reports whether the kernel has stopped, and why.
func (k *Kernel) Halted() (HaltInfo, bool) {
	return k.haltInfo, k.halted
}
