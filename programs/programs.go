// Package programs holds the user-mode code run by the host board.
//
// A program is a step machine over the saved context: the step index lives
// in PC as an offset from the entry point, and anything that must survive a
// syscall lives in callee-saved registers (X19 up). A restart resets both, so
// programs need no other state.
package programs

import (
	"sort"

	"aegis/kernel"
)

// Board devices visible to user code.
const (
	// UART0Base is the data register of device 0, the console UART.
	UART0Base = 0x0900_0000
	// SensorINTID is the sensor device's interrupt line.
	SensorINTID = 33
)

const insnSize = 4

// Saved registers used by the programs.
const (
	regCounter = 19
	regGrant   = 20
	regYields  = 21
)

// Memory is a task's view of the address space. Accesses outside the
// task's mappings fail.
type Memory interface {
	Read(addr uint64, dst []byte) bool
	Write(addr uint64, src []byte) bool
}

// Env describes the task a program runs as.
type Env struct {
	Task  kernel.TaskID
	Entry uint64
	// Data is the base of the task's private RAM, used as scratch.
	Data uint64
	Mem  Memory
}

// Program is user code. Exec runs from the state in cpu until the next
// trap. It returns false if the CPU went idle waiting for an interrupt.
type Program interface {
	Exec(cpu *kernel.Frame, env *Env) (kernel.Trap, bool)
}

// Func adapts a function to Program.
type Func func(cpu *kernel.Frame, env *Env) (kernel.Trap, bool)

func (f Func) Exec(cpu *kernel.Frame, env *Env) (kernel.Trap, bool) { return f(cpu, env) }

var registry = map[string]Program{
	"server":  Func(server),
	"client":  Func(client),
	"sensor":  Func(sensor),
	"logger":  Func(logger),
	"hello":   Func(hello),
	"crasher": Func(crasher),
	"idle":    Func(idle),
}

// Lookup returns the program registered under name.
func Lookup(name string) (Program, bool) {
	p, ok := registry[name]
	return p, ok
}

// Names lists the registered programs in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func pc(cpu *kernel.Frame, env *Env) uint64 {
	return (cpu.PC - env.Entry) / insnSize
}

func jump(cpu *kernel.Frame, env *Env, step uint64) {
	cpu.PC = env.Entry + step*insnSize
}

// svc loads the syscall registers, advances to next and traps.
func svc(cpu *kernel.Frame, env *Env, next uint64, nr kernel.Syscall, ep uint64, args ...uint64) (kernel.Trap, bool) {
	for i, a := range args {
		cpu.X[i] = a
	}
	cpu.X[kernel.RegEndpoint] = ep
	cpu.X[kernel.RegSyscall] = uint64(nr)
	jump(cpu, env, next)
	return kernel.Trap{Kind: kernel.TrapSyscall}, true
}

// puts copies s to the scratch area and issues SYS_WRITE.
func puts(cpu *kernel.Frame, env *Env, next uint64, s string) (kernel.Trap, bool) {
	b := []byte(s)
	if len(b) > kernel.MaxWriteLen {
		b = b[:kernel.MaxWriteLen]
	}
	if !env.Mem.Write(env.Data, b) {
		return dataAbort(env.Data)
	}
	return svc(cpu, env, next, kernel.SysWrite, 0, env.Data, uint64(len(b)))
}

func dataAbort(addr uint64) (kernel.Trap, bool) {
	return kernel.Trap{Kind: kernel.TrapFault, Class: kernel.FaultDataAbort, Addr: addr}, true
}

func badPC(cpu *kernel.Frame) (kernel.Trap, bool) {
	return kernel.Trap{Kind: kernel.TrapFault, Class: kernel.FaultInstructionAbort, Addr: cpu.PC}, true
}
