package programs

import (
	"encoding/binary"
	"fmt"

	"aegis/kernel"
)

const (
	sensorEP    = 1
	sensorTag   = 0xCAFE
	sensorGrant = 0
	loggerTask  = 3

	clientHeartbeat = 200
	// clientReportEvery thins out the client's console output.
	clientReportEvery = 32
	crasherYields     = 3
)

// server answers each request on endpoint 0 with twice its first word.
func server(cpu *kernel.Frame, env *Env) (kernel.Trap, bool) {
	switch pc(cpu, env) {
	case 0:
		return svc(cpu, env, 1, kernel.SysRecv, 0)
	case 1:
		return svc(cpu, env, 0, kernel.SysSend, 0, cpu.X[0]*2, cpu.X[1], cpu.X[2], cpu.X[3])
	}
	return badPC(cpu)
}

// client calls the server in a loop and keeps its heartbeat fresh.
func client(cpu *kernel.Frame, env *Env) (kernel.Trap, bool) {
	for {
		switch pc(cpu, env) {
		case 0:
			cpu.X[regCounter]++
			return svc(cpu, env, 1, kernel.SysCall, 0, cpu.X[regCounter])
		case 1:
			n := cpu.X[regCounter]
			if cpu.X[0] == kernel.ErrNoReply {
				return puts(cpu, env, 2, fmt.Sprintf("client: call %d got no reply\n", n))
			}
			if n%clientReportEvery == 1 {
				return puts(cpu, env, 2, fmt.Sprintf("client: %d*2=%d\n", n, cpu.X[0]))
			}
			jump(cpu, env, 2)
		case 2:
			return svc(cpu, env, 3, kernel.SysHeartbeat, 0, clientHeartbeat)
		case 3:
			return svc(cpu, env, 0, kernel.SysYield, 0)
		default:
			return badPC(cpu)
		}
	}
}

// sensor turns device interrupts into readings. Each reading is stored in
// the page shared with the logger and sent to it on endpoint 1.
func sensor(cpu *kernel.Frame, env *Env) (kernel.Trap, bool) {
	for {
		switch pc(cpu, env) {
		case 0:
			return puts(cpu, env, 1, "SENSOR:init\n")
		case 1:
			return svc(cpu, env, 2, kernel.SysIRQBind, 0, SensorINTID, 1)
		case 2:
			if cpu.X[0] != 0 {
				return puts(cpu, env, 8, fmt.Sprintf("sensor: irq bind failed (%#x)\n", cpu.X[0]))
			}
			return svc(cpu, env, 3, kernel.SysGrantCreate, loggerTask, sensorGrant)
		case 3:
			// grant_create returns 0 on success.
			cpu.X[regGrant] = 0
			if cpu.X[0] == 0 {
				cpu.X[regGrant] = 1
			}
			jump(cpu, env, 4)
		case 4:
			return svc(cpu, env, 5, kernel.SysWaitNotify, 0)
		case 5:
			cpu.X[regCounter]++
			if cpu.X[regGrant] != 0 {
				page, _ := kernel.GrantPage(sensorGrant)
				var b [8]byte
				binary.LittleEndian.PutUint64(b[:], cpu.X[regCounter])
				if !env.Mem.Write(page, b[:]) {
					return dataAbort(page)
				}
			}
			return svc(cpu, env, 6, kernel.SysSend, sensorEP, cpu.X[regCounter], sensorTag)
		case 6:
			return svc(cpu, env, 4, kernel.SysIRQAck, 0, SensorINTID)
		case 8:
			return svc(cpu, env, 8, kernel.SysExit, 0, 1)
		default:
			return badPC(cpu)
		}
	}
}

// logger prints every reading it receives on endpoint 1.
func logger(cpu *kernel.Frame, env *Env) (kernel.Trap, bool) {
	switch pc(cpu, env) {
	case 0:
		return puts(cpu, env, 1, "LOGGER:init\n")
	case 1:
		return svc(cpu, env, 2, kernel.SysRecv, sensorEP)
	case 2:
		line := fmt.Sprintf("LOG:%x tag=%#x", cpu.X[0]&0xF, cpu.X[1])
		page, _ := kernel.GrantPage(sensorGrant)
		var b [8]byte
		if env.Mem.Read(page, b[:]) {
			line += fmt.Sprintf(" shared=%d", binary.LittleEndian.Uint64(b[:]))
		}
		return puts(cpu, env, 3, line+"\n")
	case 3:
		return svc(cpu, env, 1, kernel.SysYield, 0)
	}
	return badPC(cpu)
}

// hello maps the UART, says hello through both paths and exits.
func hello(cpu *kernel.Frame, env *Env) (kernel.Trap, bool) {
	for {
		switch pc(cpu, env) {
		case 0:
			return svc(cpu, env, 1, kernel.SysDeviceMap, 0, 0)
		case 1:
			if cpu.X[0] == 0 {
				for _, c := range []byte("hello: uart mapped\n") {
					if !env.Mem.Write(UART0Base, []byte{c}) {
						return dataAbort(UART0Base)
					}
				}
			}
			jump(cpu, env, 2)
		case 2:
			return puts(cpu, env, 3, "L5:ELF\n")
		case 3:
			return svc(cpu, env, 4, kernel.SysYield, 0)
		case 4:
			return svc(cpu, env, 5, kernel.SysYield, 0)
		case 5:
			return svc(cpu, env, 5, kernel.SysExit, 0, 0)
		default:
			return badPC(cpu)
		}
	}
}

// crasher yields a few times and then stores through a null pointer.
func crasher(cpu *kernel.Frame, env *Env) (kernel.Trap, bool) {
	switch pc(cpu, env) {
	case 0:
		return puts(cpu, env, 1, "CRASH:init\n")
	case 1:
		if cpu.X[regYields] < crasherYields {
			cpu.X[regYields]++
			return svc(cpu, env, 1, kernel.SysYield, 0)
		}
		if !env.Mem.Write(0, []byte{0}) {
			return dataAbort(0)
		}
		return svc(cpu, env, 1, kernel.SysYield, 0)
	}
	return badPC(cpu)
}

func idle(*kernel.Frame, *Env) (kernel.Trap, bool) {
	return kernel.Trap{}, false
}
