package kernel

// CapMask is a per-task set of granted privileges, one bit per privilege.
//
// Masks are assigned at boot and never change for the lifetime of a task slot,
// including across restarts.
type CapMask uint64

const (
	CapSendEP0 CapMask = 1 << iota
	CapRecvEP0
	CapSendEP1
	CapRecvEP1
	CapWrite
	CapYield
	CapNotify
	CapWaitNotify
	CapSendEP2
	CapRecvEP2
	CapSendEP3
	CapRecvEP3
	CapGrantCreate
	CapGrantRevoke
	CapIRQBind
	CapIRQAck
	CapDeviceMap
	CapHeartbeat
)

const (
	// CapNone is the empty mask. As a requirement it is satisfied by every mask.
	CapNone CapMask = 0

	// CapAll is every grantable privilege.
	CapAll = CapSendEP0 | CapRecvEP0 | CapSendEP1 | CapRecvEP1 |
		CapWrite | CapYield | CapNotify | CapWaitNotify |
		CapSendEP2 | CapRecvEP2 | CapSendEP3 | CapRecvEP3 |
		CapGrantCreate | CapGrantRevoke | CapIRQBind | CapIRQAck |
		CapDeviceMap | CapHeartbeat

	// CapUnsatisfiable is the requirement for operations that no task may perform.
	// It lies outside CapAll, so no booted task can ever hold it.
	CapUnsatisfiable CapMask = 1 << 63
)

var (
	sendCaps = [NumEndpoints]CapMask{CapSendEP0, CapSendEP1, CapSendEP2, CapSendEP3}
	recvCaps = [NumEndpoints]CapMask{CapRecvEP0, CapRecvEP1, CapRecvEP2, CapRecvEP3}
)

// Check reports whether mask holds every bit in required.
func Check(mask, required CapMask) bool {
	return mask&required == required
}

// RequiredCapability maps a syscall number and endpoint argument to the
// privilege bits needed to execute it.
//
// The endpoint is only consulted for send, receive and call. Unknown syscalls
// and out-of-range endpoints yield CapUnsatisfiable.
func RequiredCapability(nr, ep uint64) CapMask {
	switch Syscall(nr) {
	case SysYield:
		return CapYield
	case SysSend:
		if ep >= NumEndpoints {
			return CapUnsatisfiable
		}
		return sendCaps[ep]
	case SysRecv:
		if ep >= NumEndpoints {
			return CapUnsatisfiable
		}
		return recvCaps[ep]
	case SysCall:
		if ep >= NumEndpoints {
			return CapUnsatisfiable
		}
		return sendCaps[ep] | recvCaps[ep]
	case SysWrite:
		return CapWrite
	case SysNotify:
		return CapNotify
	case SysWaitNotify:
		return CapWaitNotify
	case SysGrantCreate:
		return CapGrantCreate
	case SysGrantRevoke:
		return CapGrantRevoke
	case SysIRQBind:
		return CapIRQBind
	case SysIRQAck:
		return CapIRQAck
	case SysDeviceMap:
		return CapDeviceMap
	case SysHeartbeat:
		return CapHeartbeat
	case SysExit:
		return CapNone
	default:
		return CapUnsatisfiable
	}
}

var capNames = [...]struct {
	mask CapMask
	name string
}{
	{CapSendEP0, "IPC_SEND_EP0"},
	{CapRecvEP0, "IPC_RECV_EP0"},
	{CapSendEP1, "IPC_SEND_EP1"},
	{CapRecvEP1, "IPC_RECV_EP1"},
	{CapWrite, "WRITE"},
	{CapYield, "YIELD"},
	{CapNotify, "NOTIFY"},
	{CapWaitNotify, "WAIT_NOTIFY"},
	{CapSendEP2, "IPC_SEND_EP2"},
	{CapRecvEP2, "IPC_RECV_EP2"},
	{CapSendEP3, "IPC_SEND_EP3"},
	{CapRecvEP3, "IPC_RECV_EP3"},
	{CapGrantCreate, "GRANT_CREATE"},
	{CapGrantRevoke, "GRANT_REVOKE"},
	{CapIRQBind, "IRQ_BIND"},
	{CapIRQAck, "IRQ_ACK"},
	{CapDeviceMap, "DEVICE_MAP"},
	{CapHeartbeat, "HEARTBEAT"},
	{CapAll, "ALL"},
	{CapNone, "NONE"},
	{CapUnsatisfiable, "UNSATISFIABLE"},
}

// CapName returns the name of a single capability bit or a well-known combo.
func CapName(m CapMask) string {
	for _, c := range capNames {
		if c.mask == m {
			return c.name
		}
	}
	return "UNKNOWN"
}

// ParseCapName is the inverse of CapName for grantable names.
func ParseCapName(name string) (CapMask, bool) {
	for _, c := range capNames {
		if c.name == name && c.mask != CapUnsatisfiable {
			return c.mask, true
		}
	}
	return 0, false
}

// String lists the set bits of m by name.
func (m CapMask) String() string {
	if m == CapNone || m == CapAll {
		return CapName(m)
	}
	s := ""
	for bit := CapMask(1); bit != 0; bit <<= 1 {
		if m&bit == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += CapName(bit)
	}
	return s
}
