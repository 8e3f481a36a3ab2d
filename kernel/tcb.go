package kernel

// TaskID indexes the static task table.
type TaskID uint8

const (
	// NumTasks is the number of task slots.
	NumTasks = 8

	// IdleTask is the slot the scheduler falls back to when nothing else can run.
	IdleTask TaskID = NumTasks - 1

	// NoTask marks an empty receiver slot or an absent partner.
	NoTask TaskID = 0xFF

	// MaxPriority is the highest task priority.
	MaxPriority = 7
)

// State is the scheduling state of a task slot.
type State uint8

const (
	Inactive State = iota
	Ready
	Running
	Blocked
	Faulted
	Exited
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Faulted:
		return "faulted"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// TCB is the kernel's per-task bookkeeping record.
//
// Caps and BasePriority survive restart; everything else that describes the
// current run is reset.
type TCB struct {
	Frame Frame
	State State
	ID    TaskID
	Name  string

	EntryPoint uint64
	StackTop   uint64
	FaultTick  uint64

	Caps CapMask

	NotifyPending uint64
	NotifyWaiting bool

	Priority     uint8 // effective
	BasePriority uint8

	Budget    uint64 // ticks per epoch, 0 = unlimited
	TicksUsed uint64

	HeartbeatInterval uint64 // 0 = watchdog disabled
	LastHeartbeat     uint64
	bootHeartbeat     uint64

	// calling is set while the task sits in a sender queue via call and still
	// expects a reply after its request is taken.
	calling bool
	// replyFrom is the server a caller waits on as the endpoint receiver.
	replyFrom TaskID
}

// hasBudget reports whether the task may still run in the current epoch.
func (t *TCB) hasBudget() bool {
	return t.Budget == 0 || t.TicksUsed < t.Budget
}

// awaitingReply reports whether the task is blocked waiting for a reply from a specific server.
func (t *TCB) awaitingReply() bool {
	return t.replyFrom != NoTask
}

// TaskSpec is the boot-time description of one task slot.
//
// A zero EntryPoint leaves the slot Inactive.
type TaskSpec struct {
	Name       string
	EntryPoint uint64
	StackTop   uint64
	Caps       CapMask
	Priority   uint8
	Budget     uint64
	Heartbeat  uint64
}
