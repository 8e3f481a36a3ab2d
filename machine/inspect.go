package machine

import (
	"fmt"

	"aegis/kernel"
)

// TaskInfo is a monitor view of one task slot.
type TaskInfo struct {
	ID            kernel.TaskID
	Name          string
	State         kernel.State
	Current       bool
	Priority      uint8
	BasePriority  uint8
	Budget        uint64
	TicksUsed     uint64
	Heartbeat     uint64
	Caps          kernel.CapMask
	NotifyPending uint64
	PC            uint64
}

// Tasks returns a snapshot of every task slot.
func (m *Machine) Tasks() []TaskInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.k.Current()
	out := make([]TaskInfo, 0, kernel.NumTasks)
	for id := kernel.TaskID(0); id < kernel.NumTasks; id++ {
		t, _ := m.k.Task(id)
		pc := t.Frame.PC
		if id == cur {
			pc = m.cpu.PC
		}
		out = append(out, TaskInfo{
			ID:            id,
			Name:          t.Name,
			State:         t.State,
			Current:       id == cur,
			Priority:      t.Priority,
			BasePriority:  t.BasePriority,
			Budget:        t.Budget,
			TicksUsed:     t.TicksUsed,
			Heartbeat:     t.HeartbeatInterval,
			Caps:          t.Caps,
			NotifyPending: t.NotifyPending,
			PC:            pc,
		})
	}
	return out
}

// Caps returns a task's capability mask.
func (m *Machine) Caps(id kernel.TaskID) (kernel.CapMask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.k.Task(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrBadTask, id)
	}
	return t.Caps, nil
}

// IRQBindings returns the kernel's active interrupt routes.
func (m *Machine) IRQBindings() []kernel.IRQBinding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.k.IRQBindings()
}

// Grants returns every grant slot.
func (m *Machine) Grants() []kernel.GrantInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]kernel.GrantInfo, 0, kernel.NumGrants)
	for i := 0; i < kernel.NumGrants; i++ {
		g, _ := m.k.Grant(i)
		out = append(out, g)
	}
	return out
}

// Endpoint describes one IPC endpoint.
type Endpoint struct {
	Senders  []kernel.TaskID
	Receiver kernel.TaskID
}

// Endpoints returns the queue state of every endpoint.
func (m *Machine) Endpoints() []Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Endpoint, kernel.NumEndpoints)
	for i := range out {
		r, _ := m.k.Receiver(i)
		out[i] = Endpoint{Senders: m.k.Senders(i), Receiver: r}
	}
	return out
}

// Region returns the private RAM region carved for a task. Empty slots
// report a zero size.
func (m *Machine) Region(id kernel.TaskID) (base, size uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mem.Region(id)
}
