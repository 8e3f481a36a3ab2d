package kernel

// NumEndpoints is the number of static IPC endpoints.
const NumEndpoints = 4

// endpoint is a rendezvous point: a bounded FIFO of blocked senders and at
// most one blocked receiver.
type endpoint struct {
	senders  senderQueue
	receiver TaskID
}

func validEndpoint(ep uint64) bool { return ep < NumEndpoints }

// takeReceiver empties the receiver slot and returns its previous occupant.
func (e *endpoint) takeReceiver() (TaskID, bool) {
	r := e.receiver
	if r == NoTask {
		return NoTask, false
	}
	e.receiver = NoTask
	return r, true
}
