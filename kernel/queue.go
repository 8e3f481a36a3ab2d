package kernel

// MaxWaiters is the capacity of each endpoint's sender queue.
const MaxWaiters = 4

// senderQueue is a fixed-capacity FIFO of blocked senders.
type senderQueue struct {
	head  uint8
	count uint8
	tasks [MaxWaiters]TaskID
}

// push appends a sender, returning false if the queue is full.
func (q *senderQueue) push(id TaskID) bool {
	if q.count >= MaxWaiters {
		return false
	}
	q.tasks[(q.head+q.count)%MaxWaiters] = id
	q.count++
	return true
}

// pop removes the oldest sender.
func (q *senderQueue) pop() (TaskID, bool) {
	if q.count == 0 {
		return NoTask, false
	}
	id := q.tasks[q.head]
	q.head = (q.head + 1) % MaxWaiters
	q.count--
	return id, true
}

// remove drops every occurrence of id, keeping the others in order.
func (q *senderQueue) remove(id TaskID) {
	var kept [MaxWaiters]TaskID
	n := uint8(0)
	for i := uint8(0); i < q.count; i++ {
		t := q.tasks[(q.head+i)%MaxWaiters]
		if t != id {
			kept[n] = t
			n++
		}
	}
	q.tasks = kept
	q.head = 0
	q.count = n
}

func (q *senderQueue) contains(id TaskID) bool {
	for i := uint8(0); i < q.count; i++ {
		if q.tasks[(q.head+i)%MaxWaiters] == id {
			return true
		}
	}
	return false
}

func (q *senderQueue) len() int { return int(q.count) }

// snapshot returns the queued senders in service order.
func (q *senderQueue) snapshot() []TaskID {
	out := make([]TaskID, 0, q.count)
	for i := uint8(0); i < q.count; i++ {
		out = append(out, q.tasks[(q.head+i)%MaxWaiters])
	}
	return out
}
