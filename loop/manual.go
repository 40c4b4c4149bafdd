package loop

import (
	"container/heap"
	"time"
)

// Manual is a virtual-time Scheduler and Clock. Time only moves on Advance,
// so every timing test is deterministic. Not safe for concurrent use.
type Manual struct {
	now   time.Duration
	seq   uint64
	queue taskQueue
}

// NewManual creates a manual loop at virtual time zero
func NewManual() *Manual {
	return &Manual{}
}

type manualTask struct {
	due     time.Duration
	period  time.Duration // 0 = one-shot
	seq     uint64
	fn      func()
	stopped bool
}

func (t *manualTask) Stop() {
	t.stopped = true
}

// Now returns the current virtual time
func (m *Manual) Now() time.Duration {
	return m.now
}

// CurrentTime returns virtual time in seconds
func (m *Manual) CurrentTime() float64 {
	return m.now.Seconds()
}

// Every schedules fn every d, first firing at now+d
func (m *Manual) Every(d time.Duration, fn func()) Timer {
	if d <= 0 {
		d = time.Millisecond
	}
	return m.push(d, d, fn)
}

// After schedules fn once at now+d
func (m *Manual) After(d time.Duration, fn func()) Timer {
	return m.push(d, 0, fn)
}

// Post runs fn immediately; the caller is already on the loop
func (m *Manual) Post(fn func()) {
	fn()
}

// Do runs fn immediately
func (m *Manual) Do(fn func()) {
	fn()
}

func (m *Manual) push(delay, period time.Duration, fn func()) *manualTask {
	m.seq++
	t := &manualTask{due: m.now + delay, period: period, seq: m.seq, fn: fn}
	heap.Push(&m.queue, t)
	return t
}

// Advance moves virtual time forward by d, firing due callbacks in order.
// Callbacks observe Now() equal to their due time.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	for m.queue.Len() > 0 {
		next := m.queue[0]
		if next.due > target {
			break
		}
		heap.Pop(&m.queue)
		if next.stopped {
			continue
		}
		m.now = next.due
		if next.period > 0 {
			next.due += next.period
			m.seq++
			next.seq = m.seq
			heap.Push(&m.queue, next)
		}
		next.fn()
	}
	m.now = target
}

// Pending returns how many live timers are scheduled
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.queue {
		if !t.stopped {
			n++
		}
	}
	return n
}

// taskQueue is a min-heap on (due, seq)
type taskQueue []*manualTask

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due == q[j].due {
		return q[i].seq < q[j].seq
	}
	return q[i].due < q[j].due
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(*manualTask)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}
