package testutil

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler is a Scheduler driven by the test. Nothing runs until the
// test calls RunNext or Advance; tasks then run synchronously in the calling
// goroutine, earliest due first.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	tasks  []*scheduledTask
	delays []time.Duration
}

type scheduledTask struct {
	seq   int
	due   time.Duration
	delay time.Duration
	fn    func()
}

// NewManualScheduler creates an empty scheduler at virtual time zero
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// Schedule queues fn to run delay after the current virtual time
func (s *ManualScheduler) Schedule(delay time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &scheduledTask{seq: s.seq, due: s.now + delay, delay: delay, fn: fn}
	s.tasks = append(s.tasks, t)
	s.delays = append(s.delays, delay)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, pending := range s.tasks {
			if pending == t {
				s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
				return
			}
		}
	}
}

// Pending returns the number of queued tasks
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// NextDelay returns the delay the earliest queued task was scheduled with
func (s *ManualScheduler) NextDelay() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return 0, false
	}
	s.sortLocked()
	return s.tasks[0].delay, true
}

// Delays returns every delay passed to Schedule, in call order
func (s *ManualScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.delays))
	copy(out, s.delays)
	return out
}

// Now returns the virtual time
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// RunNext runs the earliest task, moving virtual time to its due time. It
// reports false when nothing was queued.
func (s *ManualScheduler) RunNext() bool {
	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return false
	}
	s.sortLocked()
	t := s.tasks[0]
	s.tasks = s.tasks[1:]
	if t.due > s.now {
		s.now = t.due
	}
	s.mu.Unlock()

	t.fn()
	return true
}

// RunAll runs tasks until the queue is empty or max tasks have run, and
// returns how many ran
func (s *ManualScheduler) RunAll(max int) int {
	n := 0
	for n < max && s.RunNext() {
		n++
	}
	return n
}

// Advance moves virtual time forward by d, running every task that falls due
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	n := 0
	for {
		s.mu.Lock()
		s.sortLocked()
		if len(s.tasks) == 0 || s.tasks[0].due > target {
			s.now = target
			s.mu.Unlock()
			return n
		}
		s.mu.Unlock()
		s.RunNext()
		n++
	}
}

func (s *ManualScheduler) sortLocked() {
	sort.SliceStable(s.tasks, func(i, j int) bool {
		if s.tasks[i].due != s.tasks[j].due {
			return s.tasks[i].due < s.tasks[j].due
		}
		return s.tasks[i].seq < s.tasks[j].seq
	})
}
