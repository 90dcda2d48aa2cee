package scheduler

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned when scheduling on a stopped scheduler
var ErrStopped = errors.New("scheduler is stopped")

// task is a callback due at expiryAt. Recurring tasks carry an interval and
// are pushed back onto the heap each time they fire.
type task struct {
	id       string
	expiryAt time.Time
	interval time.Duration
	callback func()
	index    int // index in the heap (for heap.Interface)
}

// taskHeap is a min-heap of tasks ordered by expiryAt
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	return h[i].expiryAt.Before(h[j].expiryAt)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler runs one-shot and recurring callbacks from a single timer loop.
// It drives the simulator job and station inactivity timeouts.
type Scheduler struct {
	heap    taskHeap
	tasks   map[string]*task
	mu      sync.Mutex
	wakeup  chan struct{}
	stopCh  chan struct{}
	stopped bool
	running sync.WaitGroup
	loop    sync.WaitGroup
}

func New() *Scheduler {
	s := &Scheduler{
		heap:   make(taskHeap, 0),
		tasks:  make(map[string]*task),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	heap.Init(&s.heap)
	return s
}

// Start launches the timer loop
func (s *Scheduler) Start() {
	s.loop.Add(1)
	go s.run()
}

// Stop ends the timer loop and waits for callbacks already running
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	s.loop.Wait()
	s.running.Wait()
}

// At runs callback once at expiryAt. Scheduling an id again replaces the
// pending task.
func (s *Scheduler) At(id string, expiryAt time.Time, callback func()) error {
	return s.schedule(&task{id: id, expiryAt: expiryAt, callback: callback})
}

// After runs callback once after d
func (s *Scheduler) After(id string, d time.Duration, callback func()) error {
	return s.At(id, time.Now().Add(d), callback)
}

// Every runs callback every interval until cancelled, first after one interval
func (s *Scheduler) Every(id string, interval time.Duration, callback func()) error {
	if interval <= 0 {
		return errors.New("interval must be positive")
	}
	return s.schedule(&task{
		id:       id,
		expiryAt: time.Now().Add(interval),
		interval: interval,
		callback: callback,
	})
}

func (s *Scheduler) schedule(t *task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}

	if existing, ok := s.tasks[t.id]; ok {
		heap.Remove(&s.heap, existing.index)
		delete(s.tasks, t.id)
	}

	heap.Push(&s.heap, t)
	s.tasks[t.id] = t

	if s.heap[0] == t {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// Cancel removes a pending task. It does not interrupt a running callback.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}

	heap.Remove(&s.heap, t.index)
	delete(s.tasks, id)
	return true
}

func (s *Scheduler) run() {
	defer s.loop.Done()

	for {
		s.mu.Lock()

		if s.stopped {
			s.mu.Unlock()
			return
		}

		waitDuration := 24 * time.Hour
		if s.heap.Len() > 0 {
			next := s.heap[0]
			waitDuration = time.Until(next.expiryAt)

			if waitDuration <= 0 {
				t := heap.Pop(&s.heap).(*task)
				delete(s.tasks, t.id)

				if t.interval > 0 {
					t.expiryAt = time.Now().Add(t.interval)
					heap.Push(&s.heap, t)
					s.tasks[t.id] = t
				}

				s.running.Add(1)
				go func(callback func()) {
					defer s.running.Done()
					callback()
				}(t.callback)

				s.mu.Unlock()
				continue
			}
		}

		s.mu.Unlock()

		timer := time.NewTimer(waitDuration)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

// Stats describes the pending tasks
type Stats struct {
	Scheduled int
	Recurring int
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Scheduled: len(s.tasks)}
	for _, t := range s.tasks {
		if t.interval > 0 {
			stats.Recurring++
		}
	}
	return stats
}
