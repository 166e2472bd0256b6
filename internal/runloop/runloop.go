// Package runloop provides the coordinator's single logical thread. Every
// mutation of coordinator state is posted here, so registry and router code
// runs without locking: the loop serializes all handler invocations.
package runloop

import "sync"

// Loop is an unbounded FIFO task queue drained by a single goroutine.
type Loop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	stopped bool
	done    chan struct{}
}

// New creates a new loop. Run must be called for posted tasks to execute.
func New() *Loop {
	l := &Loop{done: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Post enqueues a task. It never blocks and is safe to call from any
// goroutine, including from within a running task.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.tasks = append(l.tasks, task)
	l.mu.Unlock()
	l.cond.Signal()
}

// PostWait enqueues a task and blocks until it has run. Calling PostWait
// from inside a loop task would deadlock; it exists for startup sequencing
// and tests.
func (l *Loop) PostWait(task func()) {
	ran := make(chan struct{})
	l.Post(func() {
		task()
		close(ran)
	})
	select {
	case <-ran:
	case <-l.done:
	}
}

// Run drains tasks until Stop is called. It blocks the calling goroutine.
func (l *Loop) Run() {
	for {
		l.mu.Lock()
		for len(l.tasks) == 0 && !l.stopped {
			l.cond.Wait()
		}
		if l.stopped && len(l.tasks) == 0 {
			l.mu.Unlock()
			close(l.done)
			return
		}
		task := l.tasks[0]
		l.tasks = l.tasks[1:]
		l.mu.Unlock()

		task()
	}
}

// Stop lets Run return once the queue is drained. Tasks posted after Stop
// are discarded.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.cond.Broadcast()
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
