package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// eventLoop runs posted tasks one at a time, in posting order, on a single
// goroutine. Posting never blocks, so tasks may post further tasks.
type eventLoop struct {
	mu      sync.Mutex
	pending []loopTask
	signal  chan struct{}

	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once

	started atomic.Bool
}

type loopTask struct {
	name     string
	run      func()
	queuedAt time.Time
}

func newEventLoop() *eventLoop {
	return &eventLoop{
		signal:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (loop *eventLoop) CanIngest() bool {
	select {
	case <-loop.closeCh:
		return false
	default:
		return true
	}
}

func (loop *eventLoop) Start() (started bool) {
	if !loop.CanIngest() {
		return false
	}

	loop.startOnce.Do(func() {
		started = true
		loop.started.Store(true)
		go func() {
			defer close(loop.done)

			for {
				task, ok := loop.take()
				if !ok {
					select {
					case <-loop.closeCh:
						return
					case <-loop.signal:
					}
					continue
				}

				if !loop.CanIngest() {
					return
				}
				loop.process(task)
			}
		}()
	})

	return started
}

// Post queues run. It reports false once the loop is stopped.
func (loop *eventLoop) Post(name string, run func()) bool {
	if !loop.CanIngest() {
		return false
	}

	loop.mu.Lock()
	loop.pending = append(loop.pending, loopTask{name: name, run: run, queuedAt: time.Now()})
	loop.mu.Unlock()

	select {
	case loop.signal <- struct{}{}:
	default:
	}
	return true
}

func (loop *eventLoop) take() (loopTask, bool) {
	loop.mu.Lock()
	defer loop.mu.Unlock()

	if len(loop.pending) == 0 {
		return loopTask{}, false
	}
	task := loop.pending[0]
	loop.pending[0] = loopTask{}
	loop.pending = loop.pending[1:]
	return task, true
}

// Stop makes the loop exit after the task it is running. Tasks still queued
// are dropped.
func (loop *eventLoop) Stop() {
	loop.endOnce.Do(func() { close(loop.closeCh) })
}

func (loop *eventLoop) AwaitDone() {
	if loop.started.Load() {
		<-loop.done
	}
}

func (loop *eventLoop) process(task loopTask) {
	if err := panicSafeTask(task.name, task.run); err != nil {
		logger.Error("event loop task failed",
			"task", task.name,
			"queued_for", time.Since(task.queuedAt),
			"error", err)
	}
}

func panicSafeTask(name string, run func()) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%s task panicked: %v", name, recovered)
		}
	}()

	run()
	return nil
}
