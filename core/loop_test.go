package session

import (
	"testing"
	"time"
)

func TestEventLoopRunsTasksInOrder(t *testing.T) {
	loop := newEventLoop()
	loop.Start()
	defer func() {
		loop.Stop()
		loop.AwaitDone()
	}()

	results := make(chan int, 10)
	for i := range 5 {
		loop.Post("ordered", func() {
			if i == 1 {
				loop.Post("nested", func() { results <- 99 })
			}
			results <- i
		})
	}

	expected := []int{0, 1, 2, 3, 4, 99}
	for _, want := range expected {
		select {
		case got := <-results:
			if got != want {
				t.Fatalf("expected %d, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %d", want)
		}
	}
}

func TestEventLoopSurvivesPanics(t *testing.T) {
	loop := newEventLoop()
	loop.Start()
	defer func() {
		loop.Stop()
		loop.AwaitDone()
	}()

	done := make(chan struct{})
	loop.Post("panics", func() { panic("boom") })
	loop.Post("after", func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected loop to keep running after a panic")
	}
}

func TestEventLoopRejectsAfterStop(t *testing.T) {
	loop := newEventLoop()
	loop.Start()
	loop.Stop()
	loop.AwaitDone()

	if loop.Post("late", func() {}) {
		t.Fatalf("expected post to fail after stop")
	}
	if loop.Start() {
		t.Fatalf("expected start to fail after stop")
	}
}
