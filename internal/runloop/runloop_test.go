package runloop

import (
	"sync"
	"testing"
)

func TestPostRunsInOrder(t *testing.T) {
	l := New()

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Post(l.Stop)

	l.Run()

	if len(got) != 10 {
		t.Fatalf("ran %d tasks, want 10", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Errorf("task %d ran at position %d", v, i)
		}
	}
}

func TestPostFromWithinTask(t *testing.T) {
	l := New()

	ran := false
	l.Post(func() {
		l.Post(func() { ran = true })
		l.Post(l.Stop)
	})

	l.Run()

	if !ran {
		t.Error("nested task did not run")
	}
}

func TestPostWait(t *testing.T) {
	l := New()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Run()
	}()

	ran := false
	l.PostWait(func() { ran = true })
	if !ran {
		t.Error("PostWait returned before task ran")
	}

	l.Stop()
	wg.Wait()
}

func TestPostAfterStopDiscarded(t *testing.T) {
	l := New()
	l.Stop()
	l.Post(func() { t.Error("task ran after stop") })
	l.Run()
}
