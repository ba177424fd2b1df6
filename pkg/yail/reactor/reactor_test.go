package reactor

import (
	"io"
	"sync"
	"testing"
	"time"
)

func newPipe() (*io.PipeReader, *io.PipeWriter) {
	return io.Pipe()
}

func TestPostSynchronousWithoutRun(t *testing.T) {
	r := New()
	called := false
	r.Post(func() { called = true })
	if !called {
		t.Fatalf("Post should run synchronously when no workers are running")
	}
}

func TestPostFIFOOnSingleWorker(t *testing.T) {
	r := New()
	r.Run(1)
	defer r.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		i := i
		r.Post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("posted work ran out of order: %v", order)
		}
	}
}

func TestAsyncReadWrite(t *testing.T) {
	r := New()
	r.Run(1)
	defer r.Stop()

	pr, pw := newPipe()
	defer pr.Close()
	defer pw.Close()

	done := make(chan struct{})
	r.AsyncRead(pr, make([]byte, 5), func(err error, n int) {
		if err != nil || n != 5 {
			t.Errorf("AsyncRead callback: n=%d err=%v", n, err)
		}
		close(done)
	})

	r.AsyncWrite(pw, []byte("hello"), func(error, int) {})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("AsyncRead callback never fired")
	}
}

func TestTimerCancelBeforeFire(t *testing.T) {
	r := New()
	r.Run(1)
	defer r.Stop()

	fired := make(chan struct{})
	timer := r.After(time.Hour, func(error) { close(fired) })
	timer.Cancel()

	select {
	case <-fired:
		t.Fatalf("callback fired after cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimerFires(t *testing.T) {
	r := New()
	r.Run(1)
	defer r.Stop()

	fired := make(chan struct{})
	r.After(10*time.Millisecond, func(error) { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("timer never fired")
	}
}
