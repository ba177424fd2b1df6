// Package reactor implements the single shared reactor described in §4.1:
// post(f), async_read/write(conn, buffer, cb), and timer.after(d, cb). It
// generalizes the teacher repo's single-goroutine-per-task Invoker pattern
// (go-mcast/pkg/mcast/core/transport.go, core/peer.go) into a worker pool
// that is correct with exactly one worker and scales to more.
package reactor

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jabolina/yail-go/pkg/yail/errors"
)

// Reactor drains a single FIFO work queue on N worker goroutines. With one
// worker, posted work executes strictly in post order; with more, FIFO is
// preserved only per submitting caller; the core never depends on more
// than that (§4.1).
type Reactor struct {
	work   chan func()
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
}

// New builds a Reactor. Call Run to start its worker pool.
func New() *Reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		work:   make(chan func(), 256),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run starts n worker goroutines pulling from the shared work queue. n
// must be at least 1. Calling Run more than once is a no-op.
func (r *Reactor) Run(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		r.wg.Add(1)
		go r.loop()
	}
}

func (r *Reactor) loop() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case f, ok := <-r.work:
			if !ok {
				return
			}
			f()
		}
	}
}

// Post schedules f for execution on a reactor worker. If the reactor has
// no running workers (Run was never called), Post runs f synchronously on
// the calling goroutine, so single-threaded embedding (§4.1: "the core
// never assumes multiple reactor threads") works without an explicit Run.
func (r *Reactor) Post(f func()) {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if !running {
		f()
		return
	}
	select {
	case r.work <- f:
	case <-r.ctx.Done():
	}
}

// Stop cancels pending work and waits for running workers to drain.
func (r *Reactor) Stop() {
	r.cancel()
	r.wg.Wait()
}

// ReadWriteCloser pairs io.Reader and io.Writer (it has no Close method).
// AsyncRead and AsyncWrite take the narrower io.Reader and io.Writer.
type ReadWriteCloser interface {
	io.Reader
	io.Writer
}

// AsyncRead performs a read and posts cb(err, n) on a reactor worker. The
// read itself runs on its own goroutine (blocking I/O may not return for
// an arbitrary time); only completion delivery goes through Post.
func (r *Reactor) AsyncRead(conn io.Reader, buf []byte, cb func(error, int)) {
	go func() {
		n, err := conn.Read(buf)
		r.Post(func() { cb(err, n) })
	}()
}

// AsyncWrite performs a write and posts cb(err, n) on a reactor worker.
func (r *Reactor) AsyncWrite(conn io.Writer, buf []byte, cb func(error, int)) {
	go func() {
		n, err := conn.Write(buf)
		r.Post(func() { cb(err, n) })
	}()
}

// Timer arms a one-shot callback after a duration, cancellable before it
// fires.
type Timer struct {
	reactor  *Reactor
	timer    *time.Timer
	mu       sync.Mutex
	fired    bool
	canceled bool
}

// After arms cb to run after d, on a reactor worker, with a nil error.
// d <= 0 means "wait forever" per §9 ("Thread + condition-variable waits
// with timeout=0"): no timer is armed and cb never runs.
func (r *Reactor) After(d time.Duration, cb func(error)) *Timer {
	t := &Timer{reactor: r}
	if d <= 0 {
		// Never fires; the returned Timer only records cancellation.
		return t
	}
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.canceled {
			t.mu.Unlock()
			return
		}
		t.fired = true
		t.mu.Unlock()
		r.Post(func() { cb(nil) })
	})
	return t
}

// Cancel stops the timer if it has not already fired. It does not invoke
// cb: a timer cancelled before firing completes no callback at all, with
// a cancellation error or otherwise.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.canceled {
		return
	}
	t.canceled = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

// ErrCancelled is a PubSubCancelled error for callers that report a
// cancelled operation; nothing in this package returns or delivers it.
var ErrCancelled = errors.NewPubSub(errors.PubSubCancelled, "operation cancelled")
