// Package invoker generalizes the teacher repo's Invoker collaborator
// (referenced from go-mcast's pkg/mcast/core/transport.go and peer.go as
// InvokerInstance().Spawn(...), and reimplemented test-side in
// go-mcast/test/testing.go as TestInvoker) into a small goroutine-spawn
// facet. rpc.AsyncCall and the udp transport spawn through it, so tests can
// substitute a WaitGroup-tracked invoker and assert on quiescence; the other
// components (shmem, unixdomain, reactor) call `go` directly.
package invoker

import "sync"

// Invoker spawns f on its own goroutine. The default implementation is a
// bare `go f()`; test code wraps it in a sync.WaitGroup so shutdown paths
// can be awaited deterministically.
type Invoker interface {
	Spawn(f func())
}

// Default is the zero-overhead Invoker used outside of tests.
type Default struct{}

func (Default) Spawn(f func()) { go f() }

// instance is the process-wide default, mirroring the teacher's
// InvokerInstance() singleton accessor.
var instance Invoker = Default{}

// Instance returns the process-wide default Invoker.
func Instance() Invoker { return instance }

// SetInstance overrides the process-wide default, used by tests that need
// every component constructed with invoker.Instance() to share one
// WaitGroup-tracked invoker.
func SetInstance(i Invoker) { instance = i }

// Tracked is an Invoker that tracks every spawned goroutine on a
// sync.WaitGroup, letting tests wait for full quiescence before asserting
// goleak.VerifyNone. It mirrors go-mcast/test/testing.go's TestInvoker.
type Tracked struct {
	group sync.WaitGroup
}

func NewTracked() *Tracked { return &Tracked{} }

func (t *Tracked) Spawn(f func()) {
	t.group.Add(1)
	go func() {
		defer t.group.Done()
		f()
	}()
}

// Wait blocks until every goroutine spawned through this invoker returns.
func (t *Tracked) Wait() { t.group.Wait() }
