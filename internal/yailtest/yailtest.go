// Package yailtest collects the small test-support helpers every package's
// tests share, generalized from the teacher repo's test/testing.go
// (WaitThisOrTimeout, PrintStackTrace) and wired to goleak for the leak
// assertions the spec's testable properties need (every AsyncReceive/
// AsyncSend goroutine, reactor worker, and transport receiver must wind
// down cleanly on Shutdown/Close).
package yailtest

import (
	"runtime"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/jabolina/yail-go/internal/invoker"
)

// WaitThisOrTimeout runs cb to completion on its own goroutine and reports
// whether it finished within duration. Mirrors go-mcast/test/testing.go.
func WaitThisOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan struct{})
	go func() {
		cb()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}

// PrintStackTrace dumps every goroutine's stack into t's failure log, used
// when WaitThisOrTimeout times out and the test wants to know what was
// still running.
func PrintStackTrace(t *testing.T) {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Errorf("%s", buf[:n])
}

// VerifyNoLeaks wraps goleak.VerifyNone, ignoring goroutines whose top
// frame is logrus' (*Entry).log.
func VerifyNoLeaks(t *testing.T) {
	goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("github.com/sirupsen/logrus.(*Entry).log"),
	)
}

// WithTrackedInvoker installs a fresh invoker.Tracked as the process-wide
// invoker for the duration of fn, restoring the previous one afterward and
// blocking until every goroutine it spawned has returned. Tests use this
// to assert quiescence before calling VerifyNoLeaks.
func WithTrackedInvoker(fn func(tracked *invoker.Tracked)) {
	tracked := invoker.NewTracked()
	prev := invoker.Instance()
	invoker.SetInstance(tracked)
	defer invoker.SetInstance(prev)

	fn(tracked)
	tracked.Wait()
}
