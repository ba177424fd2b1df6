// Package unixdomain implements the UNIX-domain stream RPC transport from
// §4.11: per-call connect, 4-byte length-prefixed framing in both
// directions, a timer-vs-read race for synchronous client timeouts, and a
// refcounted server-side acceptor per endpoint.
package unixdomain

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jabolina/yail-go/pkg/yail/definition"
	"github.com/jabolina/yail-go/pkg/yail/envelope"
	"github.com/jabolina/yail-go/pkg/yail/rpc"
)

// ErrTimedOut is returned by ClientSendAndReceive when the timer wins its
// race against the read.
var ErrTimedOut = errors.New("unixdomain: synchronous call timed out")

// endpointListener is one refcounted acceptor (§4.11 "An endpoint may be
// added multiple times (refcount)").
type endpointListener struct {
	path     string
	ln       *net.UnixListener
	refcount int
	closing  bool
}

// Transport is the UNIX-domain RPC transport. baseDir defaults to
// "/var/run" for DefaultEndpoint, overridable with WithBaseDir for tests
// that cannot write there.
type Transport struct {
	log     definition.Logger
	baseDir string

	mu        sync.Mutex
	listeners map[string]*endpointListener

	recvMu  sync.RWMutex
	receive func(session rpc.Session, req []byte)
}

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithBaseDir overrides the directory DefaultEndpoint derives socket
// paths under (default "/var/run").
func WithBaseDir(dir string) Option {
	return func(t *Transport) { t.baseDir = dir }
}

// New builds a UNIX-domain transport.
func New(log definition.Logger, opts ...Option) *Transport {
	t := &Transport{
		log:       log,
		baseDir:   "/var/run",
		listeners: make(map[string]*endpointListener),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DefaultEndpoint implements locator.DefaultEndpoint: the UNIX-domain
// transport's fallback is "<baseDir>/<service_name>" (§4.12).
func (t *Transport) DefaultEndpoint(serviceName string) (string, bool) {
	return filepath.Join(t.baseDir, serviceName), true
}

// session is the opaque handle ServerSend receives back; it holds the
// live connection until a response is written.
type session struct {
	conn net.Conn
}

// ServerSetReceiveHandler installs cb, invoked once per fully-read inbound
// request.
func (t *Transport) ServerSetReceiveHandler(cb func(session rpc.Session, req []byte)) {
	t.recvMu.Lock()
	t.receive = cb
	t.recvMu.Unlock()
}

// ServerAdd starts (or re-references) accepting connections on ep,
// deleting any stale socket path first, then binding, listening, and
// posting one accept loop (§4.11).
func (t *Transport) ServerAdd(ep string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if el, ok := t.listeners[ep]; ok {
		el.refcount++
		return nil
	}

	_ = os.Remove(ep)
	addr, err := net.ResolveUnixAddr("unix", ep)
	if err != nil {
		return fmt.Errorf("unixdomain: resolve %s: %w", ep, err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("unixdomain: listen %s: %w", ep, err)
	}

	el := &endpointListener{path: ep, ln: ln, refcount: 1}
	t.listeners[ep] = el
	go t.acceptLoop(el)
	return nil
}

// ServerRemove drops a reference to ep, tearing it down and unlinking the
// socket path at zero (§4.11).
func (t *Transport) ServerRemove(ep string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	el, ok := t.listeners[ep]
	if !ok {
		return nil
	}
	el.refcount--
	if el.refcount > 0 {
		return nil
	}
	el.closing = true
	delete(t.listeners, ep)
	err := el.ln.Close()
	_ = os.Remove(ep)
	return err
}

func (t *Transport) acceptLoop(el *endpointListener) {
	for {
		conn, err := el.ln.AcceptUnix()
		if err != nil {
			if el.closing {
				return
			}
			t.log.Warnf("unixdomain: accept on %s failed: %v", el.path, err)
			return
		}
		go t.handleConn(conn)
	}
}

func (t *Transport) handleConn(conn net.Conn) {
	payload, err := envelope.ReadFramed(conn)
	if err != nil {
		t.log.Warnf("unixdomain: failed reading request: %v", err)
		conn.Close()
		return
	}

	t.recvMu.RLock()
	cb := t.receive
	t.recvMu.RUnlock()
	if cb == nil {
		conn.Close()
		return
	}
	cb(&session{conn: conn}, payload)
}

// ServerSend writes len32 ‖ response_bytes and ends the session (§4.11).
func (t *Transport) ServerSend(s rpc.Session, res []byte) error {
	sess, ok := s.(*session)
	if !ok {
		return fmt.Errorf("unixdomain: invalid session handle")
	}
	defer sess.conn.Close()
	return envelope.WriteFramed(sess.conn, res)
}

// ClientSendAndReceive connects to ep, writes the framed request, then
// races a read against a timer: whichever fires first cancels the other
// (§4.11). timeout <= 0 disables the timer.
func (t *Transport) ClientSendAndReceive(ep string, req []byte, timeout time.Duration) ([]byte, error) {
	conn, err := net.Dial("unix", ep)
	if err != nil {
		return nil, fmt.Errorf("unixdomain: dial %s: %w", ep, err)
	}
	defer conn.Close()

	if err := envelope.WriteFramed(conn, req); err != nil {
		return nil, fmt.Errorf("unixdomain: write request: %w", err)
	}

	type result struct {
		buf []byte
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		buf, err := envelope.ReadFramed(conn)
		resultCh <- result{buf: buf, err: err}
	}()

	if timeout <= 0 {
		res := <-resultCh
		return res.buf, res.err
	}

	select {
	case res := <-resultCh:
		return res.buf, res.err
	case <-time.After(timeout):
		conn.Close() // unblocks the racing reader; its result is discarded
		return nil, ErrTimedOut
	}
}

// AsyncClientSendAndReceive runs ClientSendAndReceive on its own
// goroutine, delivering the result to cb.
func (t *Transport) AsyncClientSendAndReceive(ep string, req []byte, cb func([]byte, error)) {
	go func() {
		buf, err := t.ClientSendAndReceive(ep, req, 0)
		cb(buf, err)
	}()
}
