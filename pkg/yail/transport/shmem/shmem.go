// Package shmem implements the reference PubSub shared-memory transport
// from §4.7/§9: no Go library in this corpus speaks POSIX shm_open or
// mqueue, so the inter-process mailbox is realized with a flock-guarded
// JSON registry file (the directory entry each peer publishes itself
// into, standing in for a named shared segment) plus one SOCK_DGRAM
// net.UnixConn per peer (the mailbox itself). A liveness probe via
// golang.org/x/sys/unix.Kill prunes peers whose process has exited
// without a clean Close.
package shmem

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jabolina/yail-go/pkg/yail/definition"
	pserr "github.com/jabolina/yail-go/pkg/yail/errors"
)

const maxDatagram = 1 << 16

// registryEntry is one peer's directory record: where its mailbox lives
// and which topics it currently wants fanned in (the filtering hint
// described on pubsub.Transport.AddTopic).
type registryEntry struct {
	PID    int      `json:"pid"`
	Socket string   `json:"socket"`
	Topics []string `json:"topics"`
}

type registryFile struct {
	Peers []registryEntry `json:"peers"`
}

// Transport is the shared-memory PubSub transport. One Transport per
// domain per process.
type Transport struct {
	log      definition.Logger
	dir      string
	domain   string
	pid      int
	sockPath string
	conn     *net.UnixConn

	queueDepth int
	deliverCh  chan []byte

	sendCh chan sendOp

	topicsMu sync.Mutex
	topics   map[string]struct{}

	closeOnce sync.Once
	closeCh   chan struct{}
}

// sendOp is one enqueued fanout request, drained in order by the single
// per-process sender worker (§4.7: "Producers enqueue a send op; the
// worker dequeues one at a time").
type sendOp struct {
	topicID string
	payload []byte
	cb      func(error)
}

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithQueueDepth bounds the per-process receive buffer; beyond this depth
// the receiver worker drops the newest datagram rather than block
// (default 256).
func WithQueueDepth(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.queueDepth = n
		}
	}
}

// New creates a shmem transport for domain, rooted at dir (the directory
// holding the per-domain registry file and per-process mailbox sockets;
// typically os.TempDir() or a tmpfs mount). It registers the calling
// process's mailbox immediately and starts its receiver worker.
func New(dir, domain string, log definition.Logger, opts ...Option) (*Transport, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("shmem: mkdir %s: %w", dir, err)
	}

	pid := os.Getpid()
	t := &Transport{
		log:        log,
		dir:        dir,
		domain:     domain,
		pid:        pid,
		sockPath:   filepath.Join(dir, fmt.Sprintf("%s-%d.sock", domain, pid)),
		queueDepth: 256,
		topics:     make(map[string]struct{}),
		closeCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.deliverCh = make(chan []byte, t.queueDepth)
	t.sendCh = make(chan sendOp)

	_ = os.Remove(t.sockPath)
	addr, err := net.ResolveUnixAddr("unixgram", t.sockPath)
	if err != nil {
		return nil, fmt.Errorf("shmem: resolve %s: %w", t.sockPath, err)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("shmem: listen %s: %w", t.sockPath, err)
	}
	t.conn = conn

	if err := t.publishSelf(); err != nil {
		conn.Close()
		_ = os.Remove(t.sockPath)
		return nil, err
	}

	go t.receiverLoop()
	go t.senderLoop()
	return t, nil
}

func (t *Transport) registryPath() string {
	return filepath.Join(t.dir, t.domain+".registry.json")
}

// withRegistry opens the domain's registry file, takes an exclusive
// flock, prunes entries whose PID no longer exists, lets fn mutate the
// result, and persists it back before releasing the lock.
func (t *Transport) withRegistry(fn func(*registryFile)) error {
	f, err := os.OpenFile(t.registryPath(), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("shmem: open registry: %w", err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("shmem: flock registry: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	var rf registryFile
	if info, statErr := f.Stat(); statErr == nil && info.Size() > 0 {
		dec := json.NewDecoder(f)
		if err := dec.Decode(&rf); err != nil {
			t.log.Warnf("shmem: registry file corrupt, resetting: %v", err)
			rf = registryFile{}
		}
	}

	live := rf.Peers[:0]
	for _, p := range rf.Peers {
		if p.PID == t.pid || processAlive(p.PID) {
			live = append(live, p)
		}
	}
	rf.Peers = live

	fn(&rf)

	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	return json.NewEncoder(f).Encode(&rf)
}

// processAlive probes liveness with signal 0 (§9: "golang.org/x/sys/unix
// for the shmem liveness probe"), which delivers no signal but still
// reports ESRCH for a dead PID.
func processAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

func (t *Transport) publishSelf() error {
	return t.withRegistry(func(rf *registryFile) {
		t.topicsMu.Lock()
		topics := make([]string, 0, len(t.topics))
		for tp := range t.topics {
			topics = append(topics, tp)
		}
		t.topicsMu.Unlock()

		for i := range rf.Peers {
			if rf.Peers[i].PID == t.pid {
				rf.Peers[i].Socket = t.sockPath
				rf.Peers[i].Topics = topics
				return
			}
		}
		rf.Peers = append(rf.Peers, registryEntry{PID: t.pid, Socket: t.sockPath, Topics: topics})
	})
}

// AddTopic records topicID as wanted locally and republishes the
// process's registry entry so other senders can filter fanout.
func (t *Transport) AddTopic(topicID string) error {
	t.topicsMu.Lock()
	t.topics[topicID] = struct{}{}
	t.topicsMu.Unlock()
	return t.publishSelf()
}

// RemoveTopic drops topicID from the local interest set.
func (t *Transport) RemoveTopic(topicID string) error {
	t.topicsMu.Lock()
	delete(t.topics, topicID)
	t.topicsMu.Unlock()
	return t.publishSelf()
}

// Send fans payload out synchronously to every live peer registered for
// topicID (other than self), up to timeout for the whole fanout.
func (t *Transport) Send(topicID string, payload []byte, timeout time.Duration) error {
	done := make(chan error, 1)
	t.AsyncSend(topicID, payload, func(err error) { done <- err })
	if timeout <= 0 {
		return <-done
	}
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return pserr.NewPubSub(pserr.PubSubCancelled, "shmem send timed out")
	}
}

// AsyncSend enqueues a fanout of payload to every peer subscribed to
// topicID onto the transport's single sender worker, which dequeues and
// executes sends one at a time (§4.7, §5: completions fire in enqueue
// order per writer). cb is invoked on the worker goroutine once this op
// is done.
func (t *Transport) AsyncSend(topicID string, payload []byte, cb func(error)) {
	op := sendOp{topicID: topicID, payload: payload, cb: cb}
	select {
	case t.sendCh <- op:
	case <-t.closeCh:
		cb(pserr.NewPubSub(pserr.PubSubSystemError, "transport closed"))
	}
}

// senderLoop is the single per-process sender worker: it drains sendCh
// one operation at a time, so two AsyncSend calls from the same writer
// always complete in the order they were enqueued.
func (t *Transport) senderLoop() {
	for {
		select {
		case op := <-t.sendCh:
			op.cb(t.doSend(op.topicID, op.payload))
		case <-t.closeCh:
			return
		}
	}
}

// doSend reads the registry once and fans payload out to every peer
// subscribed to topicID (the filtering hint AddTopic/RemoveTopic exists
// to narrow). Best-effort per peer; one failed datagram does not abort
// the others, but the first error observed is returned.
func (t *Transport) doSend(topicID string, payload []byte) error {
	var rf registryFile
	f, err := os.Open(t.registryPath())
	if err != nil {
		return fmt.Errorf("shmem: open registry: %w", err)
	}
	decErr := json.NewDecoder(f).Decode(&rf)
	f.Close()
	if decErr != nil {
		return fmt.Errorf("shmem: decode registry: %w", decErr)
	}

	var firstErr error
	for _, peer := range rf.Peers {
		if peer.PID == t.pid || !wants(peer.Topics, topicID) {
			continue
		}
		if err := t.sendTo(peer.Socket, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func wants(topics []string, topicID string) bool {
	for _, tp := range topics {
		if tp == topicID {
			return true
		}
	}
	return false
}

func (t *Transport) sendTo(sockPath string, payload []byte) error {
	addr, err := net.ResolveUnixAddr("unixgram", sockPath)
	if err != nil {
		return err
	}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(payload)
	return err
}

func (t *Transport) receiverLoop() {
	buf := make([]byte, maxDatagram)
	for {
		n, _, err := t.conn.ReadFromUnix(buf)
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
			}
			t.log.Warnf("shmem: receive failed: %v", err)
			return
		}
		msg := make([]byte, n)
		copy(msg, buf[:n])
		select {
		case t.deliverCh <- msg:
		default:
			t.log.Warnf("shmem: receive queue full (depth %d), dropping newest", t.queueDepth)
		}
	}
}

// AsyncReceive delivers the next queued datagram to cb, or blocks (on its
// own goroutine) until one arrives or the transport is closed.
func (t *Transport) AsyncReceive(cb func(error, []byte)) {
	go func() {
		select {
		case msg, ok := <-t.deliverCh:
			if !ok {
				cb(pserr.NewPubSub(pserr.PubSubSystemError, "transport closed"), nil)
				return
			}
			cb(nil, msg)
		case <-t.closeCh:
			cb(pserr.NewPubSub(pserr.PubSubSystemError, "transport closed"), nil)
		}
	}()
}

// Close unregisters the process from the domain registry and tears down
// its mailbox socket.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closeCh)
		err = t.withRegistry(func(rf *registryFile) {
			live := rf.Peers[:0]
			for _, p := range rf.Peers {
				if p.PID != t.pid {
					live = append(live, p)
				}
			}
			rf.Peers = live
		})
		t.conn.Close()
		_ = os.Remove(t.sockPath)
	})
	return err
}
