package pubsub

import (
	"sync"
	"time"

	"github.com/jabolina/yail-go/pkg/yail/definition"
	pserr "github.com/jabolina/yail-go/pkg/yail/errors"
	"github.com/jabolina/yail-go/pkg/yail/envelope"
	"github.com/jabolina/yail-go/pkg/yail/reactor"
)

// pendingOp is a reader's outstanding receive, either synchronous (the
// caller waits on syncCh) or asynchronous (cb fires when data arrives or
// the op is cancelled). §3's "condition variable, done flag, error slot"
// is realized here as a buffered channel, the teacher's own idiom for
// completion signalling (go-mcast/pkg/mcast/core/peer.go's observer type).
type pendingOp struct {
	async  bool
	cb     func(error, []byte)
	syncCh chan syncResult
}

type syncResult struct {
	err  error
	data []byte
}

// readerCtx is the per-reader subscriber-side state (§3 "ReaderCtx").
type readerCtx struct {
	opMu   sync.Mutex
	ops    []*pendingOp
	dataMu sync.Mutex
	data   [][]byte
}

// subTopicContext is the per-topic subscriber-side state (§3
// "TopicContext" on the subscriber side).
type subTopicContext struct {
	info    TopicInfo
	readers map[ID]*readerCtx
}

// Subscriber maintains topic -> reader(s), dispatches incoming payloads,
// and blocks or posts completions (§4.5).
type Subscriber struct {
	domain    string
	transport Transport
	log       definition.Logger
	reactor   *reactor.Reactor

	topicMapMu sync.Mutex
	topics     map[string]*subTopicContext

	// onDurableReader is invoked whenever the first reader is added for a
	// durable, non-builtin topic; the Service wires this to the
	// subscription-announcement writer (§4.5 "Subscription plumbing").
	onDurableReader func(info TopicInfo)
}

// NewSubscriber constructs a subscriber bound to one domain and transport.
// It immediately arms the transport's AsyncReceive loop.
func NewSubscriber(domain string, transport Transport, log definition.Logger, r *reactor.Reactor) *Subscriber {
	s := &Subscriber{
		domain:    domain,
		transport: transport,
		log:       log,
		reactor:   r,
		topics:    make(map[string]*subTopicContext),
	}
	s.armReceive()
	return s
}

func (s *Subscriber) armReceive() {
	var onRecv func(error, []byte)
	onRecv = func(err error, payload []byte) {
		if err != nil {
			s.log.Warnf("subscriber: transport receive error: %v", err)
		} else {
			s.processMessage(payload)
		}
		s.transport.AsyncReceive(onRecv)
	}
	s.transport.AsyncReceive(onRecv)
}

// SetOnDurableReader installs the subscription-announcement hook; called
// once by Service during construction.
func (s *Subscriber) SetOnDurableReader(f func(info TopicInfo)) {
	s.onDurableReader = f
}

// AddReader inserts or fetches the TopicContext for (name, typeName) and
// registers a new ReaderCtx under id (§4.5).
func (s *Subscriber) AddReader(id ID, name, typeName string, qos QoS) (string, error) {
	s.topicMapMu.Lock()
	topicID := envelope.TopicID(s.domain, name, typeName)
	tc, existed := s.topics[topicID]
	if !existed {
		tc = &subTopicContext{
			info:    TopicInfo{Name: name, TypeName: typeName, QoS: qos},
			readers: make(map[ID]*readerCtx),
		}
		s.topics[topicID] = tc
	}
	if _, exists := tc.readers[id]; exists {
		s.topicMapMu.Unlock()
		pserr.Raise("duplicate data reader %s on topic %s", id, topicID)
	}
	tc.readers[id] = &readerCtx{}
	firstReader := len(tc.readers) == 1
	info := tc.info
	s.topicMapMu.Unlock()

	if firstReader {
		if err := s.transport.AddTopic(topicID); err != nil {
			s.log.Warnf("subscriber: transport add_topic(%s) failed: %v", topicID, err)
		}
		isBuiltin := name == envelope.BuiltinSubscriptionTopic
		if !isBuiltin && qos.Durability == TRANSIENT_LOCAL && s.onDurableReader != nil {
			s.onDurableReader(info)
		}
	}
	return topicID, nil
}

// RemoveReader drops the ReaderCtx for id, dropping the TopicContext and
// notifying the transport once it has no readers left.
func (s *Subscriber) RemoveReader(id ID, topicID string) {
	s.topicMapMu.Lock()
	defer s.topicMapMu.Unlock()

	tc, ok := s.topics[topicID]
	if !ok {
		return
	}
	delete(tc.readers, id)
	if len(tc.readers) == 0 {
		delete(s.topics, topicID)
		if err := s.transport.RemoveTopic(topicID); err != nil {
			s.log.Warnf("subscriber: transport remove_topic(%s) failed: %v", topicID, err)
		}
	}
}

func (s *Subscriber) resolveReader(id ID, topicID string) (*readerCtx, error) {
	s.topicMapMu.Lock()
	defer s.topicMapMu.Unlock()

	tc, ok := s.topics[topicID]
	if !ok {
		return nil, pserr.NewPubSub(pserr.PubSubUnknownTopic, topicID)
	}
	rc, ok := tc.readers[id]
	if !ok {
		return nil, pserr.NewPubSub(pserr.PubSubUnknownDataReader, id.String())
	}
	return rc, nil
}

// Receive synchronously waits for the next payload on topicID for reader
// id, up to timeout (0 == forever), per §4.5's receive algorithm.
func (s *Subscriber) Receive(id ID, topicID string, timeout time.Duration) ([]byte, error) {
	rc, err := s.resolveReader(id, topicID)
	if err != nil {
		return nil, err
	}

	rc.dataMu.Lock()
	if len(rc.data) > 0 {
		payload := rc.data[0]
		rc.data = rc.data[1:]
		rc.dataMu.Unlock()
		return payload, nil
	}
	rc.dataMu.Unlock()

	op := &pendingOp{syncCh: make(chan syncResult, 1)}
	rc.opMu.Lock()
	rc.ops = append(rc.ops, op)
	rc.opMu.Unlock()

	if timeout <= 0 {
		res := <-op.syncCh
		return res.data, res.err
	}

	select {
	case res := <-op.syncCh:
		return res.data, res.err
	case <-time.After(timeout):
		s.abandon(rc, op)
		return nil, pserr.NewPubSub(pserr.PubSubCancelled, "receive timed out")
	}
}

// abandon removes op from rc's pending queue if a message has not already
// claimed it, realizing §5's "on timeout the waiter sets its own error to
// Cancelled ... a later incoming message observes done==true and skips".
func (s *Subscriber) abandon(rc *readerCtx, op *pendingOp) {
	rc.opMu.Lock()
	defer rc.opMu.Unlock()
	for i, o := range rc.ops {
		if o == op {
			rc.ops = append(rc.ops[:i], rc.ops[i+1:]...)
			return
		}
	}
}

// AsyncReceive asynchronously waits for the next payload on topicID,
// invoking cb on delivery or cancellation.
func (s *Subscriber) AsyncReceive(id ID, topicID string, cb func(error, []byte)) {
	rc, err := s.resolveReader(id, topicID)
	if err != nil {
		s.reactor.Post(func() { cb(err, nil) })
		return
	}

	rc.dataMu.Lock()
	if len(rc.data) > 0 {
		payload := rc.data[0]
		rc.data = rc.data[1:]
		rc.dataMu.Unlock()
		s.reactor.Post(func() { cb(nil, payload) })
		return
	}
	rc.dataMu.Unlock()

	op := &pendingOp{async: true, cb: cb}
	rc.opMu.Lock()
	rc.ops = append(rc.ops, op)
	rc.opMu.Unlock()
}

// Cancel completes every pending async op for reader id on topicID with
// Cancelled; synchronous waiters are unaffected (§4.5, §5).
func (s *Subscriber) Cancel(id ID, topicID string) {
	rc, err := s.resolveReader(id, topicID)
	if err != nil {
		return
	}

	rc.opMu.Lock()
	remaining := rc.ops[:0]
	var toCancel []*pendingOp
	for _, op := range rc.ops {
		if op.async {
			toCancel = append(toCancel, op)
		} else {
			remaining = append(remaining, op)
		}
	}
	rc.ops = remaining
	rc.opMu.Unlock()

	cancelled := pserr.NewPubSub(pserr.PubSubCancelled, "receive cancelled")
	for _, op := range toCancel {
		cb := op.cb
		s.reactor.Post(func() { cb(cancelled, nil) })
	}
}

// processMessage implements §4.5's process_pubsub_message.
func (s *Subscriber) processMessage(raw []byte) {
	env, err := envelope.Unmarshal(raw)
	if err != nil {
		s.log.Warnf("subscriber: dropping malformed envelope: %v", err)
		return
	}

	topicID := envelope.TopicID(env.Data.Domain, env.Data.TopicName, env.Data.TopicTypeName)

	s.topicMapMu.Lock()
	tc, ok := s.topics[topicID]
	var readers []*readerCtx
	if ok {
		readers = make([]*readerCtx, 0, len(tc.readers))
		for _, rc := range tc.readers {
			readers = append(readers, rc)
		}
	}
	s.topicMapMu.Unlock()

	if !ok {
		return
	}

	for _, rc := range readers {
		s.deliverOne(rc, env.Data.TopicData)
	}
}

func (s *Subscriber) deliverOne(rc *readerCtx, payload []byte) {
	rc.opMu.Lock()
	var op *pendingOp
	if len(rc.ops) > 0 {
		op = rc.ops[0]
		rc.ops = rc.ops[1:]
	}
	rc.opMu.Unlock()

	if op == nil {
		rc.dataMu.Lock()
		rc.data = append(rc.data, payload)
		rc.dataMu.Unlock()
		return
	}

	if op.async {
		cb := op.cb
		s.reactor.Post(func() { cb(nil, payload) })
		return
	}
	op.syncCh <- syncResult{data: payload}
}
