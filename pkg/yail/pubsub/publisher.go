package pubsub

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jabolina/yail-go/pkg/yail/definition"
	pserr "github.com/jabolina/yail-go/pkg/yail/errors"
	"github.com/jabolina/yail-go/pkg/yail/envelope"
)

// historyRing is a bounded FIFO of the last N successfully built pubsub
// payloads for a TRANSIENT_LOCAL topic (§3 "history_ring").
type historyRing struct {
	depth int
	items []envelope.Data
}

func newHistoryRing(depth int) *historyRing {
	return &historyRing{depth: depth, items: make([]envelope.Data, 0, depth)}
}

func (h *historyRing) push(d envelope.Data) {
	if len(h.items) == h.depth {
		h.items = h.items[1:]
	}
	h.items = append(h.items, d)
}

func (h *historyRing) snapshot() []envelope.Data {
	out := make([]envelope.Data, len(h.items))
	copy(out, h.items)
	return out
}

// pendingSend is one queued async send op on a writer, completed in FIFO
// order as the transport reports completions (§4.4).
type pendingSend struct {
	cb func(error)
}

// writerCtx is the per-writer publisher-side state (§3 "WriterCtx").
type writerCtx struct {
	mu      sync.Mutex
	pending []*pendingSend
}

// topicContext is the per-topic publisher-side state (§3 "TopicContext").
type topicContext struct {
	info    TopicInfo
	writers map[ID]*writerCtx
	history *historyRing // nil unless QoS.Durability == TRANSIENT_LOCAL
}

// Publisher maintains topic -> writer(s), builds envelopes, and replays
// history on subscription notice (§4.4).
type Publisher struct {
	domain    string
	transport Transport
	log       definition.Logger

	topicMapMu sync.Mutex
	topics     map[string]*topicContext

	nextEnvelopeID uint32 // monotonic per-publisher (§4.3)
}

// NewPublisher constructs a publisher bound to one domain and transport.
func NewPublisher(domain string, transport Transport, log definition.Logger) *Publisher {
	return &Publisher{
		domain:    domain,
		transport: transport,
		log:       log,
		topics:    make(map[string]*topicContext),
	}
}

// AddWriter inserts or fetches the TopicContext for (name, typeName) and
// registers a new WriterCtx under id. Duplicate (topic_id, id) is a
// programmer error (§4.4).
func (p *Publisher) AddWriter(id ID, name, typeName string, qos QoS) (string, error) {
	p.topicMapMu.Lock()
	defer p.topicMapMu.Unlock()

	topicID := envelope.TopicID(p.domain, name, typeName)
	tc, ok := p.topics[topicID]
	if !ok {
		tc = &topicContext{
			info:    TopicInfo{Name: name, TypeName: typeName, QoS: qos},
			writers: make(map[ID]*writerCtx),
		}
		if qos.Durability == TRANSIENT_LOCAL {
			tc.history = newHistoryRing(qos.Depth)
		}
		p.topics[topicID] = tc
	}
	if _, exists := tc.writers[id]; exists {
		pserr.Raise("duplicate data writer %s on topic %s", id, topicID)
	}
	tc.writers[id] = &writerCtx{}
	if err := p.transport.AddTopic(topicID); err != nil {
		p.log.Warnf("publisher: transport add_topic(%s) failed: %v", topicID, err)
	}
	return topicID, nil
}

// RemoveWriter drops the WriterCtx for id, dropping the TopicContext too
// once it has no writers left.
func (p *Publisher) RemoveWriter(id ID, topicID string) {
	p.topicMapMu.Lock()
	defer p.topicMapMu.Unlock()

	tc, ok := p.topics[topicID]
	if !ok {
		return
	}
	delete(tc.writers, id)
	if len(tc.writers) == 0 {
		delete(p.topics, topicID)
		if err := p.transport.RemoveTopic(topicID); err != nil {
			p.log.Warnf("publisher: transport remove_topic(%s) failed: %v", topicID, err)
		}
	}
}

// buildResult is what buildDataMessage hands back to Send/AsyncSend: the
// serialized envelope and a weak reference (a plain pointer, never
// dereferenced under the topic map lock again) to the writer's send
// queue.
type buildResult struct {
	writer *writerCtx
	buf    []byte
}

// buildDataMessage implements §4.4's build_data_message algorithm.
func (p *Publisher) buildDataMessage(id ID, topicID string, payload []byte) (*buildResult, error) {
	p.topicMapMu.Lock()
	defer p.topicMapMu.Unlock()

	tc, ok := p.topics[topicID]
	if !ok {
		return nil, pserr.NewPubSub(pserr.PubSubUnknownTopic, topicID)
	}
	wc, ok := tc.writers[id]
	if !ok {
		return nil, pserr.NewPubSub(pserr.PubSubUnknownDataWriter, id.String())
	}

	data := envelope.Data{
		Domain:        p.domain,
		TopicName:     tc.info.Name,
		TopicTypeName: tc.info.TypeName,
		TopicData:     payload,
	}
	env := &envelope.Envelope{
		Header: envelope.Header{
			Version: envelope.CurrentVersion,
			Kind:    envelope.KindData,
			ID:      atomic.AddUint32(&p.nextEnvelopeID, 1),
		},
		Data: data,
	}
	buf, err := envelope.Marshal(env)
	if err != nil {
		return nil, pserr.NewPubSub(pserr.PubSubSerializationFailed, err.Error())
	}

	if tc.history != nil {
		tc.history.push(data)
	}

	return &buildResult{writer: wc, buf: buf}, nil
}

// Send synchronously publishes payload on topicID from writer id, blocking
// up to timeout (0 == forever).
func (p *Publisher) Send(id ID, topicID string, payload []byte, timeout time.Duration) error {
	res, err := p.buildDataMessage(id, topicID, payload)
	if err != nil {
		return err
	}
	return p.transport.Send(topicID, res.buf, timeout)
}

// AsyncSend asynchronously publishes payload, invoking cb on completion.
func (p *Publisher) AsyncSend(id ID, topicID string, payload []byte, cb func(error)) {
	res, err := p.buildDataMessage(id, topicID, payload)
	if err != nil {
		cb(err)
		return
	}

	op := &pendingSend{cb: cb}
	res.writer.mu.Lock()
	res.writer.pending = append(res.writer.pending, op)
	res.writer.mu.Unlock()

	p.transport.AsyncSend(topicID, res.buf, func(err error) {
		res.writer.mu.Lock()
		var head *pendingSend
		if len(res.writer.pending) > 0 {
			head = res.writer.pending[0]
			res.writer.pending = res.writer.pending[1:]
		}
		res.writer.mu.Unlock()
		if head != nil {
			head.cb(err)
		}
	})
}

// Notify replays history for topicID in response to a subscription
// announcement, best-effort (§4.4, §4.5 "Subscription plumbing").
func (p *Publisher) Notify(sub envelope.SubscriptionAnnouncement) {
	topicID := envelope.TopicID(sub.Domain, sub.TopicName, sub.TopicTypeName)

	p.topicMapMu.Lock()
	tc, ok := p.topics[topicID]
	var snapshot []envelope.Data
	if ok && tc.history != nil {
		snapshot = tc.history.snapshot()
	}
	p.topicMapMu.Unlock()

	if !ok || snapshot == nil {
		return
	}

	for _, data := range snapshot {
		env := &envelope.Envelope{
			Header: envelope.Header{
				Version: envelope.CurrentVersion,
				Kind:    envelope.KindData,
				ID:      atomic.AddUint32(&p.nextEnvelopeID, 1),
			},
			Data: data,
		}
		buf, err := envelope.Marshal(env)
		if err != nil {
			p.log.Errorf("publisher: failed marshalling replay for %s: %v", topicID, err)
			continue
		}
		p.transport.AsyncSend(topicID, buf, func(err error) {
			if err != nil {
				p.log.Warnf("publisher: replay send failed for %s: %v", topicID, err)
			}
		})
	}
}
