// Package udp implements the reference PubSub UDP-multicast transport
// from §4.8, grounded directly on the teacher repo's own transport
// wrapper (go-mcast/pkg/mcast/core/transport.go) around
// github.com/jabolina/relt: one relt.Relt per domain, broadcasting into a
// single exchange group. Unlike shmem, AddTopic/RemoveTopic are no-ops —
// multicast fans every envelope out to the whole group regardless of
// local interest, and filtering happens downstream in the subscriber.
package udp

import (
	"context"
	"time"

	"github.com/jabolina/relt/pkg/relt"

	"github.com/jabolina/yail-go/internal/invoker"
	"github.com/jabolina/yail-go/pkg/yail/definition"
	pserr "github.com/jabolina/yail-go/pkg/yail/errors"
)

const deliverQueueDepth = 256

// Transport is the UDP-multicast PubSub transport: one domain, one relt
// exchange group.
type Transport struct {
	log    definition.Logger
	relt   *relt.Relt
	ctx    context.Context
	cancel context.CancelFunc

	deliverCh chan []byte
}

// New joins the relt group named by domain under processName, starting
// the background poll loop that feeds AsyncReceive.
func New(processName, domain string, log definition.Logger) (*Transport, error) {
	conf := relt.DefaultReltConfiguration()
	conf.Name = processName
	conf.Exchange = relt.GroupAddress(domain)

	r, err := relt.NewRelt(*conf)
	if err != nil {
		return nil, pserr.NewPubSub(pserr.PubSubSystemError, err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		log:       log,
		relt:      r,
		ctx:       ctx,
		cancel:    cancel,
		deliverCh: make(chan []byte, deliverQueueDepth),
	}
	invoker.Instance().Spawn(t.poll)
	return t, nil
}

// AddTopic is a no-op: relt fans every envelope out to the whole
// exchange group regardless of which topics a given process reads.
func (t *Transport) AddTopic(topicID string) error { return nil }

// RemoveTopic is a no-op for the same reason.
func (t *Transport) RemoveTopic(topicID string) error { return nil }

// Send broadcasts payload to the domain's exchange group, bounding the
// wait on the broadcast acknowledgement by timeout (0 == forever).
func (t *Transport) Send(topicID string, payload []byte, timeout time.Duration) error {
	ctx := t.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(t.ctx, timeout)
		defer cancel()
	}
	if err := t.relt.Broadcast(ctx, relt.Send{Address: relt.GroupAddress(topicID), Data: payload}); err != nil {
		return pserr.NewPubSub(pserr.PubSubSystemError, err.Error())
	}
	return nil
}

// AsyncSend runs Send on its own goroutine and delivers the result to cb.
func (t *Transport) AsyncSend(topicID string, payload []byte, cb func(error)) {
	invoker.Instance().Spawn(func() {
		cb(t.Send(topicID, payload, 0))
	})
}

// AsyncReceive delivers the next queued envelope to cb, blocking (on its
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
		case <-t.ctx.Done():
			cb(pserr.NewPubSub(pserr.PubSubSystemError, "transport closed"), nil)
		}
	}()
}

// poll drains relt's Consume channel for the lifetime of the transport,
// mirroring the teacher's ReliableTransport.poll/consume pair.
func (t *Transport) poll() {
	listener, err := t.relt.Consume()
	if err != nil {
		t.log.Errorf("udp transport: consume failed: %v", err)
		return
	}
	for {
		select {
		case <-t.ctx.Done():
			return
		case recv, ok := <-listener:
			if !ok {
				return
			}
			if recv.Error != nil {
				t.log.Warnf("udp transport: receive error from %s: %v", recv.Origin, recv.Error)
				continue
			}
			if recv.Data == nil {
				continue
			}
			select {
			case t.deliverCh <- recv.Data:
			default:
				t.log.Warnf("udp transport: receive queue full (depth %d), dropping newest", deliverQueueDepth)
			}
		}
	}
}

// Close tears down the underlying relt connection.
func (t *Transport) Close() error {
	t.cancel()
	return t.relt.Close()
}
