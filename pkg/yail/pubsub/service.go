package pubsub

import (
	"github.com/jabolina/yail-go/pkg/yail/codec/jsoncodec"
	"github.com/jabolina/yail-go/pkg/yail/definition"
	"github.com/jabolina/yail-go/pkg/yail/envelope"
	"github.com/jabolina/yail-go/pkg/yail/reactor"
)

// Service binds a Publisher, a Subscriber, and the builtin
// subscription-announcement topic to one transport and one domain (§4.6).
type Service struct {
	Publisher  *Publisher
	Subscriber *Subscriber

	domain        string
	transport     Transport
	ownsTransport bool
	log           definition.Logger

	announceWriter *DataWriter[envelope.SubscriptionAnnouncement]
	announceReader *DataReader[envelope.SubscriptionAnnouncement]
}

// Option configures a Service at construction time.
type Option func(*serviceConfig)

type serviceConfig struct {
	log           definition.Logger
	reactor       *reactor.Reactor
	ownsTransport bool
}

// WithLogger overrides the default logger.
func WithLogger(l definition.Logger) Option {
	return func(c *serviceConfig) { c.log = l }
}

// WithReactor overrides the default reactor (one is created per-Service
// otherwise).
func WithReactor(r *reactor.Reactor) Option {
	return func(c *serviceConfig) { c.reactor = r }
}

// OwnsTransport marks the Service as the owner of transport, so Shutdown
// also closes it if transport implements io.Closer-like Close().
func OwnsTransport() Option {
	return func(c *serviceConfig) { c.ownsTransport = true }
}

// NewService constructs a Publisher and Subscriber over transport for
// domain, wires the builtin announcement topic, and starts replaying
// durable history to late subscribers.
func NewService(domain string, transport Transport, opts ...Option) (*Service, error) {
	cfg := &serviceConfig{log: definition.NewDefaultLogger(), reactor: reactor.New()}
	for _, opt := range opts {
		opt(cfg)
	}

	pub := NewPublisher(domain, transport, cfg.log)
	sub := NewSubscriber(domain, transport, cfg.log, cfg.reactor)

	svc := &Service{
		Publisher:     pub,
		Subscriber:    sub,
		domain:        domain,
		transport:     transport,
		ownsTransport: cfg.ownsTransport,
		log:           cfg.log,
	}

	announceFacet := jsoncodec.NewBuiltin[envelope.SubscriptionAnnouncement](envelope.BuiltinSubscriptionTopic)
	announceTopic := TopicInfo{Name: envelope.BuiltinSubscriptionTopic, QoS: Volatile()}

	announceWriter, err := NewDataWriter[envelope.SubscriptionAnnouncement](pub, announceFacet, announceTopic)
	if err != nil {
		return nil, err
	}
	announceReader, err := NewDataReader[envelope.SubscriptionAnnouncement](sub, announceFacet, announceTopic)
	if err != nil {
		announceWriter.Close()
		return nil, err
	}
	svc.announceWriter = announceWriter
	svc.announceReader = announceReader

	sub.SetOnDurableReader(func(info TopicInfo) {
		announceWriter.AsyncSend(envelope.SubscriptionAnnouncement{
			Domain:        domain,
			TopicName:     info.Name,
			TopicTypeName: info.TypeName,
		}, func(err error) {
			if err != nil {
				cfg.log.Warnf("service: failed announcing subscription to %s: %v", info.Name, err)
			}
		})
	})

	announceReader.AsyncReceive(svc.onAnnouncement)

	return svc, nil
}

// onAnnouncement re-arms itself and forwards every announcement to the
// publisher's Notify, triggering history replay for the matching topic.
func (s *Service) onAnnouncement(err error, sub envelope.SubscriptionAnnouncement) {
	if err != nil {
		s.log.Warnf("service: announcement receive error: %v", err)
	} else {
		s.Publisher.Notify(sub)
	}
	s.announceReader.AsyncReceive(s.onAnnouncement)
}

// closer is satisfied by both shipped PubSub transports (shmem, udp);
// Transport itself carries no Close method since not every
// caller-supplied transport owns a closeable resource.
type closer interface {
	Close() error
}

// Shutdown stops the builtin reader/writer first, then, if the Service
// was built with OwnsTransport, closes the transport too — matching
// §4.6's destruction order.
func (s *Service) Shutdown() {
	s.announceReader.Cancel()
	s.announceReader.Close()
	s.announceWriter.Close()

	if s.ownsTransport {
		if c, ok := s.transport.(closer); ok {
			if err := c.Close(); err != nil {
				s.log.Warnf("service: closing owned transport: %v", err)
			}
		}
	}
}
