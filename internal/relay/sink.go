package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

const sendTimeout = 15 * time.Second

// PubSubClient is implemented by pkg/pubsub.Client.
type PubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// PubSubSink publishes with message ordering enabled and keeps one
// publisher per topic for the life of the process.
type PubSubSink struct {
	client PubSubClient

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func NewPubSubSink(client PubSubClient) *PubSubSink {
	return &PubSubSink{client: client, publishers: make(map[string]*gcppubsub.Publisher)}
}

func (s *PubSubSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Send publishes msg and waits for the server id. A failed ordered publish
// pauses its key inside the client library, so the key is resumed before
// returning to let the retry go out.
func (s *PubSubSink) Send(ctx context.Context, msg Message) error {
	pub, err := s.publisher(msg.Topic)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	res := pub.Publish(ctx, &gcppubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: msg.OrderingKey,
	})
	if _, err := res.Get(ctx); err != nil {
		if msg.OrderingKey != "" {
			pub.ResumePublish(msg.OrderingKey)
		}
		return fmt.Errorf("publish %s to %s: %w", msg.EventID, msg.Topic, err)
	}
	return nil
}

func (s *PubSubSink) publisher(topic string) (*gcppubsub.Publisher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.publishers[topic]; ok {
		return pub, nil
	}
	pub := s.client.Publisher(topic)
	if pub == nil {
		return nil, fmt.Errorf("%w: no publisher for topic %q", ErrPoison, topic)
	}
	pub.EnableMessageOrdering = true
	s.publishers[topic] = pub
	return pub, nil
}

// Close flushes and stops every cached publisher.
func (s *PubSubSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, pub := range s.publishers {
		pub.Stop()
		delete(s.publishers, topic)
	}
}
