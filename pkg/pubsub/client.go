// Package pubsub owns the Pub/Sub v2 connection shared by the relay and the
// analytics worker.
package pubsub

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/gcp"
	"github.com/supserrr/vevurn-sub002/pkg/logger"
)

var ErrNotInitialized = errors.New("pubsub client not initialized")

// Client resolves short topic and subscription ids against one project.
type Client struct {
	ps      *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

// NewClient connects and refuses to start while the sales topic or one of
// its subscriptions is missing, since publishing into a topic with no
// subscriber silently drops the event.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project, err := gcp.Project(gcpCfg)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewClient(ctx, project, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{ps: ps, project: project, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "project", project), "pubsub client initialized")
	}
	return c, nil
}

// Ping confirms the configured topic and subscriptions exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.ps == nil {
		return ErrNotInitialized
	}
	for _, topic := range gcp.NonEmpty(c.cfg.SalesTopic) {
		_, err := c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.name("topics", topic)})
		if err != nil {
			return missing("topic", topic, err)
		}
	}
	subs := gcp.NonEmpty(c.cfg.SalesSubscription, c.cfg.AnalyticsSubscription)
	if len(subs) == 0 {
		return errors.New("pubsub subscription name is required")
	}
	for _, sub := range subs {
		_, err := c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: c.name("subscriptions", sub)})
		if err != nil {
			return missing("subscription", sub, err)
		}
	}
	return nil
}

// Publisher returns a handle for a topic id or full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	if name := c.name("topics", topic); name != "" {
		return c.ps.Publisher(name)
	}
	return nil
}

// Subscriber returns a handle for a subscription id or full resource name.
func (c *Client) Subscriber(sub string) *pubsub.Subscriber {
	if c == nil || c.ps == nil {
		return nil
	}
	if name := c.name("subscriptions", sub); name != "" {
		return c.ps.Subscriber(name)
	}
	return nil
}

// AnalyticsSubscription feeds the BigQuery writer.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscriber(c.cfg.AnalyticsSubscription)
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

func (c *Client) name(kind, id string) string {
	return gcp.ResourceName(c.project, kind, id)
}

func missing(kind, id string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q does not exist", kind, id)
	}
	return fmt.Errorf("checking %s %q: %w", kind, id, err)
}
