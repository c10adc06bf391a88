package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/supserrr/vevurn-sub002/pkg/config"
	"github.com/supserrr/vevurn-sub002/pkg/gcp"
)

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{SalesTopic: "vv-sales-events"}, nil)
	require.ErrorIs(t, err, gcp.ErrNoProject)
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	require.Nil(t, c.Publisher("vv-sales-events"))
	require.Nil(t, c.Subscriber("vv-sales-analytics-sub"))
	require.Nil(t, c.AnalyticsSubscription())
	require.ErrorIs(t, c.Ping(context.Background()), ErrNotInitialized)
	require.NoError(t, c.Close())
}

func TestNameUsesProject(t *testing.T) {
	c := &Client{project: "vevurn-prod"}
	require.Equal(t, "projects/vevurn-prod/subscriptions/vv-sales", c.name("subscriptions", "vv-sales"))
	require.Equal(t, "projects/vevurn-prod/topics/vv-sales-events", c.name("topics", " vv-sales-events "))
}

func TestMissing(t *testing.T) {
	require.EqualError(t, missing("topic", "vv-sales-events", status.Error(codes.NotFound, "gone")), `topic "vv-sales-events" does not exist`)

	cause := status.Error(codes.PermissionDenied, "nope")
	err := missing("subscription", "vv-sales", cause)
	require.True(t, errors.Is(err, cause))
}
