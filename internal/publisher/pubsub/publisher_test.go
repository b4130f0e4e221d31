package pubsub

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newFakeClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishDeliversJSON(t *testing.T) {
	t.Parallel()

	client, srv := newFakeClient(t)
	ctx := context.Background()
	_, err := client.CreateTopic(ctx, "crawl-runs")
	require.NoError(t, err)

	pub, err := NewWithClient(client, " crawl-runs ")
	require.NoError(t, err)

	id, err := pub.Publish(ctx, "run.completed", map[string]any{"session_id": "s-1", "pages": 10})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, pub.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"session_id":"s-1","pages":10}`, string(msgs[0].Data))
	assert.Equal(t, "run.completed", msgs[0].Attributes["event"])
}

func TestPublishMissingTopicFails(t *testing.T) {
	t.Parallel()

	client, _ := newFakeClient(t)
	pub, err := NewWithClient(client, "absent")
	require.NoError(t, err)
	defer pub.Close() //nolint:errcheck // test cleanup

	_, err = pub.Publish(context.Background(), "", "payload")
	require.Error(t, err)
}

func TestNewWithClientValidates(t *testing.T) {
	t.Parallel()

	_, err := NewWithClient(nil, "topic")
	require.Error(t, err)

	client, _ := newFakeClient(t)
	_, err = NewWithClient(client, "  ")
	require.Error(t, err)
}

func TestNewRequiresProject(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{TopicID: "runs"})
	require.Error(t, err)
}
