package transport_test

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/flowrt/flowrt/internal/transport"
)

// newUnreachablePublisher builds a Publisher against a client that can never
// connect, so publish calls exercise the error path and the topic naming
// deterministically without a live Redis instance.
func newUnreachablePublisher(root string) *transport.Publisher {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
	})
	return transport.New(client, root, nil)
}

func TestPublishTagReportsTopicOnFailure(t *testing.T) {
	p := newUnreachablePublisher("flowrt")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := p.PublishTag(ctx, "plc1", "temp", transport.TagUpdate{Value: 42, Quality: 0})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "flowrt/tags/plc1/temp")
}

func TestPublishStatusReportsTopicOnFailure(t *testing.T) {
	p := newUnreachablePublisher("flowrt")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := p.PublishStatus(ctx, "plc1", transport.ConnectionStatus{Connected: false, Detail: "timeout"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "flowrt/status/plc1")
}

func TestPublishTagValueSplitsPathIntoConnectionAndTag(t *testing.T) {
	p := newUnreachablePublisher("flowrt")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := p.PublishTagValue(ctx, "plc1/temp", 42.0, 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "flowrt/tags/plc1/temp")
}

func TestPublishTagValueDefaultsConnectionWhenPathHasNoSlash(t *testing.T) {
	p := newUnreachablePublisher("flowrt")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := p.PublishTagValue(ctx, "temp", 42.0, 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "flowrt/tags/default/temp")
}

func TestPublishRunSummaryAndDeployStatusTopics(t *testing.T) {
	p := newUnreachablePublisher("root")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := p.PublishRunSummary(ctx, "flow-1", transport.RunSummary{RunID: "r1", Status: "completed"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "root/flows/flow-1/run-summary")

	err = p.PublishDeployStatus(ctx, "flow-1", transport.DeployStatus{Status: "deployed"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "root/flows/flow-1/deploy-status")
}
