// Package transport publishes egress status and tag updates to Redis
// topics. It is the only place in this module that speaks the wire
// protocol spec.md §6 describes ("out of scope except to note"): topics
// of the form <root>/tags/<connection>/<tag>, <root>/status/<connection>,
// <root>/flows/<flow>/run-summary, and <root>/flows/<flow>/deploy-status.
// Publishing is always egress-only and never sits on the execution
// critical path: tagio's tag writes and exec's run completions call in
// best-effort, logging a warning on failure rather than failing the node
// activation or the run.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flowrt/flowrt/internal/node"
)

// Publisher publishes status, tag, run-summary, and deploy-status
// payloads to Redis pub/sub channels rooted at a configured prefix.
type Publisher struct {
	client *goredis.Client
	root   string
	logger node.Logger
}

// New wraps an already-connected Redis client. root is the topic prefix
// (FLOWRT_TOPIC_ROOT in config, "flowrt" by default).
func New(client *goredis.Client, root string, logger node.Logger) *Publisher {
	return &Publisher{client: client, root: root, logger: logger}
}

// TagUpdate is the payload published to <root>/tags/<connection>/<tag>.
type TagUpdate struct {
	Value   interface{} `json:"value"`
	Quality int         `json:"quality"`
}

// PublishTag announces a tag value change for an external adapter bound
// to connection.
func (p *Publisher) PublishTag(ctx context.Context, connection, tag string, update TagUpdate) error {
	topic := fmt.Sprintf("%s/tags/%s/%s", p.root, connection, tag)
	return p.publish(ctx, topic, update)
}

// ConnectionStatus is the payload published to <root>/status/<connection>.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Detail    string `json:"detail,omitempty"`
}

// PublishStatus announces a connection's up/down state.
func (p *Publisher) PublishStatus(ctx context.Context, connection string, status ConnectionStatus) error {
	topic := fmt.Sprintf("%s/status/%s", p.root, connection)
	return p.publish(ctx, topic, status)
}

// RunSummary is the payload published to <root>/flows/<flow>/run-summary
// once a run reaches a terminal state.
type RunSummary struct {
	RunID             string `json:"run_id"`
	Status            string `json:"status"`
	MessagesProcessed int    `json:"messages_processed"`
	NodesFailed       int    `json:"nodes_failed"`
	Error             string `json:"error,omitempty"`
}

// PublishRunSummary announces a completed run's outcome for a flow.
func (p *Publisher) PublishRunSummary(ctx context.Context, flowID string, summary RunSummary) error {
	topic := fmt.Sprintf("%s/flows/%s/run-summary", p.root, flowID)
	return p.publish(ctx, topic, summary)
}

// DeployStatus is the payload published to <root>/flows/<flow>/deploy-status
// after a flow definition is saved or compiled.
type DeployStatus struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// PublishDeployStatus announces a flow's compile/deploy outcome.
func (p *Publisher) PublishDeployStatus(ctx context.Context, flowID string, status DeployStatus) error {
	topic := fmt.Sprintf("%s/flows/%s/deploy-status", p.root, flowID)
	return p.publish(ctx, topic, status)
}

// PublishTagValue satisfies node.TagPublisher. It splits path on its first
// "/" into a connection name and the remaining tag name (a path with no
// "/" publishes under a "default" connection) and republishes via
// PublishTag.
func (p *Publisher) PublishTagValue(ctx context.Context, path string, value interface{}, quality node.TagQuality) error {
	connection, tag := splitTagPath(path)
	return p.PublishTag(ctx, connection, tag, TagUpdate{Value: value, Quality: int(quality)})
}

func splitTagPath(path string) (connection, tag string) {
	if idx := strings.Index(path, "/"); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return "default", path
}

func (p *Publisher) publish(ctx context.Context, topic string, payload interface{}) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", topic, err)
	}
	if err := p.client.Publish(ctx, topic, buf).Err(); err != nil {
		if p.logger != nil {
			p.logger.Warn("transport publish failed", "topic", topic, "error", err)
		}
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
