// Package pubsub sends run notifications to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
)

// Config names the destination topic.
type Config struct {
	ProjectID string
	TopicID   string
}

// Publisher publishes JSON payloads to a single topic.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	owned  bool
}

// New dials Pub/Sub for cfg.ProjectID and binds cfg.TopicID. The returned
// Publisher owns the client and closes it in Close.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	p, err := NewWithClient(client, cfg.TopicID)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	p.owned = true
	return p, nil
}

// NewWithClient binds topicID on an existing client. The caller keeps
// ownership of client.
func NewWithClient(client *pubsub.Client, topicID string) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("pubsub client is required")
	}
	topicID = strings.TrimSpace(topicID)
	if topicID == "" {
		return nil, errors.New("pubsub topic is required")
	}
	return &Publisher{client: client, topic: client.Topic(topicID)}, nil
}

// Publish marshals payload to JSON and waits for the server-assigned message
// ID. The topic argument becomes a message attribute; the destination is
// always the bound topic.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	msg := &pubsub.Message{Data: data}
	if topic != "" {
		msg.Attributes = map[string]string{"event": topic}
	}
	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Close flushes pending messages and releases the client when owned.
func (p *Publisher) Close() error {
	p.topic.Stop()
	if !p.owned {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
