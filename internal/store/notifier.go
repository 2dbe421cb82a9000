package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/observability"
)

// UploadEvent is published after a document has been stored.
type UploadEvent struct {
	Type      string    `json:"type"`
	Reference string    `json:"reference"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier announces stored uploads.
type Notifier interface {
	Uploaded(ctx context.Context, info domain.DocumentInfo) error
}

// Publisher is the subset of cache.RedisClient used to publish events.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// PubSubNotifier publishes upload events on a channel.
type PubSubNotifier struct {
	publisher Publisher
	channel   string
	logger    *observability.Logger
}

// NewPubSubNotifier creates a notifier that publishes to channel.
func NewPubSubNotifier(p Publisher, channel string, logger *observability.Logger) *PubSubNotifier {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if channel == "" {
		channel = "document.uploaded"
	}
	return &PubSubNotifier{publisher: p, channel: channel, logger: logger}
}

// Uploaded publishes a document.uploaded event.
func (n *PubSubNotifier) Uploaded(ctx context.Context, info domain.DocumentInfo) error {
	evt := UploadEvent{
		Type:      "document.uploaded",
		Reference: info.Reference,
		Size:      info.Size,
		SHA256:    info.SHA256,
		Timestamp: time.Now().UTC(),
	}
	if err := n.publisher.Publish(ctx, n.channel, evt); err != nil {
		return domain.TransportError("publish upload event", err)
	}
	n.logger.Debug().Str("reference", info.Reference).Str("channel", n.channel).Msg("Published upload event")
	return nil
}

// NopNotifier discards upload events.
type NopNotifier struct{}

// Uploaded implements Notifier.
func (NopNotifier) Uploaded(context.Context, domain.DocumentInfo) error { return nil }

// Subscriber is the subset of cache.RedisClient used to receive events.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// WatchUploads calls fn for every upload event published on channel until ctx
// is done or the subscription ends. Messages that do not decode are skipped.
func WatchUploads(ctx context.Context, sub Subscriber, channel string, logger *observability.Logger, fn func(UploadEvent)) error {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if channel == "" {
		channel = "document.uploaded"
	}

	msgs, unsubscribe, err := sub.Subscribe(ctx, channel)
	if err != nil {
		return domain.TransportError("subscribe to upload events", err)
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			var evt UploadEvent
			if err := json.Unmarshal(raw, &evt); err != nil || evt.Reference == "" {
				logger.Warn().Err(err).Str("channel", channel).Msg("Skipping malformed upload event")
				continue
			}
			fn(evt)
		}
	}
}
