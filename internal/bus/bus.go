package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/konsi/campaign-filter/internal/domain"
)

// New creates an event bus from configuration: "channel" stays in process,
// "nats" publishes to a NATS server.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// RunTopic is the topic a run summary is published on.
func RunTopic(run *domain.CampaignRun) string {
	if run.Status == domain.RunStatusFailed {
		return domain.TopicRunFailed
	}
	return domain.TopicRunCompleted
}

// PublishRun publishes run as JSON on its status topic.
func PublishRun(ctx context.Context, b domain.EventBus, run *domain.CampaignRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	return b.Publish(ctx, RunTopic(run), payload)
}

// DecodeRun extracts the run summary carried by msg.
func DecodeRun(msg *domain.Message) (*domain.CampaignRun, error) {
	var run domain.CampaignRun
	if err := json.Unmarshal(msg.Payload, &run); err != nil {
		return nil, fmt.Errorf("failed to decode run from %s: %w", msg.Topic, err)
	}
	return &run, nil
}
