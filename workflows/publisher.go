// workflows/publisher.go
package workflows

import (
	"context"
	"fmt"

	"github.com/inngest/inngestgo"

	"github.com/promptpulse/pulse-workflows/internal/models"
)

// InngestPublisher sends dispatch events to the Inngest queue, one event name
// per scraping provider.
type InngestPublisher struct {
	client inngestgo.Client
}

func NewInngestPublisher(client inngestgo.Client) *InngestPublisher {
	return &InngestPublisher{client: client}
}

func (p *InngestPublisher) Publish(ctx context.Context, topic string, event *models.DispatchEvent) error {
	evt := inngestgo.Event{
		Name: topic,
		Data: map[string]interface{}{
			"service":       event.Service,
			"job_batch_id":  event.JobBatchID,
			"user_id":       event.UserID,
			"project_id":    event.ProjectID,
			"batch_number":  event.BatchNumber,
			"total_batches": event.TotalBatches,
			"email":         event.Email,
			"openai_key":    event.OpenAIKey,
			"openai_model":  event.OpenAIModel,
			"web_search":    event.WebSearch,
			"is_nightly":    event.IsNightly,
			"location":      event.Location,
			"prompts":       event.Prompts,
			"snapshot_id":   event.SnapshotID,
		},
	}

	if _, err := p.client.Send(ctx, evt); err != nil {
		return fmt.Errorf("failed to send %s event: %w", topic, err)
	}
	return nil
}
