// workflows/brightdata_processor.go
package workflows

import (
	"context"
	"fmt"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"

	"github.com/promptpulse/pulse-workflows/internal/models"
)

// BrightDataPipeline is the dispatcher surface the polling workflow drives.
// Trigger and processing are separate so the trigger result is durable: a
// retried run reuses the snapshot instead of scraping twice.
type BrightDataPipeline interface {
	TriggerShard(ctx context.Context, event *models.DispatchEvent) (string, error)
	ProcessSnapshot(ctx context.Context, event *models.DispatchEvent, snapshotID string) error
	// FailShard absorbs a permanent shard failure, returning the error only
	// when it is retryable.
	FailShard(ctx context.Context, event *models.DispatchEvent, err error) error
}

type BrightDataProcessor struct {
	pipeline BrightDataPipeline
	client   inngestgo.Client
}

func NewBrightDataProcessor(pipeline BrightDataPipeline) *BrightDataProcessor {
	return &BrightDataProcessor{pipeline: pipeline}
}

func (p *BrightDataProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

func (p *BrightDataProcessor) DispatchShard() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "brightdata-dispatch-shard",
			Name:    "BrightData Shard Dispatch - Trigger, Poll, Enrich",
			Retries: inngestgo.IntPtr(3),
		},
		inngestgo.EventTrigger(models.TopicBrightDataDispatch, nil),
		func(ctx context.Context, input inngestgo.Input[models.DispatchEvent]) (any, error) {
			event := input.Event.Data
			if event.Service != models.ServiceBrightData {
				fmt.Printf("[BrightDataWorkflow] ⏭️ Dropping event for service %s\n", event.Service)
				return map[string]interface{}{"dropped": true}, nil
			}

			snapshotID, err := step.Run(ctx, "trigger-scrape", func(ctx context.Context) (string, error) {
				id, triggerErr := p.pipeline.TriggerShard(ctx, &event)
				if triggerErr != nil {
					// Permanent failures are absorbed with the shard's rows
					// marked failed; an empty id tells the run to stop
					return "", p.pipeline.FailShard(ctx, &event, triggerErr)
				}
				return id, nil
			})
			if err != nil {
				return nil, fmt.Errorf("trigger step failed: %w", err)
			}
			if snapshotID == "" {
				return map[string]interface{}{"failed": true, "batch_number": event.BatchNumber}, nil
			}
			event.SnapshotID = snapshotID

			_, err = step.Run(ctx, "process-snapshot", func(ctx context.Context) (any, error) {
				return nil, p.pipeline.ProcessSnapshot(ctx, &event, snapshotID)
			})
			if err != nil {
				return nil, fmt.Errorf("processing step failed: %w", err)
			}

			return map[string]interface{}{
				"snapshot_id":  snapshotID,
				"batch_number": event.BatchNumber,
				"prompts":      len(event.Prompts),
			}, nil
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create BrightData dispatch function: %w", err))
	}
	return fn
}
