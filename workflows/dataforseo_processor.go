// workflows/dataforseo_processor.go
package workflows

import (
	"context"
	"fmt"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"

	"github.com/promptpulse/pulse-workflows/internal/models"
	"github.com/promptpulse/pulse-workflows/services"
)

type DataForSEOProcessor struct {
	dispatcher services.Dispatcher
	client     inngestgo.Client
}

func NewDataForSEOProcessor(dispatcher services.Dispatcher) *DataForSEOProcessor {
	return &DataForSEOProcessor{dispatcher: dispatcher}
}

func (p *DataForSEOProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

// DispatchShard submits one shard's LLM tasks; results arrive later on the
// callback endpoint.
func (p *DataForSEOProcessor) DispatchShard() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "dataforseo-dispatch-shard",
			Name:    "DataForSEO Shard Dispatch - Submit LLM Tasks",
			Retries: inngestgo.IntPtr(3),
		},
		inngestgo.EventTrigger(models.TopicDataForSEODispatch, nil),
		func(ctx context.Context, input inngestgo.Input[models.DispatchEvent]) (any, error) {
			event := input.Event.Data
			if event.Service != models.ServiceDataForSEO {
				fmt.Printf("[DataForSEOWorkflow] ⏭️ Dropping event for service %s\n", event.Service)
				return map[string]interface{}{"dropped": true}, nil
			}

			_, err := step.Run(ctx, "submit-tasks", func(ctx context.Context) (any, error) {
				return nil, p.dispatcher.DispatchShard(ctx, &event)
			})
			if err != nil {
				return nil, fmt.Errorf("submission step failed: %w", err)
			}

			return map[string]interface{}{
				"batch_number": event.BatchNumber,
				"prompts":      len(event.Prompts),
			}, nil
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create DataForSEO dispatch function: %w", err))
	}
	return fn
}
