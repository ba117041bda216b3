// workflows/nightly_processor.go
package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"

	"github.com/promptpulse/pulse-workflows/services"
)

type NightlyProcessor struct {
	scheduler services.SchedulerService
	schedule  string
	client    inngestgo.Client
}

func NewNightlyProcessor(scheduler services.SchedulerService, schedule string) *NightlyProcessor {
	return &NightlyProcessor{scheduler: scheduler, schedule: schedule}
}

func (p *NightlyProcessor) SetClient(client inngestgo.Client) {
	p.client = client
}

// NightlyRun re-dispatches every due project's prompts on the configured cron
// schedule.
func (p *NightlyProcessor) NightlyRun() inngestgo.ServableFunction {
	fn, err := inngestgo.CreateFunction(
		p.client,
		inngestgo.FunctionOpts{
			ID:      "nightly-prompt-rerun",
			Name:    "Nightly Prompt Re-run Scheduler",
			Retries: inngestgo.IntPtr(1),
		},
		inngestgo.CronTrigger(p.schedule),
		func(ctx context.Context, input inngestgo.Input[any]) (any, error) {
			_, err := step.Run(ctx, "run-nightly-pass", func(ctx context.Context) (any, error) {
				return nil, p.scheduler.RunNightly(ctx)
			})
			if err != nil {
				return nil, fmt.Errorf("nightly pass failed: %w", err)
			}

			return map[string]interface{}{
				"status":       "completed",
				"completed_at": time.Now().UTC(),
			}, nil
		},
	)
	if err != nil {
		panic(fmt.Errorf("failed to create nightly scheduler function: %w", err))
	}
	return fn
}
