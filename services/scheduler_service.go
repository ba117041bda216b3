// services/scheduler_service.go
package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/promptpulse/pulse-workflows/internal/config"
	"github.com/promptpulse/pulse-workflows/internal/models"
)

// Re-run cadence thresholds per scheduler frequency
var frequencyIntervals = map[string]time.Duration{
	models.FrequencyDaily:   24 * time.Hour,
	models.FrequencyWeekly:  7 * 24 * time.Hour,
	models.FrequencyMonthly: 30 * 24 * time.Hour,
}

type schedulerService struct {
	repos        *RepositoryManager
	health       ProviderHealthService
	credentials  CredentialService
	publisher    EventPublisher
	cfg          config.SchedulerConfig
	defaultModel string

	// running is the singleton lock: one nightly pass at a time
	running atomic.Bool
	now     func() time.Time
}

// NewSchedulerService creates the nightly re-run scheduler
func NewSchedulerService(repos *RepositoryManager, health ProviderHealthService, credentials CredentialService, publisher EventPublisher, cfg config.SchedulerConfig, defaultModel string) *schedulerService {
	return &schedulerService{
		repos:        repos,
		health:       health,
		credentials:  credentials,
		publisher:    publisher,
		cfg:          cfg,
		defaultModel: defaultModel,
		now:          time.Now,
	}
}

// RunNightly executes one scheduler pass: load due projects, validate each
// owner's credentials, and publish nightly shards to the active provider.
func (s *schedulerService) RunNightly(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		fmt.Printf("[SchedulerService] ⏭️ Previous nightly run still in progress, skipping\n")
		return nil
	}
	defer s.running.Store(false)

	startedAt := s.now().UTC()
	fmt.Printf("[SchedulerService] 🌙 Nightly run starting at %s\n", startedAt.Format(time.RFC3339))

	service, err := s.health.Active(ctx)
	if err != nil {
		fmt.Printf("[SchedulerService] ❌ No healthy provider, skipping nightly run: %v\n", err)
		return nil
	}

	projects, err := s.repos.ProjectRepo.GetScheduled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load scheduled projects: %w", err)
	}

	projects = s.filterTestingMode(projects)

	due := make([]*models.Project, 0, len(projects))
	for _, project := range projects {
		if s.shouldRun(project, startedAt) {
			due = append(due, project)
		}
	}
	if len(due) == 0 {
		fmt.Printf("[SchedulerService] ✅ No projects due, nothing to dispatch\n")
		return nil
	}

	byUser := make(map[uuid.UUID][]*models.Project)
	for _, project := range due {
		byUser[project.UserID] = append(byUser[project.UserID], project)
	}

	dispatched := 0
	for userID, userProjects := range byUser {
		key, model, ok := s.userCredentials(ctx, userID)
		if !ok {
			continue
		}
		for _, project := range userProjects {
			if err := s.dispatchProject(ctx, service, project, key, model, startedAt); err != nil {
				fmt.Printf("[SchedulerService] ⚠️ Failed to dispatch project %s: %v\n", project.ProjectID, err)
				continue
			}
			dispatched++
		}
	}

	fmt.Printf("[SchedulerService] ✅ Nightly run dispatched %d of %d due projects via %s\n", dispatched, len(due), service)
	return nil
}

// shouldRun decides whether a project's cadence makes it due at the given time
func (s *schedulerService) shouldRun(project *models.Project, at time.Time) bool {
	if project.SchedulerFrequency == nil {
		return false
	}
	interval, ok := frequencyIntervals[*project.SchedulerFrequency]
	if !ok {
		fmt.Printf("[SchedulerService] ⚠️ Unknown frequency %q on project %s, skipping\n", *project.SchedulerFrequency, project.ProjectID)
		return false
	}
	if project.LastNightlyRunAt == nil {
		return true
	}
	return at.Sub(*project.LastNightlyRunAt) >= interval
}

// filterTestingMode narrows the project list to the configured test target
// when the testing envelope is active
func (s *schedulerService) filterTestingMode(projects []*models.Project) []*models.Project {
	if !s.cfg.TestingMode || s.cfg.TestUserID == "" || s.cfg.TestProjectID == "" {
		return projects
	}
	userID, err := uuid.Parse(s.cfg.TestUserID)
	if err != nil {
		return projects
	}
	projectID, err := uuid.Parse(s.cfg.TestProjectID)
	if err != nil {
		return projects
	}

	fmt.Printf("[SchedulerService] 🧪 Testing mode: filtering to project %s for user %s\n", projectID, userID)
	filtered := make([]*models.Project, 0, 1)
	for _, project := range projects {
		if project.UserID == userID && project.ProjectID == projectID {
			filtered = append(filtered, project)
		}
	}
	return filtered
}

// userCredentials loads and validates a user's stored key. Users without a
// key or with an invalid one are skipped silently; nightly runs never email.
func (s *schedulerService) userCredentials(ctx context.Context, userID uuid.UUID) (string, string, bool) {
	settings, err := s.repos.UserSettingsRepo.GetByUserID(ctx, userID)
	if err != nil {
		fmt.Printf("[SchedulerService] ⚠️ Failed to load settings for user %s: %v\n", userID, err)
		return "", "", false
	}
	if settings == nil || settings.OpenAIKey == nil || *settings.OpenAIKey == "" {
		return "", "", false
	}

	model := s.defaultModel
	if settings.OpenAIModel != nil && *settings.OpenAIModel != "" {
		model = *settings.OpenAIModel
	}

	if err := s.credentials.Validate(ctx, *settings.OpenAIKey, model); err != nil {
		fmt.Printf("[SchedulerService] ⚠️ Credential validation failed for user %s, skipping: %v\n", userID, err)
		return "", "", false
	}
	return *settings.OpenAIKey, model, true
}

func (s *schedulerService) dispatchProject(ctx context.Context, service string, project *models.Project, key, model string, startedAt time.Time) error {
	prompts, err := s.repos.PromptRepo.GetEnabledByProject(ctx, project.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	if len(prompts) == 0 {
		return nil
	}

	topic := models.TopicForService(service)
	size := ShardSize(len(prompts))
	totalBatches := (len(prompts) + size - 1) / size

	published := 0
	for shard := 0; shard < totalBatches; shard++ {
		start := shard * size
		end := min(start+size, len(prompts))

		jobs := make([]models.PromptJob, 0, end-start)
		for i := start; i < end; i++ {
			jobs = append(jobs, models.PromptJob{
				PromptID:       prompts[i].PromptID,
				Text:           prompts[i].Text,
				BrandMentions:  prompts[i].BrandMentions,
				DomainMentions: prompts[i].DomainMentions,
			})
		}

		event := &models.DispatchEvent{
			Service:      service,
			UserID:       project.UserID,
			ProjectID:    project.ProjectID,
			BatchNumber:  shard,
			TotalBatches: totalBatches,
			OpenAIKey:    key,
			OpenAIModel:  model,
			WebSearch:    false,
			IsNightly:    true,
			Prompts:      jobs,
		}

		if err := s.publisher.Publish(ctx, topic, event); err != nil {
			fmt.Printf("[SchedulerService] ⚠️ Failed to publish shard %d for project %s: %v\n", shard, project.ProjectID, err)
			continue
		}
		published++
	}

	// Stamp the scheduler's start time, not completion time, so a crash
	// mid-run does not re-dispatch the whole window tomorrow. A dropped
	// shard is a gap in tonight's pass, not a reason to re-run the project.
	if err := s.repos.ProjectRepo.StampNightlyRun(ctx, project.ProjectID, startedAt); err != nil {
		fmt.Printf("[SchedulerService] ⚠️ Failed to stamp nightly run on %s: %v\n", project.ProjectID, err)
	}

	fmt.Printf("[SchedulerService] 🚀 Dispatched project %s (%d prompts, %d/%d shards)\n", project.ProjectID, len(prompts), published, totalBatches)
	return nil
}
