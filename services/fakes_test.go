package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptpulse/pulse-workflows/internal/models"
)

// In-memory repository fakes shared across the service tests.

type fakeJobBatchRepo struct {
	mu      sync.Mutex
	batches map[uuid.UUID]*models.JobBatch
	// createErr forces CreateWithResults to fail
	createErr error
	created   []*models.TrackingResult
}

func newFakeJobBatchRepo() *fakeJobBatchRepo {
	return &fakeJobBatchRepo{batches: make(map[uuid.UUID]*models.JobBatch)}
}

func (f *fakeJobBatchRepo) CreateWithResults(ctx context.Context, batch *models.JobBatch, prompts []*models.Prompt, results []*models.TrackingResult) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *batch
	f.batches[batch.JobBatchID] = &copied
	f.created = append(f.created, results...)
	return nil
}

func (f *fakeJobBatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.JobBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch %s not found", id)
	}
	copied := *b
	return &copied, nil
}

func (f *fakeJobBatchRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.batches[id]; ok {
		b.Status = status
	}
	return nil
}

func (f *fakeJobBatchRepo) IncrementCompleted(ctx context.Context, id uuid.UUID) (*models.JobBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch %s not found", id)
	}
	b.CompletedBatches++
	copied := *b
	return &copied, nil
}

func (f *fakeJobBatchRepo) IncrementFailed(ctx context.Context, id uuid.UUID) (*models.JobBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch %s not found", id)
	}
	b.FailedBatches++
	copied := *b
	return &copied, nil
}

func (f *fakeJobBatchRepo) SetTerminal(ctx context.Context, id uuid.UUID, status string, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.batches[id]; ok {
		b.Status = status
		b.CompletedAt = &completedAt
	}
	return nil
}

func (f *fakeJobBatchRepo) SetError(ctx context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.batches[id]; ok {
		b.ErrorMessage = &message
	}
	return nil
}

type fakeTrackingResultRepo struct {
	mu      sync.Mutex
	results map[uuid.UUID]*models.TrackingResult
	byTask  map[string]uuid.UUID
	// existsForShard controls the success-email dedup answer
	existsForShard bool
}

func newFakeTrackingResultRepo() *fakeTrackingResultRepo {
	return &fakeTrackingResultRepo{
		results:        make(map[uuid.UUID]*models.TrackingResult),
		byTask:         make(map[string]uuid.UUID),
		existsForShard: true,
	}
}

func (f *fakeTrackingResultRepo) add(r *models.TrackingResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[r.TrackingResultID] = r
	if r.ExternalTaskID != nil {
		f.byTask[*r.ExternalTaskID] = r.TrackingResultID
	}
}

func (f *fakeTrackingResultRepo) Create(ctx context.Context, r *models.TrackingResult) error {
	f.add(r)
	return nil
}

func (f *fakeTrackingResultRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.TrackingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[id]
	if !ok {
		return nil, fmt.Errorf("result %s not found", id)
	}
	copied := *r
	return &copied, nil
}

func (f *fakeTrackingResultRepo) GetByTaskID(ctx context.Context, taskID string) (*models.TrackingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byTask[taskID]
	if !ok {
		return nil, nil
	}
	copied := *f.results[id]
	return &copied, nil
}

func (f *fakeTrackingResultRepo) GetByShard(ctx context.Context, jobBatchID uuid.UUID, batchNumber int) ([]*models.TrackingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.TrackingResult
	for _, r := range f.results {
		if r.JobBatchID != nil && *r.JobBatchID == jobBatchID && r.BatchNumber == batchNumber {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeTrackingResultRepo) Update(ctx context.Context, r *models.TrackingResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *r
	f.results[r.TrackingResultID] = &copied
	return nil
}

func (f *fakeTrackingResultRepo) SetTaskID(ctx context.Context, id uuid.UUID, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.results[id]; ok {
		r.ExternalTaskID = &taskID
		r.Status = models.ResultStatusProcessing
		f.byTask[taskID] = id
	}
	return nil
}

func (f *fakeTrackingResultRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.results[id]; ok && r.Status != models.ResultStatusFulfilled {
		r.Status = models.ResultStatusFailed
	}
	return nil
}

func (f *fakeTrackingResultRepo) MarkShardFailed(ctx context.Context, jobBatchID uuid.UUID, batchNumber int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.results {
		if r.JobBatchID != nil && *r.JobBatchID == jobBatchID && r.BatchNumber == batchNumber && r.Status != models.ResultStatusFulfilled {
			r.Status = models.ResultStatusFailed
		}
	}
	return nil
}

func (f *fakeTrackingResultRepo) ExistsForShard(ctx context.Context, userID, jobBatchID uuid.UUID, batchNumber int) (bool, error) {
	return f.existsForShard, nil
}

type fakePromptRepo struct {
	mu      sync.Mutex
	prompts map[uuid.UUID]*models.Prompt
}

func newFakePromptRepo() *fakePromptRepo {
	return &fakePromptRepo{prompts: make(map[uuid.UUID]*models.Prompt)}
}

func (f *fakePromptRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prompts[id]
	if !ok {
		return nil, fmt.Errorf("prompt %s not found", id)
	}
	copied := *p
	return &copied, nil
}

func (f *fakePromptRepo) GetEnabledByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Prompt
	for _, p := range f.prompts {
		if p.ProjectID == projectID && p.Enabled {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

type fakeProjectRepo struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*models.Project
	stamped  map[uuid.UUID]time.Time
}

func newFakeProjectRepo() *fakeProjectRepo {
	return &fakeProjectRepo{
		projects: make(map[uuid.UUID]*models.Project),
		stamped:  make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s not found", id)
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProjectRepo) GetScheduled(ctx context.Context) ([]*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Project
	for _, p := range f.projects {
		if p.SchedulerFrequency != nil {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeProjectRepo) StampNightlyRun(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stamped[id] = at
	if p, ok := f.projects[id]; ok {
		p.LastNightlyRunAt = &at
	}
	return nil
}

type fakeTagRepo struct {
	mu       sync.Mutex
	upserted []string
}

func (f *fakeTagRepo) Upsert(ctx context.Context, projectID uuid.UUID, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, names...)
	return nil
}

type fakeUserSettingsRepo struct {
	mu       sync.Mutex
	settings map[uuid.UUID]*models.UserSettings
}

func newFakeUserSettingsRepo() *fakeUserSettingsRepo {
	return &fakeUserSettingsRepo{settings: make(map[uuid.UUID]*models.UserSettings)}
}

func (f *fakeUserSettingsRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settings[userID]
	if !ok {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

type sentEmail struct {
	kind NotificationKind
	to   string
	vars map[string]string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEmail
}

func (f *fakeNotifier) Send(ctx context.Context, kind NotificationKind, to string, vars map[string]string) error {
	if to == "" {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{kind: kind, to: to, vars: vars})
	return nil
}

type publishedEvent struct {
	topic string
	event *models.DispatchEvent
}

type fakePublisher struct {
	mu        sync.Mutex
	published []publishedEvent
	calls     int
	// failTopics makes Publish fail for matching topics
	failTopics map[string]bool
	// failCalls makes Publish fail for matching zero-based call indexes
	failCalls map[int]bool
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, event *models.DispatchEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.calls
	f.calls++
	if f.failTopics[topic] || f.failCalls[call] {
		return fmt.Errorf("publish to %s failed", topic)
	}
	f.published = append(f.published, publishedEvent{topic: topic, event: event})
	return nil
}

type fakeHealth struct {
	active string
	err    error
}

func (f *fakeHealth) Active(ctx context.Context) (string, error) { return f.active, f.err }
func (f *fakeHealth) Start(ctx context.Context)                  {}
func (f *fakeHealth) Stop()                                      {}

type fakeCredentials struct {
	err error
}

func (f *fakeCredentials) Validate(ctx context.Context, apiKey, model string) error { return f.err }

type fakeAnalysis struct {
	mu        sync.Mutex
	sentiment int
	salience  int
	calls     int
}

func (f *fakeAnalysis) Scores(ctx context.Context, apiKey, model, brandName, answerText string) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.sentiment, f.salience
}

type fakeVolumes struct {
	data map[string]*models.VolumeData
	err  error
}

func (f *fakeVolumes) BatchVolumes(ctx context.Context, prompts []string, locationCode int) ([]*models.VolumeData, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.VolumeData, len(prompts))
	for i, p := range prompts {
		out[i] = f.data[p]
	}
	return out, nil
}

type shardOutcome struct {
	jobBatchID  uuid.UUID
	batchNumber int
	succeeded   bool
	reason      string
}

type fakeBatchService struct {
	mu       sync.Mutex
	outcomes []shardOutcome
}

func (f *fakeBatchService) RecordShardOutcome(ctx context.Context, jobBatchID uuid.UUID, batchNumber int, succeeded bool, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, shardOutcome{jobBatchID, batchNumber, succeeded, reason})
	return nil
}

func newFakeRepos() (*RepositoryManager, *fakeJobBatchRepo, *fakeTrackingResultRepo, *fakePromptRepo, *fakeProjectRepo, *fakeTagRepo, *fakeUserSettingsRepo) {
	batches := newFakeJobBatchRepo()
	results := newFakeTrackingResultRepo()
	prompts := newFakePromptRepo()
	projects := newFakeProjectRepo()
	tags := &fakeTagRepo{}
	settings := newFakeUserSettingsRepo()

	rm := &RepositoryManager{
		JobBatchRepo:       batches,
		TrackingResultRepo: results,
		PromptRepo:         prompts,
		ProjectRepo:        projects,
		TagRepo:            tags,
		UserSettingsRepo:   settings,
	}
	return rm, batches, results, prompts, projects, tags, settings
}
