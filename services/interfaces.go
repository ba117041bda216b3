// services/interfaces.go
package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/promptpulse/pulse-workflows/internal/models"
	"github.com/promptpulse/pulse-workflows/internal/repositories"
	"github.com/promptpulse/pulse-workflows/internal/repositories/postgresql"
)

// RepositoryManager manages all database repositories
type RepositoryManager struct {
	db                 *sqlx.DB
	JobBatchRepo       repositories.JobBatchRepository
	TrackingResultRepo repositories.TrackingResultRepository
	PromptRepo         repositories.PromptRepository
	ProjectRepo        repositories.ProjectRepository
	TagRepo            repositories.TagRepository
	UserSettingsRepo   repositories.UserSettingsRepository
}

// NewRepositoryManager creates a new repository manager with all repositories
func NewRepositoryManager(db *sqlx.DB) *RepositoryManager {
	return &RepositoryManager{
		db:                 db,
		JobBatchRepo:       postgresql.NewJobBatchRepo(db),
		TrackingResultRepo: postgresql.NewTrackingResultRepo(db),
		PromptRepo:         postgresql.NewPromptRepo(db),
		ProjectRepo:        postgresql.NewProjectRepo(db),
		TagRepo:            postgresql.NewTagRepo(db),
		UserSettingsRepo:   postgresql.NewUserSettingsRepo(db),
	}
}

// BeginTx starts a database transaction
func (rm *RepositoryManager) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return rm.db.BeginTxx(ctx, nil)
}

// EventPublisher publishes dispatch events to the queue. One topic per
// scraping provider.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event *models.DispatchEvent) error
}

// ProviderHealthService probes the scraping providers and exposes the active one
type ProviderHealthService interface {
	// Active blocks on the first call until an initial probe completes.
	// Returns ErrAllProvidersDown when neither provider is healthy.
	Active(ctx context.Context) (string, error)
	Start(ctx context.Context)
	Stop()
}

// CredentialService validates user-supplied OpenAI credentials
type CredentialService interface {
	// Validate issues a 1-token probe and maps provider errors onto the
	// submission error taxonomy.
	Validate(ctx context.Context, apiKey, model string) error
}

// SubmissionRequest is the POST /enqueue body
type SubmissionRequest struct {
	ProjectID      uuid.UUID   `json:"project_id"`
	UserID         uuid.UUID   `json:"user_id"`
	Email          *string     `json:"email,omitempty"`
	Prompts        []string    `json:"prompts"`
	BrandMentions  StringList  `json:"brand_mentions"`
	DomainMentions StringList  `json:"domain_mentions"`
	Location       *models.Location `json:"location,omitempty"`
	OpenAIKey      string      `json:"openai_key"`
	OpenAIModel    string      `json:"openai_model,omitempty"`
	WebSearch      bool        `json:"web_search"`
	Tags           []string    `json:"tags,omitempty"`
}

// SubmissionResponse acknowledges an accepted submission
type SubmissionResponse struct {
	JobBatchID   uuid.UUID `json:"job_batch_id"`
	TotalPrompts int       `json:"total_prompts"`
	TotalBatches int       `json:"total_batches"`
	Service      string    `json:"service"`
}

// SubmissionService validates, persists, and fans out prompt submissions
type SubmissionService interface {
	Enqueue(ctx context.Context, req *SubmissionRequest) (*SubmissionResponse, error)
}

// JobBatchService drives the per-batch state machine
type JobBatchService interface {
	// RecordShardOutcome applies one shard's success or failure: sum-guarded
	// counter increment, terminal transition when the counters fill, and the
	// per-shard notification.
	RecordShardOutcome(ctx context.Context, jobBatchID uuid.UUID, batchNumber int, succeeded bool, reason string) error
}

// EnrichmentService runs the deterministic scorers over a normalized response
type EnrichmentService interface {
	Enrich(resp *models.NormalizedResponse, promptText string, brandMentions, domainMentions []string) *models.EnrichmentResult
}

// AnalysisService produces the two LLM-driven scores
type AnalysisService interface {
	// Scores returns (sentiment, salience). Callers only invoke it when a
	// brand matched; failures fall back to the neutral defaults 50 and 0.
	Scores(ctx context.Context, apiKey, model, brandName, answerText string) (int, int)
}

// VolumeService fetches AI search volume trends for prompt keywords
type VolumeService interface {
	// BatchVolumes returns one entry per prompt, index-aligned. Entries are
	// independently nullable; zero volume is a valid non-nil answer.
	BatchVolumes(ctx context.Context, prompts []string, locationCode int) ([]*models.VolumeData, error)
}

// NotificationKind selects an email template
type NotificationKind string

const (
	NotificationSubmitted NotificationKind = "submitted"
	NotificationSucceeded NotificationKind = "succeeded"
	NotificationFailed    NotificationKind = "failed"
)

// NotifierService sends per-shard lifecycle emails
type NotifierService interface {
	Send(ctx context.Context, kind NotificationKind, to string, vars map[string]string) error
}

// Dispatcher is the per-provider worker surface: one queue message in, the
// shard's rows and batch counters out.
type Dispatcher interface {
	DispatchShard(ctx context.Context, event *models.DispatchEvent) error
}

// CallbackHandler processes provider B postbacks
type CallbackHandler interface {
	HandleCallback(ctx context.Context, cbCtx *models.CallbackContext, body []byte) error
}

// SchedulerService runs the nightly cadence pass
type SchedulerService interface {
	RunNightly(ctx context.Context) error
}
