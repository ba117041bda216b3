// internal/models/models.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// Service names double as queue-topic suffixes: one Inngest event per provider.
const (
	ServiceBrightData = "brightdata"
	ServiceDataForSEO = "dataforseo"
)

// Queue topics (Inngest event names), one per scraping provider.
const (
	TopicBrightDataDispatch = "scrape.brightdata.dispatch"
	TopicDataForSEODispatch = "scrape.dataforseo.dispatch"
)

// TopicForService maps a provider service name to its queue topic
func TopicForService(service string) string {
	if service == ServiceDataForSEO {
		return TopicDataForSEODispatch
	}
	return TopicBrightDataDispatch
}

// JobBatch statuses
const (
	BatchStatusPending             = "pending"
	BatchStatusProcessing          = "processing"
	BatchStatusCompleted           = "completed"
	BatchStatusCompletedWithErrors = "completed_with_errors"
	BatchStatusFailed              = "failed"
)

// TrackingResult statuses
const (
	ResultStatusPending    = "pending"
	ResultStatusProcessing = "processing"
	ResultStatusFulfilled  = "fulfilled"
	ResultStatusFailed     = "failed"
)

// Intent classifications
const (
	IntentInformational = "informational"
	IntentCommercial    = "commercial"
	IntentTransactional = "transactional"
	IntentLocal         = "local"
	IntentNavigational  = "navigational"
)

// Scheduler frequencies
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Location represents a geographic hint for running prompts
type Location struct {
	Country string  `json:"country"`
	City    *string `json:"city,omitempty"`
	Region  *string `json:"region,omitempty"`
}

// Project is the owning scope for prompts and nightly cadence settings
type Project struct {
	ProjectID          uuid.UUID  `db:"project_id" json:"project_id"`
	UserID             uuid.UUID  `db:"user_id" json:"user_id"`
	Name               string     `db:"name" json:"name"`
	SchedulerFrequency *string    `db:"scheduler_frequency" json:"scheduler_frequency,omitempty"`
	LastNightlyRunAt   *time.Time `db:"last_nightly_run_at" json:"last_nightly_run_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Prompt is a tracked question owned by a project
type Prompt struct {
	PromptID       uuid.UUID      `db:"prompt_id" json:"prompt_id"`
	ProjectID      uuid.UUID      `db:"project_id" json:"project_id"`
	Text           string         `db:"text" json:"text"`
	Enabled        bool           `db:"enabled" json:"enabled"`
	BrandMentions  pq.StringArray `db:"brand_mentions" json:"brand_mentions"`
	DomainMentions pq.StringArray `db:"domain_mentions" json:"domain_mentions"`
	Country        *string        `db:"country" json:"country,omitempty"`
	Region         *string        `db:"region" json:"region,omitempty"`
	City           *string        `db:"city" json:"city,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// JobBatch tracks a single API submission across its shards
type JobBatch struct {
	JobBatchID       uuid.UUID      `db:"job_batch_id" json:"job_batch_id"`
	UserID           uuid.UUID      `db:"user_id" json:"user_id"`
	ProjectID        uuid.UUID      `db:"project_id" json:"project_id"`
	Email            *string        `db:"email" json:"email,omitempty"`
	TotalPrompts     int            `db:"total_prompts" json:"total_prompts"`
	TotalBatches     int            `db:"total_batches" json:"total_batches"`
	CompletedBatches int            `db:"completed_batches" json:"completed_batches"`
	FailedBatches    int            `db:"failed_batches" json:"failed_batches"`
	Status           string         `db:"status" json:"status"`
	OpenAIKey        string         `db:"openai_key" json:"-"`
	OpenAIModel      string         `db:"openai_model" json:"openai_model"`
	WebSearch        bool           `db:"web_search" json:"web_search"`
	Country          *string        `db:"country" json:"country,omitempty"`
	Region           *string        `db:"region" json:"region,omitempty"`
	City             *string        `db:"city" json:"city,omitempty"`
	BrandMentions    pq.StringArray `db:"brand_mentions" json:"brand_mentions"`
	DomainMentions   pq.StringArray `db:"domain_mentions" json:"domain_mentions"`
	Tags             pq.StringArray `db:"tags" json:"tags"`
	ErrorMessage     *string        `db:"error_message" json:"error_message,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
	CompletedAt      *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
}

// Terminal reports whether the batch has reached a terminal status
func (b *JobBatch) Terminal() bool {
	switch b.Status {
	case BatchStatusCompleted, BatchStatusCompletedWithErrors, BatchStatusFailed:
		return true
	}
	return false
}

// Citation is one cited source in a normalized answer
type Citation struct {
	Title  string `json:"title"`
	Domain string `json:"domain"`
	URL    string `json:"url"`

	// PublishedAt feeds recency scoring only and is not persisted.
	PublishedAt *time.Time `json:"-"`
}

// MonthlyTrend is one month of AI search volume
type MonthlyTrend struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Volume int `json:"volume"`
}

// TrackingResult is one prompt run within a submission (or nightly re-run)
type TrackingResult struct {
	TrackingResultID     uuid.UUID      `db:"tracking_result_id" json:"tracking_result_id"`
	PromptID             uuid.UUID      `db:"prompt_id" json:"prompt_id"`
	PromptText           string         `db:"prompt_text" json:"prompt_text"`
	ProjectID            uuid.UUID      `db:"project_id" json:"project_id"`
	UserID               uuid.UUID      `db:"user_id" json:"user_id"`
	JobBatchID           *uuid.UUID     `db:"job_batch_id" json:"job_batch_id,omitempty"`
	BatchNumber          int            `db:"batch_number" json:"batch_number"`
	ExternalTaskID       *string        `db:"external_task_id" json:"external_task_id,omitempty"`
	Status               string         `db:"status" json:"status"`
	IsPresent            *bool          `db:"is_present" json:"is_present,omitempty"`
	IsDomainPresent      *bool          `db:"is_domain_present" json:"is_domain_present,omitempty"`
	Sentiment            *int           `db:"sentiment" json:"sentiment,omitempty"`
	Salience             *int           `db:"salience" json:"salience,omitempty"`
	Response             types.JSONText `db:"response" json:"response,omitempty"`
	Citations            types.JSONText `db:"citations" json:"citations,omitempty"`
	MentionCount         *int           `db:"mention_count" json:"mention_count,omitempty"`
	DomainMentionCount   *int           `db:"domain_mention_count" json:"domain_mention_count,omitempty"`
	WebSearch            *bool          `db:"web_search" json:"web_search,omitempty"`
	LCP                  *int           `db:"lcp" json:"lcp,omitempty"`
	Actionability        *int           `db:"actionability" json:"actionability,omitempty"`
	IntentClassification *string        `db:"intent_classification" json:"intent_classification,omitempty"`
	Serp                 types.JSONText `db:"serp" json:"serp,omitempty"`
	AISearchVolume       *int           `db:"ai_search_volume" json:"ai_search_volume,omitempty"`
	AIMonthlyTrends      types.JSONText `db:"ai_monthly_trends" json:"ai_monthly_trends,omitempty"`
	AIVolumeFetchedAt    *time.Time     `db:"ai_volume_fetched_at" json:"ai_volume_fetched_at,omitempty"`
	AIVolumeLocationCode *int           `db:"ai_volume_location_code" json:"ai_volume_location_code,omitempty"`
	Timestamp            int64          `db:"timestamp" json:"timestamp"`
	Source               *string        `db:"source" json:"source,omitempty"`
}

// Tag labels a job batch within a project scope
type Tag struct {
	TagID     uuid.UUID `db:"tag_id" json:"tag_id"`
	ProjectID uuid.UUID `db:"project_id" json:"project_id"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// UserSettings carries the per-user credentials the nightly scheduler needs
type UserSettings struct {
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	Email       *string   `db:"email" json:"email,omitempty"`
	OpenAIKey   *string   `db:"openai_key" json:"-"`
	OpenAIModel *string   `db:"openai_model" json:"openai_model,omitempty"`
}

// PromptJob is one prompt inside a dispatch event
type PromptJob struct {
	PromptID         uuid.UUID `json:"prompt_id"`
	TrackingResultID uuid.UUID `json:"tracking_result_id"`
	Text             string    `json:"text"`
	BrandMentions    []string  `json:"brand_mentions"`
	DomainMentions   []string  `json:"domain_mentions"`
}

// DispatchEvent is the queue message published per shard. Worker A carries the
// snapshot ID forward on re-delivery so a retried message does not re-trigger
// the scrape.
type DispatchEvent struct {
	Service      string      `json:"service"`
	JobBatchID   *uuid.UUID  `json:"job_batch_id,omitempty"`
	UserID       uuid.UUID   `json:"user_id"`
	ProjectID    uuid.UUID   `json:"project_id"`
	BatchNumber  int         `json:"batch_number"`
	TotalBatches int         `json:"total_batches"`
	Email        *string     `json:"email,omitempty"`
	OpenAIKey    string      `json:"openai_key"`
	OpenAIModel  string      `json:"openai_model"`
	WebSearch    bool        `json:"web_search"`
	IsNightly    bool        `json:"is_nightly"`
	Location     *Location   `json:"location,omitempty"`
	Prompts      []PromptJob `json:"prompts"`
	SnapshotID   string      `json:"snapshot_id,omitempty"`
}

// CallbackContext is the typed correlation record carried on the DataForSEO
// postback URL query string. It is parsed exactly once at the HTTP boundary.
type CallbackContext struct {
	UserID      uuid.UUID `json:"user_id"`
	ProjectID   uuid.UUID `json:"project_id"`
	PromptID    uuid.UUID `json:"prompt_id"`
	OpenAIModel string    `json:"openai_model"`
	IsNightly   bool      `json:"is_nightly"`
}

// NormalizedResponse is the provider-agnostic envelope the dispatchers hand to
// the enrichment engine. Dispatchers own all provider-specific parsing.
type NormalizedResponse struct {
	AnswerText         string     `json:"answer_text"`
	Citations          []Citation `json:"citations"`
	LinkCount          int        `json:"link_count"`
	SourceCount        int        `json:"source_count"`
	ProductCount       int        `json:"product_count"`
	ImageItemCount     int        `json:"image_item_count"`
	LocalItemCount     int        `json:"local_item_count"`
	HasMapFlag         bool       `json:"has_map_flag"`
	WebSearchTriggered bool       `json:"web_search_triggered"`
}

// EnrichmentResult holds everything the deterministic scorers produce
type EnrichmentResult struct {
	SanitizedText      string         `json:"sanitized_text"`
	IsPresent          bool           `json:"is_present"`
	MentionCount       int            `json:"mention_count"`
	BrandCounts        map[string]int `json:"brand_counts"`
	IsDomainPresent    bool           `json:"is_domain_present"`
	DomainMentionCount int            `json:"domain_mention_count"`
	DomainCounts       map[string]int `json:"domain_counts"`
	Features           map[string]int `json:"features"`
	LCP                int            `json:"lcp"`
	Actionability      int            `json:"actionability"`
	Intent             string         `json:"intent"`
	IntentConfidence   int            `json:"intent_confidence"`
}

// VolumeData is the per-prompt AI search volume aggregate
type VolumeData struct {
	CurrentVolume int            `json:"current_volume"`
	MonthlyTrends []MonthlyTrend `json:"monthly_trends"`
	AverageVolume int            `json:"average_volume"`
	PeakVolume    int            `json:"peak_volume"`
}

// StoredResponse is the canonical shape of the persisted response blob. The
// sanitized answer text is always retrievable from answer_text.
type StoredResponse struct {
	AnswerText  string `json:"answer_text"`
	RawResponse string `json:"raw_response,omitempty"`
	Error       string `json:"error,omitempty"`
}
