// internal/providers/common/types.go
package common

// Bright Data datasets API wire types.

// TriggerResponse is returned when submitting a job to Bright Data
type TriggerResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

// ProgressResponse contains the status of a Bright Data job
type ProgressResponse struct {
	Status             string `json:"status"`
	SnapshotID         string `json:"snapshot_id"`
	DatasetID          string `json:"dataset_id"`
	Records            *int   `json:"records,omitempty"`
	Errors             *int   `json:"errors,omitempty"`
	CollectionDuration *int   `json:"collection_duration,omitempty"`
}

// StatusResponse is used to check if a snapshot body is a status object rather
// than a results array
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// BrightDataInput is one prompt inside a trigger request
type BrightDataInput struct {
	URL              string `json:"url"`
	Prompt           string `json:"prompt"`
	Country          string `json:"country"`
	WebSearch        bool   `json:"web_search"`
	Index            int    `json:"index"`
	AdditionalPrompt string `json:"additional_prompt"`
}

// BrightDataRequest is the trigger request payload
type BrightDataRequest struct {
	Input []BrightDataInput `json:"input"`
}

// BrightDataLink is one attached link in a snapshot result
type BrightDataLink struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// BrightDataResult is one entry of a completed snapshot
type BrightDataResult struct {
	URL                string               `json:"url"`
	Prompt             string               `json:"prompt"`
	Citations          interface{}          `json:"citations"`
	Country            string               `json:"country"`
	AnswerTextMarkdown string               `json:"answer_text_markdown"`
	WebSearchTriggered bool                 `json:"web_search_triggered"`
	Index              int                  `json:"index"`
	Error              string               `json:"error,omitempty"`
	Input              *BrightDataInputEcho `json:"input,omitempty"` // Echoed back on errors
	LinksAttached      []BrightDataLink     `json:"links_attached"`
}

// BrightDataInputEcho carries the original input back on error results
type BrightDataInputEcho struct {
	URL              string `json:"url"`
	Prompt           string `json:"prompt"`
	Country          string `json:"country"`
	Index            int    `json:"index"`
	WebSearch        bool   `json:"web_search"`
	AdditionalPrompt string `json:"additional_prompt"`
}

// DataForSEO wire types.

// LLMTaskPost is one task in a DataForSEO llm_responses task_post request
type LLMTaskPost struct {
	UserPrompt     string `json:"user_prompt"`
	LLMName        string `json:"llm_name"`
	WebSearch      bool   `json:"web_search"`
	LocationName   string `json:"location_name,omitempty"`
	PostbackURL    string `json:"postback_url"`
	PostbackData   string `json:"postback_data,omitempty"`
	MaxOutputSize  int    `json:"max_output_size,omitempty"`
	ForceWebSearch bool   `json:"force_web_search,omitempty"`
}

// TaskEnvelope is the generic DataForSEO response wrapper
type TaskEnvelope struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Tasks         []Task `json:"tasks"`
}

// Task is one task entry in a DataForSEO response or callback
type Task struct {
	ID            string       `json:"id"`
	StatusCode    int          `json:"status_code"`
	StatusMessage string       `json:"status_message"`
	Data          *TaskData    `json:"data,omitempty"`
	Result        []TaskResult `json:"result,omitempty"`
}

// TaskData echoes submission parameters back on a task
type TaskData struct {
	UserPrompt   string `json:"user_prompt,omitempty"`
	LLMName      string `json:"llm_name,omitempty"`
	LocationName string `json:"location_name,omitempty"`
	WebSearch    bool   `json:"web_search,omitempty"`
}

// TaskResult is one result entry on a completed DataForSEO task
type TaskResult struct {
	Markdown    string       `json:"markdown"`
	InputTokens int          `json:"input_tokens"`
	WebSearch   bool         `json:"web_search"`
	Items       []ResultItem `json:"items"`
	Sources     []Source     `json:"sources"`
}

// ResultItem is a structured block inside a DataForSEO llm response
type ResultItem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title,omitempty"`
	Text     string       `json:"text,omitempty"`
	URL      string       `json:"url,omitempty"`
	Items    []ResultItem `json:"items,omitempty"`
	DateTime string       `json:"date_time,omitempty"`
}

// Source is one cited source on a DataForSEO result
type Source struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Domain   string `json:"domain"`
	DateTime string `json:"date_time,omitempty"`
}

// Keyword volume types.

// VolumeRequest is the search-volume request payload
type VolumeRequest struct {
	Keywords     []string `json:"keywords"`
	LocationCode int      `json:"location_code"`
	LanguageCode string   `json:"language_code"`
}

// VolumeItem is one keyword entry in a search-volume result
type VolumeItem struct {
	Keyword        string          `json:"keyword"`
	SearchVolume   int             `json:"ai_search_volume"`
	MonthlySearches []MonthlySearch `json:"ai_monthly_searches"`
}

// MonthlySearch is one month of volume on a keyword
type MonthlySearch struct {
	Year         int `json:"year"`
	Month        int `json:"month"`
	SearchVolume int `json:"ai_search_volume"`
}

// VolumeResult wraps the item list on a search-volume task
type VolumeResult struct {
	Items []VolumeItem `json:"items"`
}

// VolumeEnvelope is the search-volume response wrapper
type VolumeEnvelope struct {
	StatusCode int `json:"status_code"`
	Tasks      []struct {
		StatusCode int            `json:"status_code"`
		Result     []VolumeResult `json:"result"`
	} `json:"tasks"`
}
