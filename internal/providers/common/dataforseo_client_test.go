package common_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/promptpulse/pulse-workflows/internal/providers/common"
)

func TestPostLLMTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if !strings.Contains(r.URL.Path, "/llm_responses/task_post") {
			t.Errorf("Expected task_post endpoint, got %s", r.URL.Path)
		}

		login, password, ok := r.BasicAuth()
		if !ok || login != "test-login" || password != "test-password" {
			t.Errorf("Expected basic auth credentials, got %s/%s", login, password)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status_code": 20000, "tasks": [{"id": "task-abc", "status_code": 20100, "status_message": "Task Created."}]}`))
	}))
	defer server.Close()

	client := common.NewDataForSEOClient("test-login", "test-password")
	client.SetBaseURL(server.URL)

	taskID, err := client.PostLLMTask(context.Background(), common.LLMTaskPost{
		UserPrompt:  "best crm tools",
		LLMName:     "gpt-4o-mini",
		WebSearch:   true,
		PostbackURL: "https://example.com/api/dataforseo/callback",
	})
	if err != nil {
		t.Fatalf("PostLLMTask failed: %v", err)
	}
	if taskID != "task-abc" {
		t.Errorf("Expected task ID task-abc, got %s", taskID)
	}
}

func TestPostLLMTaskRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status_code": 20000, "tasks": [{"id": "", "status_code": 40501, "status_message": "Invalid Field."}]}`))
	}))
	defer server.Close()

	client := common.NewDataForSEOClient("test-login", "test-password")
	client.SetBaseURL(server.URL)

	_, err := client.PostLLMTask(context.Background(), common.LLMTaskPost{UserPrompt: "test"})
	if err == nil {
		t.Fatal("Expected error for rejected task")
	}
	if !strings.Contains(err.Error(), "40501") {
		t.Errorf("Expected task status code in error, got: %v", err)
	}
}

func TestPostLLMTaskHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		rateLimited bool
	}{
		{name: "unauthorized", statusCode: 401, rateLimited: false},
		{name: "payment required", statusCode: 402, rateLimited: false},
		{name: "rate limited", statusCode: 429, rateLimited: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := common.NewDataForSEOClient("test-login", "test-password")
			client.SetBaseURL(server.URL)

			_, err := client.PostLLMTask(context.Background(), common.LLMTaskPost{UserPrompt: "test"})
			if err == nil {
				t.Fatalf("Expected error for status %d", tt.statusCode)
			}
			if common.IsRateLimited(err) != tt.rateLimited {
				t.Errorf("IsRateLimited = %v, want %v for status %d", common.IsRateLimited(err), tt.rateLimited, tt.statusCode)
			}
		})
	}
}

func TestSearchVolume(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/keywords_search_volume/live") {
			t.Errorf("Expected keywords_search_volume endpoint, got %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status_code": 20000,
			"tasks": [{
				"status_code": 20000,
				"result": [{
					"items": [
						{"keyword": "best crm tools", "ai_search_volume": 1200, "ai_monthly_searches": [
							{"year": 2026, "month": 7, "ai_search_volume": 1100},
							{"year": 2026, "month": 6, "ai_search_volume": 900}
						]},
						{"keyword": "niche prompt", "ai_search_volume": 0, "ai_monthly_searches": []}
					]
				}]
			}]
		}`))
	}))
	defer server.Close()

	client := common.NewDataForSEOClient("test-login", "test-password")
	client.SetBaseURL(server.URL)

	items, err := client.SearchVolume(context.Background(), common.VolumeRequest{
		Keywords:     []string{"best crm tools", "niche prompt"},
		LocationCode: 2840,
		LanguageCode: "en",
	})
	if err != nil {
		t.Fatalf("SearchVolume failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].SearchVolume != 1200 {
		t.Errorf("Expected volume 1200, got %d", items[0].SearchVolume)
	}
	if len(items[0].MonthlySearches) != 2 {
		t.Errorf("Expected 2 monthly entries, got %d", len(items[0].MonthlySearches))
	}
	// Zero volume is a valid answer, not an error
	if items[1].SearchVolume != 0 {
		t.Errorf("Expected zero volume, got %d", items[1].SearchVolume)
	}
}

func TestSearchVolumeEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status_code": 20000, "tasks": [{"status_code": 20000, "result": []}]}`))
	}))
	defer server.Close()

	client := common.NewDataForSEOClient("test-login", "test-password")
	client.SetBaseURL(server.URL)

	items, err := client.SearchVolume(context.Background(), common.VolumeRequest{Keywords: []string{"x"}})
	if err != nil {
		t.Fatalf("SearchVolume failed: %v", err)
	}
	if items != nil {
		t.Errorf("Expected nil items for empty result, got %+v", items)
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/appendix/user_data") {
			t.Errorf("Expected user_data endpoint, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := common.NewDataForSEOClient("test-login", "test-password")
	client.SetBaseURL(server.URL)

	code, err := client.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if code != http.StatusOK {
		t.Errorf("Expected 200, got %d", code)
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt     int
		rateLimited bool
		want        time.Duration
	}{
		{attempt: 1, rateLimited: false, want: 1 * time.Second},
		{attempt: 2, rateLimited: false, want: 2 * time.Second},
		{attempt: 4, rateLimited: false, want: 8 * time.Second},
		{attempt: 5, rateLimited: false, want: 10 * time.Second},
		{attempt: 1, rateLimited: true, want: 2 * time.Second},
		{attempt: 3, rateLimited: true, want: 8 * time.Second},
		{attempt: 5, rateLimited: true, want: 30 * time.Second},
	}

	for _, tt := range tests {
		got := common.BackoffDelay(tt.attempt, tt.rateLimited)
		if got != tt.want {
			t.Errorf("BackoffDelay(%d, %v) = %v, want %v", tt.attempt, tt.rateLimited, got, tt.want)
		}
	}
}
