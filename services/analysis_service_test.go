package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newCompletionServer(content string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": %q}, "finish_reason": "stop"}]
		}`, content)
	}))
}

func newAnalysisForTest(serverURL string) *analysisService {
	svc := NewAnalysisService("").(*analysisService)
	svc.SetOpenAIBaseURL(serverURL)
	svc.sleep = func(time.Duration) {}
	return svc
}

func TestScoresParsesIntegers(t *testing.T) {
	server := newCompletionServer("85")
	defer server.Close()

	svc := newAnalysisForTest(server.URL)
	sentiment, salience := svc.Scores(context.Background(), "sk-test", "gpt-4o-mini", "Acme", "Acme is great.")
	if sentiment != 85 {
		t.Errorf("Expected sentiment 85, got %d", sentiment)
	}
	if salience != 85 {
		t.Errorf("Expected salience 85, got %d", salience)
	}
}

func TestScoresClampToRange(t *testing.T) {
	server := newCompletionServer("250")
	defer server.Close()

	svc := newAnalysisForTest(server.URL)
	sentiment, _ := svc.Scores(context.Background(), "sk-test", "gpt-4o-mini", "Acme", "text")
	if sentiment != 100 {
		t.Errorf("Expected clamp to 100, got %d", sentiment)
	}
}

func TestScoresDefaultsOnUnparseableOutput(t *testing.T) {
	server := newCompletionServer("sure, happy to help!")
	defer server.Close()

	svc := newAnalysisForTest(server.URL)
	sentiment, salience := svc.Scores(context.Background(), "sk-test", "gpt-4o-mini", "Acme", "text")
	if sentiment != defaultSentiment {
		t.Errorf("Expected default sentiment %d, got %d", defaultSentiment, sentiment)
	}
	if salience != defaultSalience {
		t.Errorf("Expected default salience %d, got %d", defaultSalience, salience)
	}
}

func TestScoresDefaultsAfterRepeatedFailures(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newAnalysisForTest(server.URL)
	sentiment, salience := svc.Scores(context.Background(), "sk-test", "gpt-4o-mini", "Acme", "text")
	if sentiment != defaultSentiment || salience != defaultSalience {
		t.Errorf("Expected defaults after failures, got %d/%d", sentiment, salience)
	}
	// Five attempts per score, two scores
	if calls != 10 {
		t.Errorf("Expected 10 attempts, got %d", calls)
	}
}

func TestParseFirstInt(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{input: "85", want: 85, ok: true},
		{input: "Score: 42/100", want: 42, ok: true},
		{input: " 7 ", want: 7, ok: true},
		{input: "none", want: 0, ok: false},
		{input: "", want: 0, ok: false},
	}

	for _, tt := range tests {
		got, ok := parseFirstInt(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseFirstInt(%q) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsAnthropicModel(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"claude-3-5-sonnet-latest", true},
		{"Claude-Opus-4", true},
		{"haiku-mini", true},
		{"gpt-4o-mini", false},
		{"o3", false},
	}

	for _, tt := range tests {
		if got := isAnthropicModel(tt.model); got != tt.want {
			t.Errorf("isAnthropicModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
