// internal/providers/common/dataforseo_client.go
package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DataForSEOClient handles all HTTP interactions with the DataForSEO API
type DataForSEOClient struct {
	login      string
	password   string
	baseURL    string
	httpClient *http.Client
}

// NewDataForSEOClient creates a new DataForSEO API client
func NewDataForSEOClient(login, password string) *DataForSEOClient {
	return &DataForSEOClient{
		login:    login,
		password: password,
		baseURL:  "https://api.dataforseo.com/v3",
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *DataForSEOClient) SetBaseURL(url string) {
	c.baseURL = url
}

func (c *DataForSEOClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.login, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Provider: "DataForSEO", StatusCode: resp.StatusCode, Message: string(body)}
	}

	return body, nil
}

// PostLLMTask submits one AI response task and returns its upstream task ID.
// DataForSEO delivers the finished result to the task's postback URL.
func (c *DataForSEOClient) PostLLMTask(ctx context.Context, task LLMTaskPost) (string, error) {
	body, err := c.post(ctx, "/ai_optimization/chat_gpt/llm_responses/task_post", []LLMTaskPost{task})
	if err != nil {
		return "", err
	}

	var envelope TaskEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("failed to decode task_post response: %w", err)
	}

	if len(envelope.Tasks) == 0 {
		return "", fmt.Errorf("task_post response contained no tasks")
	}

	t := envelope.Tasks[0]
	// 20100 = task created; 20000 = ok
	if t.StatusCode != 20100 && t.StatusCode != 20000 {
		return "", fmt.Errorf("task_post rejected (status %d): %s", t.StatusCode, t.StatusMessage)
	}
	if t.ID == "" {
		return "", fmt.Errorf("task_post response missing task id")
	}

	return t.ID, nil
}

// SearchVolume fetches AI search volume for up to 50 keywords in one call
func (c *DataForSEOClient) SearchVolume(ctx context.Context, req VolumeRequest) ([]VolumeItem, error) {
	body, err := c.post(ctx, "/ai_optimization/ai_keyword_data/keywords_search_volume/live", []VolumeRequest{req})
	if err != nil {
		return nil, err
	}

	var envelope VolumeEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode search volume response: %w", err)
	}

	if len(envelope.Tasks) == 0 {
		return nil, fmt.Errorf("search volume response contained no tasks")
	}
	task := envelope.Tasks[0]
	if task.StatusCode != 20000 {
		return nil, fmt.Errorf("search volume task failed (status %d)", task.StatusCode)
	}
	if len(task.Result) == 0 {
		return nil, nil
	}

	return task.Result[0].Items, nil
}

// Ping performs a lightweight authenticated request to verify the API is up
func (c *DataForSEOClient) Ping(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/appendix/user_data", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.login, c.password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
