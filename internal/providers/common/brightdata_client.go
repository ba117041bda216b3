// internal/providers/common/brightdata_client.go
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

// BrightDataClient handles all HTTP interactions with the Bright Data API
type BrightDataClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewBrightDataClient creates a new Bright Data API client
func NewBrightDataClient(apiKey string) *BrightDataClient {
	return &BrightDataClient{
		apiKey:  apiKey,
		baseURL: "https://api.brightdata.com/datasets/v3",
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *BrightDataClient) SetBaseURL(url string) {
	c.baseURL = url
}

// Trigger submits a batch of prompts and returns the snapshot ID
func (c *BrightDataClient) Trigger(ctx context.Context, payload BrightDataRequest, datasetID string) (string, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/trigger?dataset_id=%s&include_errors=true", c.baseURL, datasetID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &UpstreamError{Provider: "BrightData", StatusCode: resp.StatusCode, Message: string(body)}
	}

	var triggerResp TriggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&triggerResp); err != nil {
		return "", fmt.Errorf("failed to decode trigger response: %w", err)
	}

	if triggerResp.SnapshotID == "" {
		return "", fmt.Errorf("trigger response missing snapshot_id")
	}

	return triggerResp.SnapshotID, nil
}

// Ping performs a lightweight authenticated request to verify the API is up
func (c *BrightDataClient) Ping(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// CheckProgress checks the progress of a Bright Data job
func (c *BrightDataClient) CheckProgress(ctx context.Context, snapshotID string) (*ProgressResponse, error) {
	url := fmt.Sprintf("%s/progress/%s", c.baseURL, snapshotID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create progress request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to check progress: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Provider: "BrightData", StatusCode: resp.StatusCode, Message: "progress check failed"}
	}

	var progressResp ProgressResponse
	if err := json.NewDecoder(resp.Body).Decode(&progressResp); err != nil {
		return nil, fmt.Errorf("failed to decode progress response: %w", err)
	}

	return &progressResp, nil
}

// FetchSnapshot retrieves the raw snapshot body. The caller decides whether it
// holds results or a status object via IsStatusResponse.
func (c *BrightDataClient) FetchSnapshot(ctx context.Context, snapshotID string) ([]byte, error) {
	url := fmt.Sprintf("%s/snapshot/%s?format=json", c.baseURL, snapshotID)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create results request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, &UpstreamError{Provider: "BrightData", StatusCode: resp.StatusCode, Message: "snapshot fetch failed"}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return bodyBytes, nil
}

// GetBatchResults polls the snapshot endpoint until results are available.
// Polling stops after maxWait of wall-clock time.
func (c *BrightDataClient) GetBatchResults(ctx context.Context, snapshotID string, maxWait time.Duration) ([]BrightDataResult, error) {
	const pollInterval = 30 * time.Second

	deadline := time.Now().Add(maxWait)
	attempt := 0
	for {
		attempt++
		bodyBytes, err := c.FetchSnapshot(ctx, snapshotID)
		if err != nil {
			return nil, err
		}

		isStatus, status, message := IsStatusResponse(bodyBytes)
		if isStatus {
			switch status {
			case "pending", "building", "running", "collecting":
				fmt.Printf("[BrightDataClient] ⏳ Snapshot %s still %s (poll #%d): %s\n", snapshotID, status, attempt, message)
				if time.Now().After(deadline) {
					return nil, fmt.Errorf("snapshot %s not ready after %v", snapshotID, maxWait)
				}
				select {
				case <-time.After(pollInterval):
					continue
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			case "failed":
				return nil, fmt.Errorf("snapshot %s failed: %s", snapshotID, message)
			default:
				fmt.Printf("[BrightDataClient] ⚠️ Unknown status '%s', attempting to decode as results\n", status)
			}
		}

		var results []BrightDataResult
		if err := json.Unmarshal(bodyBytes, &results); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot results: %w", err)
		}
		return results, nil
	}
}
