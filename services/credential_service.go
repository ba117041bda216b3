// services/credential_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type credentialService struct {
	defaultModel string
	baseURL      string
}

// NewCredentialService creates the OpenAI credential validator
func NewCredentialService(defaultModel string) CredentialService {
	return &credentialService{defaultModel: defaultModel}
}

// SetBaseURL overrides the OpenAI API base URL. Used by tests.
func (s *credentialService) SetBaseURL(url string) {
	s.baseURL = url
}

// Validate issues a 1-token completion against the requested model and maps
// the provider's response onto the submission error taxonomy.
func (s *credentialService) Validate(ctx context.Context, apiKey, model string) error {
	if apiKey == "" {
		return ErrInvalidRequest
	}
	if model == "" {
		model = s.defaultModel
	}

	// No SDK-level retries: the probe should answer quickly either way.
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if s.baseURL != "" {
		opts = append(opts, option.WithBaseURL(s.baseURL))
	}
	client := openai.NewClient(opts...)

	_, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
		MaxTokens: openai.Int(1),
	})
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401:
			return ErrAuthFailed
		case 429:
			return ErrQuotaExceeded
		case 403:
			return ErrModelForbidden
		case 404:
			return ErrModelNotFound
		default:
			if apiErr.StatusCode >= 500 {
				return ErrUpstreamUnavailable
			}
			return fmt.Errorf("openai validation failed: %w", err)
		}
	}

	return fmt.Errorf("openai validation failed: %w", err)
}
