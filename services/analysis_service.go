// services/analysis_service.go
package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicOption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/promptpulse/pulse-workflows/internal/providers/common"
)

const (
	defaultSentiment = 50
	defaultSalience  = 0

	// Spacer between the sentiment and salience calls for one result
	analysisCallSpacing = 300 * time.Millisecond
)

// The rubric prompts are part of the score contract: changing them changes
// the score distribution.
const sentimentRubric = `Rate the sentiment toward the brand "%s" in the following text on a scale from 0 to 100, where 0 is extremely negative, 50 is neutral, and 100 is extremely positive. Respond with ONLY the integer.

Text:
%s`

const salienceRubric = `Rate how central the brand "%s" is to the following text on a scale from 0 to 100, where 0 means the brand is not mentioned or incidental and 100 means the text is primarily about the brand. Respond with ONLY the integer.

Text:
%s`

var firstIntRe = regexp.MustCompile(`-?\d+`)

type analysisService struct {
	anthropicAPIKey string
	openaiBaseURL   string
	sleep           func(time.Duration)
}

// NewAnalysisService creates the LLM-driven sentiment/salience scorer.
// Anthropic models use the service-level key; OpenAI models use the key
// carried on each job.
func NewAnalysisService(anthropicAPIKey string) AnalysisService {
	return &analysisService{
		anthropicAPIKey: anthropicAPIKey,
		sleep:           time.Sleep,
	}
}

// SetOpenAIBaseURL overrides the OpenAI API base URL. Used by tests.
func (s *analysisService) SetOpenAIBaseURL(url string) {
	s.openaiBaseURL = url
}

// Scores runs the sentiment then salience completions with a 300ms spacer.
// Analysis failures never fail the record: the neutral defaults apply.
func (s *analysisService) Scores(ctx context.Context, apiKey, model, brandName, answerText string) (int, int) {
	sentiment := s.score(ctx, apiKey, model, fmt.Sprintf(sentimentRubric, brandName, answerText), 0.1, 3, defaultSentiment)
	s.sleep(analysisCallSpacing)
	salience := s.score(ctx, apiKey, model, fmt.Sprintf(salienceRubric, brandName, answerText), 0.2, 4, defaultSalience)
	return sentiment, salience
}

func (s *analysisService) score(ctx context.Context, apiKey, model, prompt string, temperature float64, maxTokens int, fallback int) int {
	var raw string
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		raw, err = s.complete(ctx, apiKey, model, prompt, temperature, maxTokens)
		if err == nil {
			break
		}
		if attempt == 5 {
			fmt.Printf("[AnalysisService] ⚠️ Analysis failed after %d attempts, using default %d: %v\n", attempt, fallback, err)
			return fallback
		}
		delay := common.BackoffDelay(attempt, common.IsRateLimited(err))
		fmt.Printf("[AnalysisService] ⚠️ Analysis attempt %d failed, retrying in %v: %v\n", attempt, delay, err)
		s.sleep(delay)
	}

	value, ok := parseFirstInt(raw)
	if !ok {
		fmt.Printf("[AnalysisService] ⚠️ Could not parse score from %q, using default %d\n", raw, fallback)
		return fallback
	}
	return clampScore(value)
}

func (s *analysisService) complete(ctx context.Context, apiKey, model, prompt string, temperature float64, maxTokens int) (string, error) {
	if isAnthropicModel(model) {
		return s.completeAnthropic(ctx, model, prompt, temperature, maxTokens)
	}
	return s.completeOpenAI(ctx, apiKey, model, prompt, temperature, maxTokens)
}

func isAnthropicModel(model string) bool {
	lower := strings.ToLower(model)
	for _, marker := range []string{"claude", "sonnet", "opus", "haiku"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (s *analysisService) completeOpenAI(ctx context.Context, apiKey, model, prompt string, temperature float64, maxTokens int) (string, error) {
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if s.openaiBaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.openaiBaseURL))
	}
	client := openai.NewClient(opts...)

	response, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("openai completion returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}

func (s *analysisService) completeAnthropic(ctx context.Context, model, prompt string, temperature float64, maxTokens int) (string, error) {
	client := anthropic.NewClient(
		anthropicOption.WithAPIKey(s.anthropicAPIKey),
	)

	response, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
		Temperature: anthropic.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	var parts []string
	for _, block := range response.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			parts = append(parts, variant.Text)
		}
	}
	return strings.Join(parts, ""), nil
}

// parseFirstInt extracts the first integer from an LLM response
func parseFirstInt(text string) (int, bool) {
	match := firstIntRe.FindString(text)
	if match == "" {
		return 0, false
	}
	value, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return value, true
}
