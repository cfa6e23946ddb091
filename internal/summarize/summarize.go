// Package summarize asks a Bedrock hosted Anthropic model for a short
// summary of an item description.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anoopengineer/rss-bluesky-bridge/truncate"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	anthropicVersion = "bedrock-2023-05-31"
	maxTokens        = 300

	// MaxSummaryGraphemes bounds the stored summary. It leaves room in the
	// 300 grapheme post for the line breaks added when publishing.
	MaxSummaryGraphemes = 290

	promptTemplate = "Remove all html tags and summarize the following text in %d graphemes or less:\n\n%s"
)

// API is the subset of the Bedrock runtime client used by [Summarizer].
type API interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

var _ API = (*bedrockruntime.Client)(nil)

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type request struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []message `json:"messages"`
	Temperature      float64   `json:"temperature"`
}

type response struct {
	Content []contentBlock `json:"content"`
}

// Summarizer produces summaries with one model.
type Summarizer struct {
	api          API
	modelID      string
	maxGraphemes int
}

// New returns a Summarizer that asks for at most maxGraphemes graphemes.
func New(api API, modelID string, maxGraphemes int) *Summarizer {
	return &Summarizer{api: api, modelID: modelID, maxGraphemes: maxGraphemes}
}

// NewFromConfig creates a Summarizer backed by the AWS SDK client.
func NewFromConfig(awsCfg aws.Config, modelID string, maxGraphemes int) *Summarizer {
	return New(bedrockruntime.NewFromConfig(awsCfg), modelID, maxGraphemes)
}

// Prompt returns the user message sent for description.
func (s *Summarizer) Prompt(description string) string {
	return fmt.Sprintf(promptTemplate, s.maxGraphemes, description)
}

// Summarize returns the model's summary of description, cut to
// [MaxSummaryGraphemes] on a word boundary. The model is told to stay within
// the configured budget but is not trusted to.
func (s *Summarizer) Summarize(ctx context.Context, description string) (string, error) {
	if err := types.RequireNonBlank("description", description); err != nil {
		return "", err
	}

	body, err := json.Marshal(request{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		Messages: []message{{
			Role:    "user",
			Content: []contentBlock{{Type: "text", Text: s.Prompt(description)}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode model request: %w", err)
	}

	out, err := s.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", &types.UpstreamError{Service: "bedrock", Op: "InvokeModel", Err: err}
	}

	var resp response
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", &types.UpstreamError{Service: "bedrock", Op: "InvokeModel", Err: fmt.Errorf("failed to decode model response: %w", err)}
	}

	if len(resp.Content) == 0 || strings.TrimSpace(resp.Content[0].Text) == "" {
		return "", &types.UpstreamError{Service: "bedrock", Op: "InvokeModel", Err: errors.New("model response contains no text")}
	}

	return truncate.ToWord(resp.Content[0].Text, MaxSummaryGraphemes), nil
}
