package summarize_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/anoopengineer/rss-bluesky-bridge/internal/summarize"
	"github.com/anoopengineer/rss-bluesky-bridge/truncate"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	invokeModelFunc func(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

func (m *mockAPI) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	return m.invokeModelFunc(ctx, params, optFns...)
}

func respondWith(body string) *mockAPI {
	return &mockAPI{
		invokeModelFunc: func(_ context.Context, _ *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
			return &bedrockruntime.InvokeModelOutput{Body: []byte(body)}, nil
		},
	}
}

func TestSummarize_Request(t *testing.T) {
	t.Parallel()

	var captured *bedrockruntime.InvokeModelInput

	api := &mockAPI{
		invokeModelFunc: func(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
			captured = params
			return &bedrockruntime.InvokeModelOutput{Body: []byte(`{"content":[{"type":"text","text":"A short summary."}]}`)}, nil
		},
	}

	summary, err := summarize.New(api, "anthropic.claude-3-haiku", 280).Summarize(t.Context(), "<p>Long text</p>")
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", summary)

	require.NotNil(t, captured)
	assert.Equal(t, "anthropic.claude-3-haiku", aws.ToString(captured.ModelId))
	assert.Equal(t, "application/json", aws.ToString(captured.ContentType))

	var req map[string]any
	require.NoError(t, json.Unmarshal(captured.Body, &req))

	assert.Equal(t, "bedrock-2023-05-31", req["anthropic_version"])
	assert.InDelta(t, 300, req["max_tokens"], 0)
	assert.InDelta(t, 0, req["temperature"], 0)

	messages, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)

	text := messages[0].(map[string]any)["content"].([]any)[0].(map[string]any)["text"]
	assert.Equal(t, "Remove all html tags and summarize the following text in 280 graphemes or less:\n\n<p>Long text</p>", text)
}

func TestSummarize_TruncatesLongResponses(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 100)
	body, err := json.Marshal(map[string]any{"content": []map[string]string{{"type": "text", "text": long}}})
	require.NoError(t, err)

	summary, err := summarize.New(respondWith(string(body)), "m", 280).Summarize(t.Context(), "text")
	require.NoError(t, err)

	assert.LessOrEqual(t, truncate.Len(summary), summarize.MaxSummaryGraphemes)
	assert.True(t, strings.HasSuffix(summary, truncate.Ellipsis))
}

func TestSummarize_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		api          *mockAPI
		description  string
		wantUpstream bool
	}{
		{"blank description", respondWith(`{}`), "  ", false},
		{"invalid json", respondWith(`not json`), "text", true},
		{"no content", respondWith(`{"content":[]}`), "text", true},
		{"blank text", respondWith(`{"content":[{"type":"text","text":" "}]}`), "text", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := summarize.New(tt.api, "m", 280).Summarize(t.Context(), tt.description)
			require.Error(t, err)

			if !tt.wantUpstream {
				var vErr *types.ValidationError
				require.ErrorAs(t, err, &vErr)

				return
			}

			var upstreamErr *types.UpstreamError
			require.ErrorAs(t, err, &upstreamErr)
			assert.Equal(t, "bedrock", upstreamErr.Service)
			assert.Equal(t, "InvokeModel", upstreamErr.Op)
		})
	}
}

func TestSummarize_UpstreamError(t *testing.T) {
	t.Parallel()

	api := &mockAPI{
		invokeModelFunc: func(_ context.Context, _ *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
			return nil, errors.New("throttled")
		},
	}

	_, err := summarize.New(api, "m", 280).Summarize(t.Context(), "text")

	var upstreamErr *types.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, "bedrock", upstreamErr.Service)
}
