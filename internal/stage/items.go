package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anoopengineer/rss-bluesky-bridge/internal/bluesky"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/htmltext"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/secrets"
	"github.com/anoopengineer/rss-bluesky-bridge/sqs"
	"github.com/anoopengineer/rss-bluesky-bridge/truncate"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
)

// MaxPostGraphemes is the Bluesky post text limit.
const MaxPostGraphemes = 300

type CheckOutput struct {
	types.ItemIdentifier
	ShouldProcess bool `json:"should_process"`
}

// Checker reports whether an item still has to be published.
type Checker struct {
	Store  types.DedupStore
	Logger *slog.Logger
}

func (c *Checker) Handle(ctx context.Context, event ItemEvent) (out CheckOutput, err error) {
	logger, done := track(ctx, c.Logger, Check, itemAttrs(event)...)
	defer func() { done(err) }()

	if err := event.Validate(); err != nil {
		return CheckOutput{}, err
	}

	exists, err := c.Store.Exists(ctx, event.GUID)
	if err != nil {
		return CheckOutput{}, err
	}

	logger.InfoContext(ctx, "Dedup record checked", "exists", exists)

	return CheckOutput{ItemIdentifier: event, ShouldProcess: !exists}, nil
}

// ModelSummarizer turns a description into a summary.
type ModelSummarizer interface {
	Summarize(ctx context.Context, description string) (string, error)
}

type SummarizeOutput struct {
	types.ItemIdentifier
	Summarized bool `json:"summarized"`
}

// Summarizer stores a model generated summary on the execution item. It does
// nothing when disabled.
type Summarizer struct {
	Enabled bool
	Model   ModelSummarizer
	Store   types.StagingStore
	Logger  *slog.Logger
}

func (s *Summarizer) Handle(ctx context.Context, event ItemEvent) (out SummarizeOutput, err error) {
	logger, done := track(ctx, s.Logger, Summarize, itemAttrs(event)...)
	defer func() { done(err) }()

	if err := event.Validate(); err != nil {
		return SummarizeOutput{}, err
	}

	if !s.Enabled {
		logger.InfoContext(ctx, "Summarization disabled")
		return SummarizeOutput{ItemIdentifier: event}, nil
	}

	item, err := s.Store.GetOne(ctx, event.ExecutionID, event.GUID)
	if err != nil {
		return SummarizeOutput{}, err
	}

	if err := types.RequireNonBlank("description", types.StringValue(item.Description)); err != nil {
		return SummarizeOutput{}, err
	}

	summary, err := s.Model.Summarize(ctx, *item.Description)
	if err != nil {
		return SummarizeOutput{}, withIdentifier(err, event)
	}

	if err := s.Store.UpdateSummary(ctx, event.ExecutionID, event.GUID, summary); err != nil {
		return SummarizeOutput{}, err
	}

	logger.InfoContext(ctx, "Summary stored", "graphemes", truncate.Len(summary))

	return SummarizeOutput{ItemIdentifier: event, Summarized: true}, nil
}

// CredentialSource loads login credentials by secret name.
type CredentialSource interface {
	Credentials(ctx context.Context, secretName string) (secrets.Credentials, error)
}

// Poster creates Bluesky posts.
type Poster interface {
	CreateSession(ctx context.Context, identifier, password string) (*bluesky.Session, error)
	CreatePost(ctx context.Context, session *bluesky.Session, post bluesky.Post) (bluesky.RecordRef, error)
}

type PublishOutput struct {
	types.ItemIdentifier
	URI string `json:"uri"`
}

// Publisher posts a staged item to Bluesky with a link card.
type Publisher struct {
	Store       types.StagingStore
	Credentials CredentialSource
	SecretName  string
	Poster      Poster
	Logger      *slog.Logger
}

func (p *Publisher) Handle(ctx context.Context, event ItemEvent) (out PublishOutput, err error) {
	logger, done := track(ctx, p.Logger, Publish, itemAttrs(event)...)
	defer func() { done(err) }()

	if err := event.Validate(); err != nil {
		return PublishOutput{}, err
	}

	item, err := p.Store.GetOne(ctx, event.ExecutionID, event.GUID)
	if err != nil {
		return PublishOutput{}, err
	}

	post, err := PostFor(item)
	if err != nil {
		return PublishOutput{}, err
	}

	creds, err := p.Credentials.Credentials(ctx, p.SecretName)
	if err != nil {
		return PublishOutput{}, withIdentifier(err, event)
	}

	session, err := p.Poster.CreateSession(ctx, creds.Username, creds.Password)
	if err != nil {
		return PublishOutput{}, &types.UpstreamError{Service: "bluesky", Op: "CreateSession", Identifier: event, Err: err}
	}

	ref, err := p.Poster.CreatePost(ctx, session, post)
	if err != nil {
		return PublishOutput{}, &types.UpstreamError{Service: "bluesky", Op: "CreatePost", Identifier: event, Err: err}
	}

	logger.InfoContext(ctx, "Post created", "uri", ref.URI)

	return PublishOutput{ItemIdentifier: event, URI: ref.URI}, nil
}

// PostFor builds the post of an execution item. Title, description and link
// are required. The text is the stored summary when present, else the plain
// text of the description cut to [MaxPostGraphemes].
func PostFor(item *types.ExecutionItem) (bluesky.Post, error) {
	title := types.StringValue(item.Title)
	description := types.StringValue(item.Description)
	link := types.StringValue(item.Link)

	if err := errors.Join(
		types.RequireNonBlank("title", title),
		types.RequireNonBlank("description", description),
		types.RequireNonBlank("link", link),
	); err != nil {
		return bluesky.Post{}, err
	}

	text := strings.TrimSpace(types.StringValue(item.Summary))
	if text == "" {
		text = truncate.ToWord(htmltext.MustText(description), MaxPostGraphemes)
	}

	return bluesky.Post{
		Text:        text,
		Link:        link,
		Title:       truncate.ToWord(htmltext.MustText(title), MaxPostGraphemes),
		Description: text,
	}, nil
}

// Recorder marks an item as processed so later runs skip it.
type Recorder struct {
	Store  types.DedupStore
	Logger *slog.Logger
}

func (r *Recorder) Handle(ctx context.Context, event ItemEvent) (out types.ItemIdentifier, err error) {
	logger, done := track(ctx, r.Logger, Record, itemAttrs(event)...)
	defer func() { done(err) }()

	if err := event.Validate(); err != nil {
		return types.ItemIdentifier{}, err
	}

	if err := r.Store.Create(ctx, event.GUID); err != nil {
		return types.ItemIdentifier{}, err
	}

	logger.InfoContext(ctx, "Dedup record created")

	return event, nil
}

// FailureQueue receives reports of items that failed a stage.
type FailureQueue interface {
	SendFailure(ctx context.Context, report *sqs.FailureReport) error
}

// ProcessedItem is one element of the orchestrator's map output. Error holds
// whatever the orchestrator caught, usually {"Error": ..., "Cause": ...}.
type ProcessedItem struct {
	ExecutionID string          `json:"execution_id"`
	GUID        string          `json:"guid"`
	Error       json.RawMessage `json:"error,omitempty"`
}

func (p ProcessedItem) Failed() bool {
	s := strings.TrimSpace(string(p.Error))
	return s != "" && s != "null"
}

type ErrorCheckInput struct {
	ProcessedItems []ProcessedItem `json:"processed_items"`
}

type ErrorCheckOutput struct {
	HasErrors  bool `json:"has_errors"`
	ErrorCount int  `json:"error_count"`
	TotalItems int  `json:"total_items"`
	Reported   int  `json:"reported"`
}

// ErrorChecker counts failed items and reports each one to the failure queue
// when a queue is configured.
type ErrorChecker struct {
	Queue  FailureQueue
	Logger *slog.Logger
}

func (e *ErrorChecker) Handle(ctx context.Context, in ErrorCheckInput) (out ErrorCheckOutput, err error) {
	logger, done := track(ctx, e.Logger, ErrorCheck)
	defer func() { done(err) }()

	out.TotalItems = len(in.ProcessedItems)

	var errs []error

	for _, item := range in.ProcessedItems {
		if !item.Failed() {
			continue
		}

		out.ErrorCount++

		if e.Queue == nil {
			continue
		}

		report := &sqs.FailureReport{ExecutionID: item.ExecutionID, GUID: item.GUID, Error: item.Error}

		if !json.Valid(item.Error) {
			quoted, _ := json.Marshal(string(item.Error))
			report.Error = quoted
		}

		if err := e.Queue.SendFailure(ctx, report); err != nil {
			var validationErr *types.ValidationError
			if errors.As(err, &validationErr) {
				logger.WarnContext(ctx, "Failed item cannot be reported", append(itemAttrs(report.Identifier()), errorAttrs(err)...)...)
				continue
			}

			errs = append(errs, err)

			continue
		}

		out.Reported++
	}

	out.HasErrors = out.ErrorCount > 0

	logger.InfoContext(ctx, "Processed items checked", "total_items", out.TotalItems, "error_count", out.ErrorCount, "reported", out.Reported)

	if err := errors.Join(errs...); err != nil {
		return ErrorCheckOutput{}, fmt.Errorf("failed to report %d of %d failed items: %w", len(errs), out.ErrorCount, err)
	}

	return out, nil
}

type CleanupEvent struct {
	ExecutionID string `json:"execution_id"`
}

type CleanupOutput struct {
	ExecutionID string                 `json:"execution_id"`
	Deleted     int                    `json:"deleted"`
	Unprocessed []types.ItemIdentifier `json:"unprocessed"`
}

// Cleaner removes the staged items of a finished run.
type Cleaner struct {
	Store  types.StagingStore
	Logger *slog.Logger
}

func (c *Cleaner) Handle(ctx context.Context, event CleanupEvent) (out CleanupOutput, err error) {
	logger, done := track(ctx, c.Logger, Cleanup, "execution_id", event.ExecutionID)
	defer func() { done(err) }()

	if err := types.ValidateExecutionID(event.ExecutionID); err != nil {
		return CleanupOutput{}, err
	}

	result, err := c.Store.DeleteByRun(ctx, event.ExecutionID)

	out = CleanupOutput{
		ExecutionID: event.ExecutionID,
		Deleted:     result.Processed,
		Unprocessed: result.Unprocessed,
	}

	for _, id := range result.Unprocessed {
		logger.WarnContext(ctx, "Execution item was not deleted", "guid", id.GUID)
	}

	if err != nil {
		return out, err
	}

	logger.InfoContext(ctx, "Execution items deleted", "deleted", result.Processed)

	return out, nil
}

// withIdentifier attaches the item key to an upstream error that was raised
// without one.
func withIdentifier(err error, id types.ItemIdentifier) error {
	var upstreamErr *types.UpstreamError
	if errors.As(err, &upstreamErr) && upstreamErr.Identifier == (types.ItemIdentifier{}) {
		return &types.UpstreamError{Service: upstreamErr.Service, Op: upstreamErr.Op, Identifier: id, Err: upstreamErr.Err}
	}

	return err
}
