package stage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/internal/feed"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/aws/aws-lambda-go/events"
)

// FeedSource returns the recent items of a feed.
type FeedSource interface {
	Recent(ctx context.Context, maxAge time.Duration) ([]feed.Item, error)
}

type FetchOutput struct {
	ItemIdentifiers []types.ItemIdentifier `json:"item_identifiers"`
}

// Fetcher stages the recent items of the feed for one run. The run id is the
// id of the scheduler event.
type Fetcher struct {
	Source FeedSource
	Store  types.StagingStore
	MaxAge time.Duration
	Logger *slog.Logger
}

func (f *Fetcher) Handle(ctx context.Context, event events.CloudWatchEvent) (out FetchOutput, err error) {
	logger, done := track(ctx, f.Logger, Fetch, "execution_id", event.ID)
	defer func() { done(err) }()

	if err := types.RequireNonBlank("id", event.ID); err != nil {
		return FetchOutput{}, err
	}

	items, err := f.Source.Recent(ctx, f.MaxAge)
	if err != nil {
		return FetchOutput{}, err
	}

	staged := make([]*types.ExecutionItem, 0, len(items))
	ids := make([]types.ItemIdentifier, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, it := range items {
		if _, dup := seen[it.GUID]; dup {
			logger.WarnContext(ctx, "Skipping duplicate guid in feed", "guid", it.GUID)
			continue
		}

		seen[it.GUID] = struct{}{}

		item, err := types.NewExecutionItem(event.ID, it.GUID)
		if err != nil {
			return FetchOutput{}, err
		}

		item.Title = types.StringPtr(it.Title)
		item.Description = types.StringPtr(it.Description)
		item.Link = types.StringPtr(it.Link)
		item.PubDate = types.StringPtr(it.PubDate())

		staged = append(staged, item)
		ids = append(ids, item.Identifier())
	}

	logger.InfoContext(ctx, "Feed items selected", "selected", len(staged), "max_age_hours", int(f.MaxAge/time.Hour))

	if len(staged) == 0 {
		return FetchOutput{ItemIdentifiers: ids}, nil
	}

	result, err := f.Store.CreateBatch(ctx, staged)
	if err != nil {
		var partialErr *types.PartialWriteError
		if errors.As(err, &partialErr) {
			for _, id := range partialErr.Result.Unprocessed {
				logger.ErrorContext(ctx, "Execution item was not staged", "guid", id.GUID)
			}
		}

		return FetchOutput{}, err
	}

	logger.InfoContext(ctx, "Execution items staged", "processed", result.Processed)

	return FetchOutput{ItemIdentifiers: ids}, nil
}
