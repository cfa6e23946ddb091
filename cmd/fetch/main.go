// Command fetch is the Lambda function of the fetch stage.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/anoopengineer/rss-bluesky-bridge/internal/app"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/config"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/stage"
	"github.com/aws/aws-lambda-go/lambda"
)

func main() {
	ctx := context.Background()

	a, err := app.Load(ctx, config.NeedStorage | config.NeedFeed)
	if err != nil {
		slog.Error("Failed to start", "stage", stage.Fetch, "error", err)
		os.Exit(1)
	}

	repo, err := a.Repository(ctx)
	if err != nil {
		a.Logger.Error("Failed to open repository", "error", err)
		os.Exit(1)
	}

	h := &stage.Fetcher{
		Source: a.FeedSource(),
		Store:  repo,
		MaxAge: a.MaxAge(),
		Logger: a.Logger,
	}

	lambda.Start(h.Handle)
}
