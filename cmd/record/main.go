// Command record is the Lambda function of the record stage.
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

	a, err := app.Load(ctx, config.NeedStorage)
	if err != nil {
		slog.Error("Failed to start", "stage", stage.Record, "error", err)
		os.Exit(1)
	}

	repo, err := a.Repository(ctx)
	if err != nil {
		a.Logger.Error("Failed to open repository", "error", err)
		os.Exit(1)
	}

	h := &stage.Recorder{Store: repo, Logger: a.Logger}

	lambda.Start(h.Handle)
}
