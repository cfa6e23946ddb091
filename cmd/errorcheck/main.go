// Command errorcheck is the Lambda function of the error-check stage.
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

	a, err := app.Load(ctx, config.NeedFailureQueue)
	if err != nil {
		slog.Error("Failed to start", "stage", stage.ErrorCheck, "error", err)
		os.Exit(1)
	}

	h := &stage.ErrorChecker{Logger: a.Logger}

	queue, err := a.FailureQueue(ctx)
	if err != nil {
		a.Logger.Error("Failed to open failure queue", "error", err)
		os.Exit(1)
	}

	// A nil *sqs.Client must not end up in the interface.
	if queue != nil {
		h.Queue = queue
	}

	lambda.Start(h.Handle)
}
