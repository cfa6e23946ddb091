// Command publish is the Lambda function of the publish stage.
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

	a, err := app.Load(ctx, config.NeedStorage | config.NeedBluesky)
	if err != nil {
		slog.Error("Failed to start", "stage", stage.Publish, "error", err)
		os.Exit(1)
	}

	repo, err := a.Repository(ctx)
	if err != nil {
		a.Logger.Error("Failed to open repository", "error", err)
		os.Exit(1)
	}

	h := &stage.Publisher{
		Store:       repo,
		Credentials: a.Credentials(),
		SecretName:  a.Config.BlueskySecretName,
		Poster:      a.Bluesky(),
		Logger:      a.Logger,
	}

	lambda.Start(h.Handle)
}
