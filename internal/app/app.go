// Package app bootstraps a pipeline process. It parses the environment once,
// builds the logger and the AWS config, and hands out the collaborators the
// stages are wired to.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/dynamodb"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/bluesky"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/config"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/feed"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/logging"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/secrets"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/summarize"
	"github.com/anoopengineer/rss-bluesky-bridge/postgres"
	"github.com/anoopengineer/rss-bluesky-bridge/sqs"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// App holds the process wide configuration and the lazily built
// collaborators. It is not safe for concurrent use while building.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	AWS    aws.Config

	// SkipSchemaValidation skips the table checks in Repository. Stages set
	// it to keep cold starts short; the schema is owned by the deployment.
	SkipSchemaValidation bool

	repo    types.Repository
	queue   *sqs.Client
	closers []func(context.Context) error
}

// Load parses the environment for needs, builds the JSON logger and loads the
// default AWS config.
func Load(ctx context.Context, needs config.Needs) (*App, error) {
	cfg, err := config.FromEnv(needs)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cfg.LogLevel)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return New(cfg, logger, awsCfg), nil
}

// New builds an App from already parsed parts and logs the configuration
// warnings.
func New(cfg *config.Config, logger *slog.Logger, awsCfg aws.Config) *App {
	for _, w := range cfg.Warnings {
		logger.Warn("Configuration value replaced by default", "warning", w)
	}

	return &App{
		Config:               cfg,
		Logger:               logger,
		AWS:                  awsCfg,
		SkipSchemaValidation: true,
	}
}

// Repository connects the configured storage backend on first use.
func (a *App) Repository(ctx context.Context) (types.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}

	switch a.Config.StorageBackend {
	case config.BackendDynamoDB:
		client := dynamodb.New(&a.AWS, a.Config.TableName)

		if err := client.Connect(); err != nil {
			return nil, fmt.Errorf("failed to connect to DynamoDB: %w", err)
		}

		if err := client.Init(ctx, a.SkipSchemaValidation); err != nil {
			return nil, err
		}

		a.repo = client
	case config.BackendPostgres:
		client := postgres.New(
			postgres.WithConnectionString(a.Config.PostgresURL),
			postgres.WithLogger(logging.Adapt(a.Logger)),
		)

		if err := client.Connect(ctx); err != nil {
			return nil, err
		}

		if err := client.Init(ctx, a.SkipSchemaValidation); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}

		a.closers = append(a.closers, client.Close)
		a.repo = client
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", a.Config.StorageBackend)
	}

	a.Logger.Info("Repository ready", "backend", a.Config.StorageBackend)

	return a.repo, nil
}

// FailureQueue returns the failure report queue, or nil when
// FAILURE_QUEUE_NAME is unset. The queue's lease keeper runs until ctx is
// cancelled.
func (a *App) FailureQueue(ctx context.Context, opts ...sqs.Option) (*sqs.Client, error) {
	if a.queue != nil || a.Config.FailureQueueName == "" {
		return a.queue, nil
	}

	queue, err := sqs.New(&a.AWS, a.Config.FailureQueueName, logging.Adapt(a.Logger), opts...).Init(ctx)
	if err != nil {
		return nil, err
	}

	a.queue = queue

	return a.queue, nil
}

func (a *App) FeedSource() *feed.Source {
	return feed.NewSource(a.Config.FeedURL)
}

// MaxAge is the feed item age limit.
func (a *App) MaxAge() time.Duration {
	return time.Duration(a.Config.MaxAgeHours) * time.Hour
}

func (a *App) Summarizer() *summarize.Summarizer {
	return summarize.NewFromConfig(a.AWS, a.Config.AIModelID, a.Config.AISummaryMaxGraphemes)
}

func (a *App) Credentials() *secrets.Store {
	return secrets.NewFromConfig(a.AWS)
}

func (a *App) Bluesky() *bluesky.Client {
	return bluesky.New(a.Config.BlueskyHost)
}

// Close releases the connections opened by the App.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}

	a.closers = nil
	a.repo = nil

	return errors.Join(errs...)
}
