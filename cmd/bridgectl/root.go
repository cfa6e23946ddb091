package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/anoopengineer/rss-bluesky-bridge/internal/app"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/config"
	"github.com/anoopengineer/rss-bluesky-bridge/internal/logging"
	"github.com/anoopengineer/rss-bluesky-bridge/sqs"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
)

// backend is what the commands need from the bootstrapped process.
type backend interface {
	Repository(ctx context.Context) (types.Repository, error)
	FailureQueue(ctx context.Context) (failureSource, error)
	Close(ctx context.Context) error
}

// failureSource delivers failure queue messages until ctx is done.
type failureSource interface {
	Receive(ctx context.Context, sinkCh chan<- *sqs.Message) error
}

type opener func(ctx context.Context, profile Profile, needs config.Needs) (backend, error)

type cli struct {
	configPath string
	flags      Profile
	profile    Profile
	out        io.Writer
	errOut     io.Writer
	open       opener
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bridgectl",
		Short: "Operator tool for the RSS to Bluesky pipeline",
		Long: `bridgectl inspects and repairs the state of the RSS to Bluesky pipeline:
the dedup records, the staged items of a run and the failure queue.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			explicit := c.configPath != ""

			path := c.configPath
			if !explicit {
				path = defaultProfilePath()
			}

			p, err := loadProfile(path, explicit)
			if err != nil {
				return err
			}

			c.profile = p.merge(c.flags)

			return nil
		},
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetOut(c.out)
	rootCmd.SetErr(c.errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "config file path (default is $HOME/.bridgectl.yaml)")
	flags.StringVar(&c.flags.StorageBackend, "backend", "", "storage backend: dynamodb or postgres")
	flags.StringVar(&c.flags.TableName, "table", "", "DynamoDB table name")
	flags.StringVar(&c.flags.PostgresURL, "postgres-url", "", "PostgreSQL connection URL")
	flags.StringVar(&c.flags.FailureQueueName, "queue", "", "failure queue name (FIFO)")
	flags.StringVar(&c.flags.LogLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newTruncateCmd(c),
		newCheckCmd(c),
		newMarkProcessedCmd(c),
		newShowCmd(c),
		newPurgeRunCmd(c),
		newReplayFailuresCmd(c),
	)

	return rootCmd
}

// withBackend opens the backend for the current profile, runs fn and closes
// it again.
func (c *cli) withBackend(ctx context.Context, needs config.Needs, fn func(backend) error) (err error) {
	b, err := c.open(ctx, c.profile, needs)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, b.Close(ctx))
	}()

	return fn(b)
}

// appBackend opens an app.App for the profile. Logs go to stderr so that
// stdout only carries command output.
func appBackend(ctx context.Context, profile Profile, needs config.Needs) (backend, error) {
	cfg, err := profile.config(needs)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	a := app.New(cfg, logging.NewWithWriter(os.Stderr, cfg.LogLevel), awsCfg)
	a.SkipSchemaValidation = false

	return &appAdapter{App: a}, nil
}

type appAdapter struct {
	*app.App
}

func (a *appAdapter) FailureQueue(ctx context.Context) (failureSource, error) {
	if a.Config.FailureQueueName == "" {
		return nil, errors.New("no failure queue configured (set failure_queue_name or --queue)")
	}

	return a.App.FailureQueue(ctx)
}
