package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anoopengineer/rss-bluesky-bridge/internal/config"
	"github.com/anoopengineer/rss-bluesky-bridge/sqs"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// replayLine is printed once per received message.
type replayLine struct {
	MessageID string               `json:"message_id"`
	Report    *sqs.FailureReport   `json:"report,omitempty"`
	Item      *types.ExecutionItem `json:"item,omitempty"`
	Error     string               `json:"error,omitempty"`
	Acked     bool                 `json:"acked"`
}

type replayer struct {
	repo   types.StagingStore
	dryRun bool

	mu  sync.Mutex
	enc *json.Encoder
}

func newReplayFailuresCmd(c *cli) *cobra.Command {
	var (
		duration time.Duration
		workers  int
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "replay-failures",
		Short: "Drain the failure queue and print each report with its staged item",
		Long: `replay-failures reads the failure queue for --duration and prints one JSON
line per message: the failure report and, when it is still staged, the
execution item it refers to. Handled messages are deleted from the queue
unless --dry-run is set. Malformed messages are always left on the queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if workers < 1 {
				return fmt.Errorf("--workers must be at least 1, got %d", workers)
			}

			return c.withBackend(cmd.Context(), config.NeedStorage|config.NeedFailureQueue, func(b backend) error {
				repo, err := b.Repository(cmd.Context())
				if err != nil {
					return err
				}

				ctx, cancel := context.WithTimeout(cmd.Context(), duration)
				defer cancel()

				queue, err := b.FailureQueue(ctx)
				if err != nil {
					return err
				}

				r := &replayer{repo: repo, dryRun: dryRun, enc: json.NewEncoder(c.out)}

				return r.run(ctx, queue, workers)
			})
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "how long to read the queue")
	cmd.Flags().IntVar(&workers, "workers", 4, "number of messages handled concurrently")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print messages without deleting them")

	return cmd
}

// run receives until ctx is done and handles messages on workers goroutines.
func (r *replayer) run(ctx context.Context, queue failureSource, workers int) error {
	g, gctx := errgroup.WithContext(ctx)

	msgCh := make(chan *sqs.Message, workers)

	g.Go(func() error {
		err := queue.Receive(gctx, msgCh)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	})

	for range workers {
		g.Go(func() error {
			for msg := range msgCh {
				if err := r.handle(ctx, msg); err != nil {
					return err
				}
			}

			return nil
		})
	}

	return g.Wait()
}

// handle prints one message and settles it. Only a failed write to the
// output is returned, which stops the replay.
func (r *replayer) handle(ctx context.Context, msg *sqs.Message) error {
	line := replayLine{MessageID: msg.MessageID}

	report, err := msg.Report()
	if err != nil {
		line.Error = err.Error()
		msg.Nack()

		return r.print(line)
	}

	line.Report = report

	item, err := r.repo.GetOne(context.WithoutCancel(ctx), report.ExecutionID, report.GUID)

	switch {
	case err == nil:
		line.Item = item
	case types.IsNotFound(err):
	default:
		line.Error = err.Error()
	}

	if r.dryRun || line.Error != "" {
		msg.Nack()
	} else {
		msg.Ack()
		line.Acked = true
	}

	return r.print(line)
}

func (r *replayer) print(line replayLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.enc.Encode(line)
}
