package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anoopengineer/rss-bluesky-bridge/internal/config"
	"github.com/anoopengineer/rss-bluesky-bridge/truncate"
	"github.com/anoopengineer/rss-bluesky-bridge/types"
	"github.com/spf13/cobra"
)

func newTruncateCmd(c *cli) *cobra.Command {
	var maxGraphemes int

	cmd := &cobra.Command{
		Use:   "truncate TEXT...",
		Short: "Print TEXT cut to a grapheme budget on a word boundary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(c.out, truncate.ToWord(strings.Join(args, " "), maxGraphemes))
			return err
		},
	}

	// No profile is needed.
	cmd.PersistentPreRunE = func(*cobra.Command, []string) error { return nil }

	cmd.Flags().IntVar(&maxGraphemes, "max", 300, "maximum number of graphemes")

	return cmd
}

func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check GUID",
		Short: "Report whether a feed item has been processed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), config.NeedStorage, func(b backend) error {
				repo, err := b.Repository(cmd.Context())
				if err != nil {
					return err
				}

				exists, err := repo.Exists(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				return c.printJSON(map[string]any{"guid": args[0], "processed": exists})
			})
		},
	}
}

func newMarkProcessedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-processed GUID",
		Short: "Record a feed item as processed so the pipeline skips it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), config.NeedStorage, func(b backend) error {
				repo, err := b.Repository(cmd.Context())
				if err != nil {
					return err
				}

				if err := repo.Create(cmd.Context(), args[0]); err != nil {
					return err
				}

				_, err = fmt.Fprintf(c.out, "marked %s as processed\n", args[0])

				return err
			})
		},
	}
}

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show EXECUTION_ID GUID",
		Short: "Print a staged execution item as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), config.NeedStorage, func(b backend) error {
				repo, err := b.Repository(cmd.Context())
				if err != nil {
					return err
				}

				item, err := repo.GetOne(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}

				return c.printJSON(item)
			})
		},
	}
}

type purgeOutput struct {
	ExecutionID string                 `json:"execution_id"`
	Deleted     int                    `json:"deleted"`
	Unprocessed []types.ItemIdentifier `json:"unprocessed"`
}

func newPurgeRunCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-run EXECUTION_ID",
		Short: "Delete every staged item of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd.Context(), config.NeedStorage, func(b backend) error {
				repo, err := b.Repository(cmd.Context())
				if err != nil {
					return err
				}

				result, err := repo.DeleteByRun(cmd.Context(), args[0])

				out := purgeOutput{ExecutionID: args[0], Deleted: result.Processed, Unprocessed: result.Unprocessed}
				if out.Unprocessed == nil {
					out.Unprocessed = []types.ItemIdentifier{}
				}

				if printErr := c.printJSON(out); printErr != nil {
					return printErr
				}

				return err
			})
		},
	}
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
