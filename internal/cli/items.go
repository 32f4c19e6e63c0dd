package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/swipemail/internal/app"
	"github.com/nhle/swipemail/internal/dispatch"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/store"
)

// withBackend runs fn against the configured backend and releases it.
func withBackend(cmd *cobra.Command, opts *globalOptions, fn func(b app.Backend) error) error {
	logger := opts.logger(cmd.ErrOrStderr())
	b, closeFn, err := opts.backend(logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.Error("closing backend", slog.Any("error", err))
		}
	}()
	return fn(b)
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var (
		status  string
		sender  string
		subject string
		since   string
		until   string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.ItemFilter{Sender: sender, Subject: subject, Limit: limit}
			if status != "" {
				st, err := model.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &st
			}
			var err error
			if filter.Since, err = parseTimeFlag("since", since); err != nil {
				return err
			}
			if filter.Until, err = parseTimeFlag("until", until); err != nil {
				return err
			}

			return withBackend(cmd, opts, func(b app.Backend) error {
				items, err := b.ListItems(cmd.Context(), filter)
				if err != nil {
					return err
				}
				printItems(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "inbox", "inbox, later, archived or deleted; empty for all")
	cmd.Flags().StringVar(&sender, "sender", "", "sender name or address contains")
	cmd.Flags().StringVar(&subject, "subject", "", "subject contains")
	cmd.Flags().StringVar(&since, "since", "", "received at or after (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "received at or before (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of messages")

	return cmd
}

func newMarkCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mark <id> <status>",
		Short: "Move a message to inbox, later, archived or deleted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := model.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return withBackend(cmd, opts, func(b app.Backend) error {
				item, err := b.Transition(cmd.Context(), args[0], st)
				if errors.Is(err, dispatch.ErrAlreadyApplied) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already %s\n", item.Subject, item.Status)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s → %s\n", item.Subject, item.Status)
				return nil
			})
		},
	}
}

func newUndoCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <id>",
		Short: "Return a message to the inbox",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(b app.Backend) error {
				item, err := b.Undo(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s → %s\n", item.Subject, item.Status)
				return nil
			})
		},
	}
}

func newStatsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show triage counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(b app.Backend) error {
				st, err := b.Stats(cmd.Context())
				if err != nil {
					return err
				}
				inbox := model.StatusInbox
				pending, err := b.ListItems(cmd.Context(), store.ItemFilter{Status: &inbox})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Processed today: %d\n", st.ProcessedToday)
				fmt.Fprintf(out, "For later:       %d\n", st.ForLater)
				fmt.Fprintf(out, "Archived:        %d\n", st.Archived)
				fmt.Fprintf(out, "Progress:        %.0f%% (%d left)\n", st.Progress(len(pending)), len(pending))
				return nil
			})
		},
	}
}

func newActivityCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "activity",
		Short: "Show recent triage activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, func(b app.Backend) error {
				acts, err := b.Activities(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
				fmt.Fprintln(tw, "WHEN\tACTION\tSUBJECT\tSENDER")
				for _, a := range acts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
						a.CreatedAt.Local().Format(time.DateTime), a.Action, a.Subject, a.Sender)
				}
				return tw.Flush()
			})
		},
	}
}

func printItems(out io.Writer, items []model.Item) {
	tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tRECEIVED\tSTATUS\tPRIORITY\tFROM\tSUBJECT")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			it.ID, it.ReceivedAt.Local().Format(time.DateTime), it.Status, it.Priority, it.Sender, it.Subject)
	}
	_ = tw.Flush()
}

// parseTimeFlag accepts RFC 3339 or a bare date.
func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid --%s %q: want RFC 3339 or YYYY-MM-DD", name, value)
}
