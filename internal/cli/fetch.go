package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nhle/swipemail/internal/app"
	"github.com/nhle/swipemail/internal/source"
)

func newFetchCmd(opts *globalOptions) *cobra.Command {
	var (
		limit int
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch new mail into the inbox once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := opts.logger(cmd.ErrOrStderr())

			mail := opts.cfg.Mail
			if !mail.Configured() {
				return errors.New("no mailbox configured; run 'swipemail auth login' first")
			}
			if !cmd.Flags().Changed("limit") {
				limit = mail.FetchLimit
			}

			ec, err := app.EmailConfig(mail)
			if err != nil {
				return err
			}

			s, err := opts.openStore()
			if err != nil {
				return err
			}
			defer func() {
				if err := s.Close(); err != nil {
					logger.Error("closing store", slog.Any("error", err))
				}
			}()

			items, err := newMailSource(ec).FetchItems(ctx, source.FetchOptions{
				Limit:      limit,
				UnseenOnly: !all,
			})
			if err != nil {
				return err
			}

			inserted, err := s.UpsertItems(ctx, items)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d messages, %d new\n", len(items), len(inserted))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of messages to fetch")
	cmd.Flags().BoolVar(&all, "all", false, "include messages already seen (last 7 days)")

	return cmd
}
