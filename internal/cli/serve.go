package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/swipemail/internal/api"
	"github.com/nhle/swipemail/internal/app"
	"github.com/nhle/swipemail/internal/rate"
	"github.com/nhle/swipemail/internal/store"
	appsync "github.com/nhle/swipemail/internal/sync"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		addr string
		poll bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := opts.logger(cmd.ErrOrStderr())
			cfg := opts.cfg

			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
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

			var limiter rate.Limiter = rate.Unlimited{}
			if cfg.Server.RateLimitRPS > 0 {
				tb := rate.NewTokenBucket(cfg.Server.RateLimitRPS)
				defer tb.Stop()
				limiter = tb
			}

			if poll {
				p, err := startPoller(ctx, opts, s, logger)
				if err != nil {
					return err
				}
				defer p.Stop()
			}

			srv := api.NewServer(s, opts.newDispatcher(s, logger),
				api.WithLimiter(limiter),
				api.WithLogger(logger),
				api.WithRequestTimeout(cfg.Server.RequestTimeout),
			)
			logger.Info("serving", slog.String("addr", cfg.Server.Addr))
			return srv.ListenAndServe(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&poll, "poll", false, "poll the configured mailbox in the background")

	return cmd
}

// startPoller registers the configured mailbox and drains sync results
// until ctx is done.
func startPoller(ctx context.Context, opts *globalOptions, s store.Store, logger *slog.Logger) (*appsync.Poller, error) {
	mail := opts.cfg.Mail
	if !mail.Configured() {
		return nil, errors.New("no mailbox configured; run 'swipemail auth login' first")
	}
	ec, err := app.EmailConfig(mail)
	if err != nil {
		return nil, err
	}

	p := appsync.New(s, logger)
	p.RegisterSource(mail.Username, newMailSource(ec), appsync.Options{
		Interval:   time.Duration(mail.PollIntervalSec) * time.Second,
		Limit:      mail.FetchLimit,
		UnseenOnly: true,
	})
	p.Start()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case res, ok := <-p.Results():
				if !ok {
					return
				}
				logger.Debug("sync result delivered",
					slog.String("mailbox", res.Name), slog.Int("new", res.NewCount))
			}
		}
	}()
	return p, nil
}
