package cli

import (
	"context"
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/swipemail/internal/app"
	"github.com/nhle/swipemail/internal/logging"
)

func newTUICmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the card stack (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
}

// runTUI runs the terminal UI. Logs go to the configured file so they do
// not corrupt the screen.
func runTUI(ctx context.Context, opts *globalOptions) error {
	f, err := logging.OpenFile(opts.cfg.Log.File)
	if err != nil {
		return err
	}
	defer f.Close()
	logger := opts.logger(f)

	appOpts := app.Options{
		Config:     opts.cfg,
		ConfigPath: opts.configPath,
		Logger:     logger,
		Remote:     opts.server,
	}

	if opts.server != "" {
		appOpts.Backend = opts.remote()
	} else {
		s, err := opts.openStore()
		if err != nil {
			return err
		}
		defer func() {
			if err := s.Close(); err != nil {
				logger.Error("closing store", slog.Any("error", err))
			}
		}()
		appOpts.Backend = app.NewLocalBackend(s, opts.newDispatcher(s, logger))
		appOpts.Store = s
	}

	p := tea.NewProgram(
		app.New(appOpts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
