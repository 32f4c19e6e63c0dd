// Package cli wires the swipemail commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/swipemail/internal/api"
	"github.com/nhle/swipemail/internal/app"
	"github.com/nhle/swipemail/internal/dispatch"
	"github.com/nhle/swipemail/internal/logging"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/source/email"
	"github.com/nhle/swipemail/internal/store"
)

// remoteTimeout bounds a single request to a remote server.
const remoteTimeout = 15 * time.Second

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	dbPath     string
	logLevel   string
	server     string

	cfg *model.AppConfig
}

// NewRootCmd builds the command tree. Running the root command without a
// subcommand opens the terminal UI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:          "swipemail",
		Short:        "Triage your inbox one card at a time",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if opts.dbPath != "" {
				cfg.Database.Path = opts.dbPath
			}
			if opts.logLevel != "" {
				cfg.Log.Level = opts.logLevel
			}
			opts.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "config file")
	flags.StringVar(&opts.dbPath, "db", "", "database path (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.server, "server", "", "use a running swipemail server at this URL instead of the local database")

	cmd.AddCommand(newTUICmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newFetchCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newAuthCmd(opts))
	cmd.AddCommand(newProvidersCmd())
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newMarkCmd(opts))
	cmd.AddCommand(newUndoCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newActivityCmd(opts))

	cmd.SetErr(os.Stderr)
	cmd.SetOut(os.Stdout)

	return cmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) int {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// logger returns a text logger writing to w at the configured level.
func (o *globalOptions) logger(w io.Writer) *slog.Logger {
	return logging.New(w, o.cfg.Log.Level)
}

// openStore opens the configured database.
func (o *globalOptions) openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(o.cfg.Database.Path)
}

// newDispatcher builds a dispatcher over s, mirroring actions to the
// mailbox when enabled.
func (o *globalOptions) newDispatcher(s store.Store, logger *slog.Logger) *dispatch.Dispatcher {
	dopts := []dispatch.Option{dispatch.WithLogger(logger)}

	mail := o.cfg.Mail
	if mail.MirrorActions && mail.Configured() {
		ec, err := app.EmailConfig(mail)
		if err != nil {
			logger.Warn("mailbox mirroring disabled", slog.Any("error", err))
		} else {
			dopts = append(dopts, dispatch.WithMirror(email.NewAdapter(ec)))
		}
	}
	return dispatch.New(s, dopts...)
}

// backend returns a remote client when --server is set, else a local
// backend over the database. The returned close func releases it.
func (o *globalOptions) backend(logger *slog.Logger) (app.Backend, func() error, error) {
	if o.server != "" {
		return o.remote(), func() error { return nil }, nil
	}

	s, err := o.openStore()
	if err != nil {
		return nil, nil, err
	}
	return app.NewLocalBackend(s, o.newDispatcher(s, logger)), s.Close, nil
}

// remote returns a client for the --server URL.
func (o *globalOptions) remote() *api.Client {
	return api.NewClient(o.server, &http.Client{Timeout: remoteTimeout})
}
