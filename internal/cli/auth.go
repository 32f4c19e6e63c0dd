package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/swipemail/internal/app"
	"github.com/nhle/swipemail/internal/credential"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/source"
	"github.com/nhle/swipemail/internal/source/email"
)

// verifyTimeout bounds a connection check against the mail server.
const verifyTimeout = 30 * time.Second

// Overridden in tests.
var (
	newMailSource = func(cfg email.Config) source.Source { return email.NewAdapter(cfg) }
	setSecret     = credential.Set
	deleteSecret  = credential.Delete
	promptSecret  = promptPassword
)

func newAuthCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage mailbox credentials",
	}
	cmd.AddCommand(newAuthLoginCmd(opts))
	cmd.AddCommand(newAuthLogoutCmd(opts))
	cmd.AddCommand(newAuthTestCmd(opts))
	return cmd
}

type loginOptions struct {
	provider   string
	host       string
	port       int
	tls        bool
	username   string
	mailbox    string
	password   string
	skipVerify bool
}

func newAuthLoginCmd(opts *globalOptions) *cobra.Command {
	lo := loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect an IMAP mailbox and store its password in the keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			mail, err := lo.apply(cmd, opts.cfg.Mail)
			if err != nil {
				return err
			}

			password := lo.password
			if password == "" {
				if password, err = promptSecret(mail.Username); err != nil {
					return err
				}
			}
			if password == "" {
				return errors.New("password is required")
			}

			out := cmd.OutOrStdout()
			if !lo.skipVerify {
				ec := app.AdapterConfig(mail)
				ec.Password = password
				msg, err := verify(cmd.Context(), newMailSource(ec))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, msg)
			}

			if err := setSecret(credential.MailKey(mail.Username), password); err != nil {
				return fmt.Errorf("storing password: %w", err)
			}
			cfg := *opts.cfg
			cfg.Mail = mail
			if err := model.SaveConfig(opts.configPath, &cfg); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %s to %s\n", mail.Username, opts.configPath)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&lo.provider, "provider", "", "preset: "+strings.Join(email.ProviderNames(), ", "))
	f.StringVar(&lo.host, "host", "", "IMAP host (overrides the preset)")
	f.IntVar(&lo.port, "port", 993, "IMAP port")
	f.BoolVar(&lo.tls, "tls", true, "use implicit TLS")
	f.StringVar(&lo.username, "username", "", "login, usually the email address")
	f.StringVar(&lo.mailbox, "mailbox", "", "mailbox to triage (default INBOX)")
	f.StringVar(&lo.password, "password", "", "password or app password; prompted when empty")
	f.BoolVar(&lo.skipVerify, "skip-verify", false, "store credentials without connecting first")

	return cmd
}

// apply merges the flags that were set onto current.
func (lo loginOptions) apply(cmd *cobra.Command, current model.MailConfig) (model.MailConfig, error) {
	mail := current
	flags := cmd.Flags()

	if flags.Changed("provider") {
		if _, ok := email.LookupProvider(lo.provider); !ok {
			return mail, fmt.Errorf("unknown provider %q (want one of %s)",
				lo.provider, strings.Join(email.ProviderNames(), ", "))
		}
		mail.Provider = strings.ToLower(strings.TrimSpace(lo.provider))
		mail.Host = ""
	}
	if flags.Changed("host") {
		mail.Host = lo.host
		mail.Port = lo.port
		mail.TLS = lo.tls
	} else {
		if flags.Changed("port") {
			mail.Port = lo.port
		}
		if flags.Changed("tls") {
			mail.TLS = lo.tls
		}
	}
	if flags.Changed("username") {
		mail.Username = strings.TrimSpace(lo.username)
	}
	if flags.Changed("mailbox") {
		mail.Mailbox = lo.mailbox
	}
	mail.Password = ""

	if mail.Username == "" {
		return mail, errors.New("--username is required")
	}
	if !mail.Configured() {
		return mail, errors.New("--provider or --host is required")
	}
	return mail, nil
}

func newAuthLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored mailbox password",
		RunE: func(cmd *cobra.Command, args []string) error {
			user := opts.cfg.Mail.Username
			if user == "" {
				return errors.New("no mailbox configured")
			}
			if err := deleteSecret(credential.MailKey(user)); err != nil {
				return fmt.Errorf("removing password: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed password for %s\n", user)
			return nil
		},
	}
}

func newAuthTestCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that the configured mailbox accepts the stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			mail := opts.cfg.Mail
			if !mail.Configured() {
				return errors.New("no mailbox configured; run 'swipemail auth login' first")
			}
			ec, err := app.EmailConfig(mail)
			if err != nil {
				return err
			}
			msg, err := verify(cmd.Context(), newMailSource(ec))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func verify(ctx context.Context, src source.Source) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	return src.ValidateConnection(ctx)
}

func promptPassword(username string) (string, error) {
	var pw string
	err := huh.NewInput().
		Title("Password for " + username).
		EchoMode(huh.EchoModePassword).
		Value(&pw).
		Run()
	if err != nil {
		return "", err
	}
	return pw, nil
}
