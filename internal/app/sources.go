package app

import (
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/swipemail/internal/credential"
	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/source"
	"github.com/nhle/swipemail/internal/source/email"
	appsync "github.com/nhle/swipemail/internal/sync"
)

// SourceFactory builds a mailbox source from resolved settings.
type SourceFactory func(cfg email.Config) source.Source

func defaultSourceFactory(cfg email.Config) source.Source {
	return email.NewAdapter(cfg)
}

// sourcesRegisteredMsg is sent when the configured mailbox has been
// registered with the poller.
type sourcesRegisteredMsg struct {
	count int
}

// EmailConfig resolves mail settings into adapter settings: provider
// presets fill in the server, and the password comes from the
// environment, the config, or the keyring.
func EmailConfig(mail model.MailConfig) (email.Config, error) {
	cfg := AdapterConfig(mail)

	password, err := credential.MailPassword(mail.Username, mail.Password)
	if err != nil {
		return email.Config{}, err
	}
	cfg.Password = password
	return cfg, nil
}

// AdapterConfig maps mail settings onto adapter settings, without the
// password.
func AdapterConfig(mail model.MailConfig) email.Config {
	cfg := email.Config{
		Host:           mail.Host,
		Port:           mail.Port,
		Username:       mail.Username,
		TLS:            mail.TLS,
		Mailbox:        mail.Mailbox,
		ArchiveMailbox: mail.ArchiveMailbox,
	}
	if p, ok := email.LookupProvider(mail.Provider); ok && mail.Host == "" {
		cfg.Host = p.Host
		cfg.Port = p.Port
		cfg.TLS = p.TLS
	}
	return cfg
}

// registerSources registers the configured mailbox with the poller.
func (m *Model) registerSources() tea.Cmd {
	p := m.poller
	mail := m.cfg.Mail
	factory := m.sourceFactory
	logger := m.logger

	return func() tea.Msg {
		if p == nil || !mail.Configured() {
			return sourcesRegisteredMsg{count: 0}
		}

		cfg, err := EmailConfig(mail)
		if err != nil {
			logger.Warn("skipping mailbox: credential not found",
				slog.String("user", mail.Username), slog.Any("error", err))
			return sourcesRegisteredMsg{count: 0}
		}

		p.RegisterSource(mail.Username, factory(cfg), appsync.Options{
			Interval:   time.Duration(mail.PollIntervalSec) * time.Second,
			Limit:      mail.FetchLimit,
			UnseenOnly: true,
		})
		return sourcesRegisteredMsg{count: 1}
	}
}
