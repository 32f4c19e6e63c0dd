package email

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/source"
)

// Config holds the settings for one IMAP mailbox.
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	TLS            bool
	Mailbox        string // defaults to INBOX
	ArchiveMailbox string // preferred archive folder, optional
}

// Adapter implements source.Source for an IMAP mailbox and mirrors triage
// actions back to it.
type Adapter struct {
	imapClient     *IMAPClient
	mailbox        string
	archiveMailbox string
	username       string
}

var _ source.Source = (*Adapter)(nil)

// NewAdapter creates a new email source adapter.
func NewAdapter(cfg Config) *Adapter {
	mailbox := cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &Adapter{
		imapClient: NewIMAPClient(
			cfg.Host, strconv.Itoa(cfg.Port), cfg.Username, cfg.Password, cfg.TLS,
		),
		mailbox:        mailbox,
		archiveMailbox: cfg.ArchiveMailbox,
		username:       cfg.Username,
	}
}

// Type returns the source type identifier for Email.
func (a *Adapter) Type() source.SourceType {
	return source.SourceTypeEmail
}

// ValidateConnection verifies IMAP credentials by connecting,
// authenticating, and selecting the mailbox.
func (a *Adapter) ValidateConnection(
	ctx context.Context,
) (string, error) {
	client, err := a.imapClient.Connect(ctx)
	if err != nil {
		return "", fmt.Errorf("validating email connection: %w", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(a.mailbox, nil).Wait(); err != nil {
		return "", fmt.Errorf("selecting %s: %w", a.mailbox, err)
	}

	return fmt.Sprintf("Connection successful (%s)", a.username), nil
}

// FetchItems retrieves messages from the mailbox and maps them to inbox
// items.
func (a *Adapter) FetchItems(
	ctx context.Context,
	opts source.FetchOptions,
) ([]model.Item, error) {
	messages, err := a.imapClient.FetchMessages(ctx, a.mailbox, opts)
	if err != nil && len(messages) == 0 {
		return nil, fmt.Errorf("fetching email items: %w", err)
	}

	items := make([]model.Item, 0, len(messages))
	for _, msg := range messages {
		items = append(items, messageToItem(a.mailbox, msg))
	}
	return items, nil
}

// Archive moves the message behind externalID to the archive folder.
func (a *Adapter) Archive(ctx context.Context, externalID string) error {
	mailbox, uid, err := parseExternalID(externalID)
	if err != nil {
		return err
	}
	return a.imapClient.MoveToArchive(ctx, mailbox, uid, a.archiveMailbox)
}

// MarkSeen sets the \Seen flag on the message behind externalID.
func (a *Adapter) MarkSeen(ctx context.Context, externalID string) error {
	mailbox, uid, err := parseExternalID(externalID)
	if err != nil {
		return err
	}
	return a.imapClient.SetFlags(ctx, mailbox, uid, []imap.Flag{imap.FlagSeen}, true)
}

// ExternalID builds the stable reference stored on an item: the mailbox
// name and the message UID.
func ExternalID(mailbox string, uid uint32) string {
	return mailbox + ":" + strconv.FormatUint(uint64(uid), 10)
}

// parseExternalID splits a reference built by ExternalID.
func parseExternalID(ref string) (string, uint32, error) {
	i := strings.LastIndex(ref, ":")
	if i <= 0 {
		return "", 0, fmt.Errorf("invalid external id %q", ref)
	}
	uid, err := strconv.ParseUint(ref[i+1:], 10, 32)
	if err != nil || uid == 0 {
		return "", 0, fmt.Errorf("invalid email UID in %q", ref)
	}
	return ref[:i], uint32(uid), nil
}
