package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/swipemail/internal/source"
)

// recentWindow bounds a full (not unseen-only) fetch.
const recentWindow = 7 * 24 * time.Hour

// IMAPClient wraps go-imap v2 for connecting to and querying IMAP servers.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	host, port, username, password string, tls bool,
) *IMAPClient {
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout on the returned client.
func (c *IMAPClient) Connect(
	_ context.Context,
) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &source.AuthError{
			SourceType: source.SourceTypeEmail,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, nil
}

// FetchMessages selects mailbox and returns parsed messages, oldest
// first. Bodies are fetched with PEEK so the \Seen flag is untouched.
func (c *IMAPClient) FetchMessages(
	ctx context.Context, mailbox string, opts source.FetchOptions,
) ([]ParsedMessage, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	criteria := &imap.SearchCriteria{
		Since: time.Now().Add(-recentWindow),
	}
	if opts.UnseenOnly {
		criteria = &imap.SearchCriteria{
			NotFlag: []imap.Flag{imap.FlagSeen},
		}
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// Keep the most recent UIDs.
	if opts.Limit > 0 && len(uids) > opts.Limit {
		uids = uids[len(uids)-opts.Limit:]
	}

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var messages []ParsedMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		parsed := ParsedMessage{Envelope: envelopeFromBuffer(buf)}
		if raw := buf.FindBodySection(bodySection); raw != nil {
			parsed.Headers, parsed.TextBody, parsed.HTMLBody, parsed.Attachments = parseMessage(raw)
		}
		messages = append(messages, parsed)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching messages: %w", err)
	}

	return messages, nil
}

// SetFlags connects to IMAP and modifies flags on a message.
// If add is true, the flags are added; otherwise they are removed.
func (c *IMAPClient) SetFlags(
	ctx context.Context,
	mailbox string,
	uid uint32,
	flags []imap.Flag,
	add bool,
) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	op := imap.StoreFlagsAdd
	if !add {
		op = imap.StoreFlagsDel
	}

	storeCmd := client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  flags,
	}, nil)

	return storeCmd.Close()
}

// MoveToArchive connects to IMAP and moves the message out of mailbox.
// The preferred folder is tried first, then common archive folder names.
func (c *IMAPClient) MoveToArchive(
	ctx context.Context, mailbox string, uid uint32, preferred string,
) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))

	var lastErr error
	for _, folder := range archiveFolders(preferred) {
		if _, err := client.Move(uidSet, folder).Wait(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("moving UID %d to archive: %w", uid, lastErr)
}

// archiveFolders lists archive candidates, preferred first, without
// duplicates.
func archiveFolders(preferred string) []string {
	folders := []string{"Archive", "[Gmail]/All Mail", "Archives", "INBOX.Archive"}
	preferred = strings.TrimSpace(preferred)
	if preferred == "" {
		return folders
	}
	out := []string{preferred}
	for _, f := range folders {
		if f != preferred {
			out = append(out, f)
		}
	}
	return out
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			env.FromName = from.Name
			env.FromAddr = from.Addr()
		}
	}

	for _, flag := range buf.Flags {
		env.Flags = append(env.Flags, string(flag))
	}

	return env
}

// parseMessage parses a raw RFC 2822 message using go-message and
// extracts the mapping headers, the text and HTML bodies, and attachment
// metadata.
func parseMessage(raw []byte) (
	headers Headers, textBody string, htmlBody string, attachments []Attachment,
) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Not MIME; treat the whole thing as plain text.
		return Headers{}, string(raw), "", nil
	}
	defer mr.Close()

	headers = Headers{
		Priority:        mr.Header.Get("X-Priority"),
		Importance:      mr.Header.Get("Importance"),
		Precedence:      mr.Header.Get("Precedence"),
		ListUnsubscribe: mr.Header.Get("List-Unsubscribe"),
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case contentType == "" || strings.HasPrefix(contentType, "text/plain"):
				if textBody == "" {
					textBody = string(body)
				}
			case strings.HasPrefix(contentType, "text/html"):
				if htmlBody == "" {
					htmlBody = string(body)
				}
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			// Read to get size without storing content
			n, readErr := io.Copy(io.Discard, part.Body)
			if readErr != nil {
				continue
			}

			attachments = append(attachments, Attachment{
				Filename: filename,
				Size:     n,
				MIMEType: contentType,
			})
		}
	}

	return headers, textBody, htmlBody, attachments
}
