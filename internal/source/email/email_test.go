package email

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/swipemail/internal/model"
)

const multipartMessage = "From: Sarah Chen <sarah@company.com>\r\n" +
	"To: me@example.com\r\n" +
	"Subject: Q4 Planning\r\n" +
	"X-Priority: 1 (Highest)\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Agenda for Thursday.\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Agenda</p>\r\n" +
	"--XYZ\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"deck.pdf\"\r\n" +
	"\r\n" +
	"PDFDATA\r\n" +
	"--XYZ--\r\n"

func TestParseMessageMultipart(t *testing.T) {
	headers, text, html, atts := parseMessage([]byte(multipartMessage))

	assert.Equal(t, "1 (Highest)", headers.Priority)
	assert.Equal(t, "Agenda for Thursday.", strings.TrimSpace(text))
	assert.Contains(t, html, "<p>Agenda</p>")
	require.Len(t, atts, 1)
	assert.Equal(t, "deck.pdf", atts[0].Filename)
	assert.Equal(t, "application/pdf", atts[0].MIMEType)
}

func TestParseMessagePlain(t *testing.T) {
	raw := "From: a@b.c\r\nSubject: hi\r\nList-Unsubscribe: <mailto:x@y.z>\r\n\r\nhello there\r\n"
	headers, text, html, atts := parseMessage([]byte(raw))

	assert.Equal(t, "<mailto:x@y.z>", headers.ListUnsubscribe)
	assert.Equal(t, "hello there", strings.TrimSpace(text))
	assert.Empty(t, html)
	assert.Empty(t, atts)
}

func TestEnvelopeFromBuffer(t *testing.T) {
	date := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	buf := &imapclient.FetchMessageBuffer{
		UID: 42,
		Envelope: &imap.Envelope{
			Subject:   "Hello",
			MessageID: "abc@host",
			Date:      date,
			From:      []imap.Address{{Name: "Mike Torres", Mailbox: "mike", Host: "design.co"}},
		},
		Flags: []imap.Flag{imap.FlagSeen, imap.FlagAnswered},
	}

	env := envelopeFromBuffer(buf)
	assert.Equal(t, uint32(42), env.UID)
	assert.Equal(t, "Mike Torres", env.FromName)
	assert.Equal(t, "mike@design.co", env.FromAddr)
	assert.Equal(t, date, env.Date)
	assert.Equal(t, []string{`\Seen`, `\Answered`}, env.Flags)
}

func TestMessageToItem(t *testing.T) {
	long := strings.Repeat("é", 600)
	msg := ParsedMessage{
		Envelope: Envelope{
			UID:      7,
			Subject:  "  Launch  ",
			FromName: "",
			FromAddr: "noreply@github.com",
			Date:     time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
			Flags:    []string{`\Answered`},
		},
		Headers:     Headers{Priority: "2"},
		TextBody:    long,
		Attachments: []Attachment{{Filename: "a"}, {Filename: "b"}},
	}

	it := messageToItem("INBOX", msg)
	assert.Equal(t, "noreply@github.com", it.Sender)
	assert.Equal(t, "noreply@github.com", it.SenderEmail)
	assert.Equal(t, "Launch", it.Subject)
	assert.Equal(t, model.PriorityImportant, it.Priority)
	assert.Equal(t, 500, len([]rune(it.Body)))
	assert.True(t, it.Unread)
	assert.True(t, it.HasReply)
	assert.Equal(t, 2, it.Attachments)
	assert.Equal(t, model.StatusInbox, it.Status)
	require.NotNil(t, it.ExternalID)
	assert.Equal(t, "INBOX:7", *it.ExternalID)
}

func TestMessageToItemFallbacks(t *testing.T) {
	it := messageToItem("INBOX", ParsedMessage{
		Envelope: Envelope{UID: 1, Flags: []string{`\Seen`}},
		HTMLBody: "<div>Hi &amp; welcome</div><br>bye",
	})
	assert.Equal(t, "Unknown Sender", it.Sender)
	assert.Equal(t, "No Subject", it.Subject)
	assert.Equal(t, "Hi & welcome\n\nbye", it.Body)
	assert.False(t, it.Unread)
	assert.False(t, it.ReceivedAt.IsZero())
}

func TestPriorityFrom(t *testing.T) {
	tests := []struct {
		name string
		h    Headers
		want string
	}{
		{"none", Headers{}, model.PriorityNormal},
		{"highest", Headers{Priority: "1 (Highest)"}, model.PriorityUrgent},
		{"high", Headers{Priority: "2 (High)"}, model.PriorityImportant},
		{"normal", Headers{Priority: "3"}, model.PriorityNormal},
		{"lowest", Headers{Priority: "5"}, model.PriorityLow},
		{"word", Headers{Priority: "Urgent"}, model.PriorityUrgent},
		{"importance", Headers{Importance: "High"}, model.PriorityImportant},
		{"bulk", Headers{Precedence: "bulk"}, model.PriorityMarketing},
		{"unsubscribe", Headers{ListUnsubscribe: "<https://x>"}, model.PriorityMarketing},
		{"x-priority beats bulk", Headers{Priority: "1", Precedence: "bulk"}, model.PriorityUrgent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, priorityFrom(tt.h))
		})
	}
}

func TestExternalIDRoundTrip(t *testing.T) {
	mailbox, uid, err := parseExternalID(ExternalID("Work:Clients", 99))
	require.NoError(t, err)
	assert.Equal(t, "Work:Clients", mailbox)
	assert.Equal(t, uint32(99), uid)

	for _, bad := range []string{"", "INBOX", ":5", "INBOX:x", "INBOX:0"} {
		_, _, err := parseExternalID(bad)
		assert.Error(t, err, bad)
	}
}

func TestArchiveFolders(t *testing.T) {
	assert.Equal(t, "Archive", archiveFolders("")[0])

	got := archiveFolders("[Gmail]/All Mail")
	assert.Equal(t, "[Gmail]/All Mail", got[0])
	assert.Len(t, got, 4)
}

func TestProviders(t *testing.T) {
	assert.Equal(t, []string{"gmail", "icloud", "outlook", "yahoo"}, ProviderNames())

	p, ok := LookupProvider(" Gmail ")
	require.True(t, ok)
	assert.Equal(t, Provider{Host: "imap.gmail.com", Port: 993, TLS: true}, p)

	_, ok = LookupProvider("aol")
	assert.False(t, ok)

	all := Providers()
	delete(all, "gmail")
	_, ok = LookupProvider("gmail")
	assert.True(t, ok, "Providers returns a copy")
}
