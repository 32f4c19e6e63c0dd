package email

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nhle/swipemail/internal/model"
)

// maxBodyRunes caps the stored body preview.
const maxBodyRunes = 500

// messageToItem converts a parsed IMAP message into an inbox item.
func messageToItem(mailbox string, msg ParsedMessage) model.Item {
	env := msg.Envelope

	sender := strings.TrimSpace(env.FromName)
	if sender == "" {
		sender = env.FromAddr
	}
	if sender == "" {
		sender = "Unknown Sender"
	}

	subject := strings.TrimSpace(env.Subject)
	if subject == "" {
		subject = "No Subject"
	}

	body := msg.TextBody
	if strings.TrimSpace(body) == "" && msg.HTMLBody != "" {
		body = stripHTML(msg.HTMLBody)
	}

	received := env.Date
	if received.IsZero() {
		received = time.Now()
	}

	ext := ExternalID(mailbox, env.UID)

	return model.Item{
		Sender:      sender,
		SenderEmail: env.FromAddr,
		Subject:     subject,
		Body:        truncate(strings.TrimSpace(body), maxBodyRunes),
		Priority:    priorityFrom(msg.Headers),
		ReceivedAt:  received,
		Unread:      !hasFlag(env.Flags, `\Seen`),
		Attachments: len(msg.Attachments),
		HasReply:    hasFlag(env.Flags, `\Answered`),
		Status:      model.StatusInbox,
		ExternalID:  &ext,
	}
}

// priorityFrom derives the priority tag from the message headers.
// X-Priority wins; bulk mail is tagged as marketing.
func priorityFrom(h Headers) string {
	if p := strings.TrimSpace(h.Priority); p != "" {
		switch p[0] {
		case '1':
			return model.PriorityUrgent
		case '2':
			return model.PriorityImportant
		case '4', '5':
			return model.PriorityLow
		}
		switch strings.ToLower(p) {
		case "urgent", "highest":
			return model.PriorityUrgent
		case "high":
			return model.PriorityImportant
		case "low", "lowest":
			return model.PriorityLow
		}
	}

	switch strings.ToLower(strings.TrimSpace(h.Importance)) {
	case "high":
		return model.PriorityImportant
	case "low":
		return model.PriorityLow
	}

	prec := strings.ToLower(strings.TrimSpace(h.Precedence))
	if prec == "bulk" || prec == "list" || strings.TrimSpace(h.ListUnsubscribe) != "" {
		return model.PriorityMarketing
	}

	return model.PriorityNormal
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags from a string and decodes common
// entities, providing a basic plain-text rendering.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
