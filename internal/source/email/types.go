package email

import "time"

// Envelope holds the parsed envelope data from an IMAP message.
type Envelope struct {
	MessageID string
	Subject   string
	FromName  string
	FromAddr  string
	Date      time.Time
	Flags     []string // \Seen, \Flagged, \Answered, \Deleted
	UID       uint32
}

// ParsedMessage holds the full parsed content of an email message.
type ParsedMessage struct {
	Envelope    Envelope
	Headers     Headers
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Headers holds the top-level header fields that drive item mapping.
type Headers struct {
	Priority        string // X-Priority
	Importance      string // Importance
	Precedence      string // Precedence
	ListUnsubscribe string // List-Unsubscribe
}

// Attachment holds metadata about a message attachment.
type Attachment struct {
	Filename string
	Size     int64
	MIMEType string
}
