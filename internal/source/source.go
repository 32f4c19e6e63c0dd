package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/swipemail/internal/model"
)

// AuthError indicates that authentication has failed for a mailbox.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// SourceType identifies the kind of mailbox integration.
type SourceType string

const (
	SourceTypeEmail SourceType = "email"
)

// FetchOptions controls what a fetch returns.
type FetchOptions struct {
	// Limit caps the number of messages, newest kept. Zero means no cap.
	Limit int

	// UnseenOnly restricts the fetch to messages without the \Seen flag.
	UnseenOnly bool
}

// Source defines the contract for a mailbox that feeds the triage queue.
type Source interface {
	// Type returns the source type identifier.
	Type() SourceType

	// ValidateConnection verifies credentials and connectivity.
	// Returns a human-readable status message on success.
	ValidateConnection(ctx context.Context) (string, error)

	// FetchItems retrieves messages mapped to inbox items. Each item
	// carries an external ID that is stable across fetches.
	FetchItems(ctx context.Context, opts FetchOptions) ([]model.Item, error)
}
