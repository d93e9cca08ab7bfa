// Package notify delivers user-facing messages about scheduled actions.
package notify

import "context"

// Message is one notification about an executed or skipped scheduled action.
type Message struct {
	CommunityID int64
	PersonID    int64
	ChannelID   *int64 // fallback channel when direct delivery fails
	Text        string
}

// Notifier delivers messages to people. Delivery is best effort; the caller
// treats errors as non-fatal.
type Notifier interface {
	Send(ctx context.Context, m Message) error
}

// Nop discards all notifications. Used when no chat transport is wired.
type Nop struct{}

func (Nop) Send(context.Context, Message) error { return nil }
