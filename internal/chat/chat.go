// Package chat holds the channel-facing side: the rate-paced command issuer
// for bulk ban and unban runs, and the watcher that screens live messages
// against the filter rules.
package chat

import "time"

// Message is one live chat line as seen by the watcher.
type Message struct {
	Channel string
	Author  string
	Content string
	At      time.Time
}

// Sender issues moderation commands against a channel. Implementations sit
// on whatever transport the deployment uses; bulk tooling and the filter
// enforcer only see this.
type Sender interface {
	Ban(channel, user, reason string) error
	Unban(channel, user string) error
	Timeout(channel, user string, d time.Duration, reason string) error
	Delete(channel, messageID string) error
}
