// Package publisher appends run reports to a message stream.
package publisher

import "context"

// Publisher represents a service for publishing messages
type Publisher interface {
	// Publish appends message under key to the stream
	Publish(ctx context.Context, key string, message []byte) error

	// Trim trims the stream to the configured maximum length
	Trim(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}
