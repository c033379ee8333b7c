// Package notify delivers the run summary to push services.
package notify

import (
	"context"
	"io"

	"sjsage522/autoread/logger"

	"go.uber.org/multierr"
)

const (
	DefaultTitle    = "LINUX DO"
	DefaultPriority = 1
)

// Channel is one push destination. Send never panics and reports delivery.
type Channel interface {
	Name() string
	Send(ctx context.Context, message string, opts ...SendOption) bool
}

// SendOptions are per-message settings
type SendOptions struct {
	Title    string
	Priority int
}

// SendOption changes SendOptions
type SendOption func(*SendOptions)

// WithTitle sets the message title. Empty keeps the default.
func WithTitle(title string) SendOption {
	return func(o *SendOptions) {
		if title != "" {
			o.Title = title
		}
	}
}

// WithPriority sets the message priority
func WithPriority(priority int) SendOption {
	return func(o *SendOptions) {
		o.Priority = priority
	}
}

func buildOptions(opts []SendOption) SendOptions {
	o := SendOptions{Title: DefaultTitle, Priority: DefaultPriority}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Manager fans a message out to every registered channel
type Manager struct {
	channels []Channel
	closers  []io.Closer
	log      *logger.Logger
}

// NewManager returns a Manager with channels in delivery order
func NewManager(channels ...Channel) *Manager {
	return &Manager{
		channels: channels,
		log:      logger.For("notify"),
	}
}

// Register appends a channel
func (m *Manager) Register(ch Channel) {
	m.channels = append(m.channels, ch)
}

// Len returns the number of channels
func (m *Manager) Len() int {
	return len(m.channels)
}

// Names lists the channels in delivery order
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}

// SendAll sends message through every channel once, in registration order.
// A failing channel does not stop the others. The result is keyed by the
// channel's position.
func (m *Manager) SendAll(ctx context.Context, message string, opts ...SendOption) map[int]bool {
	results := make(map[int]bool, len(m.channels))
	for i, ch := range m.channels {
		ok := ch.Send(ctx, message, opts...)
		results[i] = ok
		m.log.Debug().Str("channel", ch.Name()).Bool("delivered", ok).Msg("Notification sent")
	}
	if len(m.channels) == 0 {
		m.log.Info().Msg("No notification channel configured")
	}
	return results
}

// Close releases resources owned by the channels
func (m *Manager) Close() error {
	var err error
	for _, c := range m.closers {
		err = multierr.Append(err, c.Close())
	}
	m.closers = nil
	return err
}

func (m *Manager) own(c io.Closer) {
	m.closers = append(m.closers, c)
}
