package notify

import (
	"context"
	"encoding/json"
	"time"

	"sjsage522/autoread/logger"
	"sjsage522/autoread/services/publisher"
)

// ReportKey is the stream field holding the encoded report
const ReportKey = "b64_report"

// Report is the payload appended to the stream
type Report struct {
	Title    string    `json:"title"`
	Message  string    `json:"message"`
	Priority int       `json:"priority"`
	SentAt   time.Time `json:"sent_at"`
}

// Stream appends notifications to a message stream
type Stream struct {
	pub publisher.Publisher
	now func() time.Time
	log *logger.Logger
}

// NewStream publishes through pub
func NewStream(pub publisher.Publisher) *Stream {
	return &Stream{
		pub: pub,
		now: time.Now,
		log: logger.For("stream"),
	}
}

func (s *Stream) Name() string { return "redis" }

func (s *Stream) Send(ctx context.Context, message string, opts ...SendOption) bool {
	o := buildOptions(opts)
	payload, err := json.Marshal(Report{
		Title:    o.Title,
		Message:  message,
		Priority: o.Priority,
		SentAt:   s.now().UTC(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Encode report failed")
		return false
	}
	if err := s.pub.Publish(ctx, ReportKey, payload); err != nil {
		s.log.Error().Err(err).Msg("Publish report failed")
		return false
	}
	if err := s.pub.Trim(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Trim stream failed")
	}
	s.log.Info().Msg("Report published")
	return true
}
