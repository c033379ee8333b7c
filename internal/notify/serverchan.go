package notify

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"

	"sjsage522/autoread/helpers"
	"sjsage522/autoread/logger"
	taskerrors "sjsage522/autoread/pkg/errors"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultServerChanAttempts = 5
	DefaultServerChanRetryMin = 180 * time.Second
	DefaultServerChanRetryMax = 360 * time.Second
)

// keyPattern captures the account id of a ServerChan³ push key
var keyPattern = regexp.MustCompile(`(?i)^sct(\d+)t`)

// ParseKey returns the account id embedded in a ServerChan³ push key
func ParseKey(key string) (string, error) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return "", taskerrors.NewInvalidCredentialFormat("serverchan", "push key does not start with sct<uid>t")
	}
	return m[1], nil
}

// ServerChan pushes through ServerChan³
type ServerChan struct {
	key    string
	client *resty.Client

	Policy helpers.RetryPolicy
	// Endpoint builds the service root for an account id
	Endpoint func(uid string) string

	log *logger.Logger
}

// NewServerChan retries five times, waiting a random interval in
// [retryMin, retryMax] between attempts.
func NewServerChan(key string, client *resty.Client, retryMin, retryMax time.Duration) *ServerChan {
	if client == nil {
		client = NewHTTPClient(0)
	}
	if retryMin <= 0 || retryMax <= 0 {
		retryMin, retryMax = DefaultServerChanRetryMin, DefaultServerChanRetryMax
	}
	return &ServerChan{
		key:    key,
		client: client,
		Policy: helpers.RetryPolicy{
			Name:        "serverchan push",
			MaxAttempts: DefaultServerChanAttempts,
			Backoff:     RandomBackoff(nil, retryMin, retryMax),
		},
		Endpoint: func(uid string) string {
			return fmt.Sprintf("https://%s.push.ft07.com", uid)
		},
		log: logger.For("serverchan"),
	}
}

// RandomBackoff waits a uniform interval in [min, max] drawn from rnd
func RandomBackoff(rnd *rand.Rand, min, max time.Duration) func(int) time.Duration {
	return func(int) time.Duration {
		return helpers.RandomDuration(rnd, min, max)
	}
}

func (s *ServerChan) Name() string { return "serverchan" }

func (s *ServerChan) Send(ctx context.Context, message string, opts ...SendOption) bool {
	uid, err := ParseKey(s.key)
	if err != nil {
		s.log.Error().Err(err).Msg("Invalid ServerChan push key")
		return false
	}
	o := buildOptions(opts)
	url := s.Endpoint(uid) + "/send/" + s.key

	err = helpers.Do(ctx, s.Policy, func(ctx context.Context) error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"title": o.Title,
				"desp":  message,
			}).
			Get(url)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("serverchan responded %s", resp.Status())
		}
		s.log.Info().Str("response", resp.String()).Msg("Pushed to ServerChan")
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Msg("ServerChan push failed")
		return false
	}
	return true
}
