package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sjsage522/autoread/helpers"
	"sjsage522/autoread/logger"

	"github.com/go-resty/resty/v2"
)

// Gotify pushes to a Gotify server application
type Gotify struct {
	url    string
	token  string
	client *resty.Client

	Policy helpers.RetryPolicy

	log *logger.Logger
}

type gotifyMessage struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// NewGotify tries three times two seconds apart
func NewGotify(url, token string, client *resty.Client) *Gotify {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Gotify{
		url:    strings.TrimRight(url, "/"),
		token:  token,
		client: client,
		Policy: helpers.RetryPolicy{
			Name:        "gotify push",
			MaxAttempts: 3,
			Delay:       2 * time.Second,
		},
		log: logger.For("gotify"),
	}
}

func (g *Gotify) Name() string { return "gotify" }

func (g *Gotify) Send(ctx context.Context, message string, opts ...SendOption) bool {
	o := buildOptions(opts)
	body := gotifyMessage{Title: o.Title, Message: message, Priority: o.Priority}

	err := helpers.Do(ctx, g.Policy, func(ctx context.Context) error {
		resp, err := g.client.R().
			SetContext(ctx).
			SetQueryParam("token", g.token).
			SetHeader("Content-Type", "application/json").
			SetBody(body).
			Post(g.url + "/message")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("gotify responded %s", resp.Status())
		}
		return nil
	})
	if err != nil {
		g.log.Error().Err(err).Msg("Gotify push failed")
		return false
	}
	g.log.Info().Msg("Pushed to Gotify")
	return true
}
