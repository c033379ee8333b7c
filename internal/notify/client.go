package notify

import (
	"time"

	"sjsage522/autoread/logger"

	"github.com/go-resty/resty/v2"
)

// DefaultHTTPTimeout bounds a single push request
const DefaultHTTPTimeout = 10 * time.Second

const maxLoggedBody = 512

// NewHTTPClient returns the resty client shared by the HTTP channels
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	log := logger.For("http")
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "linuxdo-autoread").
		OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
			if !logger.IsDebugEnabled() {
				return nil
			}
			log.Debug().
				Str("method", resp.Request.Method).
				Str("url", resp.Request.URL).
				Int("status", resp.StatusCode()).
				Dur("elapsed", resp.Time()).
				Str("body", truncate(resp.String(), maxLoggedBody)).
				Msg("Push request")
			return nil
		})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
