// Package forum holds the linux.do specific steps of a run: session
// handling, topic discovery, topic engagement and stats scraping.
package forum

import (
	"context"
	"time"

	"sjsage522/autoread/helpers"
)

// Site URLs
const (
	DefaultHomeURL    = "https://linux.do/"
	DefaultLatestURL  = "https://linux.do/latest"
	DefaultLoginURL   = "https://linux.do/login"
	DefaultConnectURL = "https://connect.linux.do/"
)

// Selectors
const (
	SelectorCurrentUser   = "#current-user"
	SelectorLoginForm     = "#login-form"
	SelectorLoginUsername = "#login-account-name"
	SelectorLoginPassword = "#login-account-password"
	SelectorLoginButton   = "#login-button"
	SelectorLikeButton    = `[title*="点赞此帖子"]`
)

// PageLoadTimeout bounds a single navigation
const PageLoadTimeout = 30 * time.Second

// Site is the set of URLs the bot visits
type Site struct {
	HomeURL    string
	LatestURL  string
	LoginURL   string
	ConnectURL string
}

// DefaultSite returns the linux.do URLs
func DefaultSite() Site {
	return Site{
		HomeURL:    DefaultHomeURL,
		LatestURL:  DefaultLatestURL,
		LoginURL:   DefaultLoginURL,
		ConnectURL: DefaultConnectURL,
	}
}

// Credentials are the forum login
type Credentials struct {
	Username string
	Password string
}

// TopicReference is one discovered topic
type TopicReference struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

var defaultSleeper Sleeper = helpers.Sleep
