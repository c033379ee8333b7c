// Package browser is the narrow driver surface the bot needs from a real
// browser: pages, element lookup, scripts and scrolling.
package browser

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when an element lookup times out
var ErrNotFound = errors.New("element not found")

// XPathPrefix marks a page-level selector as XPath instead of CSS
const XPathPrefix = "xpath:"

// Browser creates isolated pages
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is a single browser tab
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	FindElement(ctx context.Context, selector string, timeout time.Duration) (Element, error)
	// FindElements returns every match without waiting; none is not an error
	FindElements(ctx context.Context, selector string) ([]Element, error)
	RunScript(ctx context.Context, script string, result any) error
	CurrentURL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	ScrollBy(ctx context.Context, pixels int) error
	Close() error
}

// Element is a node inside a page
type Element interface {
	Click(ctx context.Context) error
	Input(ctx context.Context, text string) error
	Attr(ctx context.Context, name string) (string, bool, error)
	Text(ctx context.Context) (string, error)
	// FindElement searches the element's subtree; ErrNotFound when absent
	FindElement(ctx context.Context, selector string) (Element, error)
}

// Options configures the launched browser
type Options struct {
	Headless     bool
	Proxy        string
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	// Headers are sent with every request of every page
	Headers map[string]string
	// Timeout bounds element operations that take no explicit timeout
	Timeout time.Duration
}

const (
	DefaultWindowWidth  = 1920
	DefaultWindowHeight = 1080
	DefaultTimeout      = 10 * time.Second
)

// DefaultOptions returns headless options with a desktop window
func DefaultOptions() Options {
	return Options{
		Headless:     true,
		WindowWidth:  DefaultWindowWidth,
		WindowHeight: DefaultWindowHeight,
		Timeout:      DefaultTimeout,
	}
}

// IsXPath reports whether selector carries the XPath prefix and returns the
// bare expression.
func IsXPath(selector string) (string, bool) {
	if strings.HasPrefix(selector, XPathPrefix) {
		return strings.TrimPrefix(selector, XPathPrefix), true
	}
	return selector, false
}
