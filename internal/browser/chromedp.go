package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"sjsage522/autoread/logger"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// hideWebdriver runs before any page script
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined, configurable: true});`

// Chrome drives a local Chrome through the DevTools protocol. Every page is
// a separate tab of one browser process.
type Chrome struct {
	opts          Options
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	closeOnce     sync.Once
	log           *logger.Logger
}

// NewChrome launches the browser process
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	opts = withDefaults(opts)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	c, err := start(allocCtx, cancelAlloc, opts)
	if err != nil {
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	c.log.Info().
		Bool("headless", opts.Headless).
		Str("proxy", opts.Proxy).
		Msg("Browser started")
	return c, nil
}

// NewRemoteChrome attaches to a running browser's DevTools endpoint. A
// ws://.../devtools/browser/<id> URL is used as is, anything else is
// resolved through /json/version. Launch flags in opts do not apply.
func NewRemoteChrome(ctx context.Context, url string, opts Options) (*Chrome, error) {
	opts = withDefaults(opts)
	var remoteOpts []chromedp.RemoteAllocatorOption
	if strings.Contains(url, "/devtools/browser/") {
		remoteOpts = append(remoteOpts, chromedp.NoModifyURL)
	}
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, url, remoteOpts...)
	c, err := start(allocCtx, cancelAlloc, opts)
	if err != nil {
		return nil, fmt.Errorf("attach chrome at %s: %w", url, err)
	}
	c.log.Info().Str("url", url).Msg("Attached to browser")
	return c, nil
}

func withDefaults(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WindowWidth <= 0 || opts.WindowHeight <= 0 {
		opts.WindowWidth, opts.WindowHeight = DefaultWindowWidth, DefaultWindowHeight
	}
	return opts
}

func start(allocCtx context.Context, cancelAlloc context.CancelFunc, opts Options) (*Chrome, error) {
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// first Run starts the process and binds it to browserCtx
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	return &Chrome{
		opts:          opts,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		log:           logger.For("browser"),
	}, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	return allocOpts
}

// NewPage opens a new tab
func (c *Chrome) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)

	// the first Run creates the tab and ties its event loop to the context
	// it receives, so it must get the long-lived tab context
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	p := &chromePage{ctx: tabCtx, cancel: cancel, timeout: c.opts.Timeout}

	actions := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
			return err
		}),
	}
	if len(c.opts.Headers) > 0 {
		headers := make(network.Headers, len(c.opts.Headers))
		for k, v := range c.opts.Headers {
			headers[k] = v
		}
		actions = append(actions, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}

	if err := p.run(ctx, p.timeout, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("prepare tab: %w", err)
	}
	return p, nil
}

// Close shuts the browser process down
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.cancelBrowser()
		c.cancelAlloc()
		c.log.Info().Msg("Browser closed")
	})
	return nil
}

type chromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	timeout   time.Duration
	closeOnce sync.Once
}

// scope derives a context from the tab that also ends when the caller's
// context does.
func (p *chromePage) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := p.scope(ctx, timeout)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) FindElement(ctx context.Context, selector string, timeout time.Duration) (Element, error) {
	var nodes []*cdp.Node
	sel, xpath := IsXPath(selector)
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if xpath {
		opts = []chromedp.QueryOption{chromedp.BySearch}
	}

	err := p.run(ctx, timeout, chromedp.Nodes(sel, &nodes, opts...))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return &chromeElement{page: p, node: nodes[0]}, nil
}

func (p *chromePage) FindElements(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	sel, xpath := IsXPath(selector)
	by := chromedp.ByQueryAll
	if xpath {
		by = chromedp.BySearch
	}

	if err := p.run(ctx, p.timeout, chromedp.Nodes(sel, &nodes, by, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	return wrapNodes(p, nodes), nil
}

func (p *chromePage) RunScript(ctx context.Context, script string, result any) error {
	return p.run(ctx, p.timeout, chromedp.Evaluate(script, result))
}

func (p *chromePage) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, p.timeout, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (p *chromePage) ScrollBy(ctx context.Context, pixels int) error {
	var ok bool
	return p.run(ctx, p.timeout, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d); true", pixels), &ok))
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(p.cancel)
	return nil
}

type chromeElement struct {
	page *chromePage
	node *cdp.Node
}

func wrapNodes(p *chromePage, nodes []*cdp.Node) []Element {
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromeElement{page: p, node: n})
	}
	return elements
}

func (e *chromeElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.page.run(ctx, e.page.timeout, chromedp.Click(e.ids(), chromedp.ByNodeID))
}

func (e *chromeElement) Input(ctx context.Context, text string) error {
	return e.page.run(ctx, e.page.timeout,
		chromedp.SetValue(e.ids(), "", chromedp.ByNodeID),
		chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID),
	)
}

func (e *chromeElement) Attr(_ context.Context, name string) (string, bool, error) {
	value, ok := e.node.Attribute(name)
	return value, ok, nil
}

func (e *chromeElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.page.run(ctx, e.page.timeout, chromedp.TextContent(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (e *chromeElement) FindElement(ctx context.Context, selector string) (Element, error) {
	var nodes []*cdp.Node
	err := e.page.run(ctx, e.page.timeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.FromNode(e.node), chromedp.AtLeast(0)))
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return &chromeElement{page: e.page, node: nodes[0]}, nil
}
