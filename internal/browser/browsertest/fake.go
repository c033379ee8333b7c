// Package browsertest provides an in-memory browser.Browser for tests.
package browsertest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sjsage522/autoread/internal/browser"
)

// PageSpec describes what a URL serves
type PageSpec struct {
	HTML string
	// Elements maps a selector to the elements it matches
	Elements map[string][]*Element
	// BottomAfter is the number of scrolls after which the page reports
	// it is at the bottom
	BottomAfter int
	// NavigateErr fails navigation to this URL
	NavigateErr error
}

// Browser serves PageSpecs by URL and records what happened
type Browser struct {
	mu sync.Mutex

	Pages      map[string]*PageSpec
	NewPageErr error

	Opened      int
	Closed      int
	Navigations []string
	Closes      int
}

// New returns a fake browser with no pages
func New() *Browser {
	return &Browser{Pages: make(map[string]*PageSpec)}
}

// Serve registers spec at url and returns it
func (b *Browser) Serve(url string, spec *PageSpec) *PageSpec {
	b.mu.Lock()
	defer b.mu.Unlock()
	if spec.Elements == nil {
		spec.Elements = make(map[string][]*Element)
	}
	b.Pages[url] = spec
	return spec
}

// SetElements replaces the matches of selector on url
func (b *Browser) SetElements(url, selector string, elements ...*Element) {
	b.mu.Lock()
	defer b.mu.Unlock()
	spec, ok := b.Pages[url]
	if !ok {
		spec = &PageSpec{Elements: make(map[string][]*Element)}
		b.Pages[url] = spec
	}
	spec.Elements[selector] = elements
}

// NavigationsTo counts navigations to url
func (b *Browser) NavigationsTo(url string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, u := range b.Navigations {
		if u == url {
			n++
		}
	}
	return n
}

// OpenPages returns pages opened but not yet closed
func (b *Browser) OpenPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Opened - b.Closed
}

func (b *Browser) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.NewPageErr != nil {
		return nil, b.NewPageErr
	}
	b.Opened++
	return &Page{b: b}, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	b.Closes++
	b.mu.Unlock()
	return nil
}

func (b *Browser) spec(url string) *PageSpec {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Pages[url]
}

// Page is a fake tab
type Page struct {
	b       *Browser
	url     string
	closed  bool
	Scrolls []int
	Scripts []string
}

func (p *Page) Navigate(ctx context.Context, url string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.b.mu.Lock()
	p.b.Navigations = append(p.b.Navigations, url)
	p.b.mu.Unlock()

	if spec := p.b.spec(url); spec != nil && spec.NavigateErr != nil {
		return spec.NavigateErr
	}
	p.url = url
	p.Scrolls = nil
	return nil
}

func (p *Page) FindElement(ctx context.Context, selector string, _ time.Duration) (browser.Element, error) {
	found, err := p.FindElements(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, browser.ErrNotFound
	}
	return found[0], nil
}

func (p *Page) FindElements(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec := p.b.spec(p.url)
	if spec == nil {
		return nil, nil
	}
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	return toElements(spec.Elements[selector]), nil
}

// RunScript answers boolean scripts with the bottom-of-page state
func (p *Page) RunScript(ctx context.Context, script string, result any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Scripts = append(p.Scripts, script)
	if out, ok := result.(*bool); ok {
		spec := p.b.spec(p.url)
		*out = spec != nil && len(p.Scrolls) >= spec.BottomAfter
	}
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	return p.url, ctx.Err()
}

func (p *Page) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	spec := p.b.spec(p.url)
	if spec == nil {
		return "", errors.New("no page loaded")
	}
	return spec.HTML, nil
}

func (p *Page) ScrollBy(ctx context.Context, pixels int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Scrolls = append(p.Scrolls, pixels)
	return nil
}

func (p *Page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.b.mu.Lock()
	p.b.Closed++
	p.b.mu.Unlock()
	return nil
}

// Element is a fake node. OnClick runs after a click is recorded.
type Element struct {
	Attrs    map[string]string
	Content  string
	Children map[string][]*Element
	OnClick  func()

	mu     sync.Mutex
	Clicks int
	Inputs []string
}

// Link returns an anchor element
func Link(href, text string) *Element {
	return &Element{Attrs: map[string]string{"href": href}, Content: text}
}

// Row returns a table row whose cascade selector matches link
func Row(selector string, link *Element) *Element {
	return &Element{Children: map[string][]*Element{selector: {link}}}
}

func (e *Element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.Clicks++
	hook := e.OnClick
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (e *Element) Input(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.Inputs = append(e.Inputs, text)
	e.mu.Unlock()
	return nil
}

func (e *Element) Attr(_ context.Context, name string) (string, bool, error) {
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *Element) Text(_ context.Context) (string, error) {
	return strings.TrimSpace(e.Content), nil
}

func (e *Element) FindElement(_ context.Context, selector string) (browser.Element, error) {
	children := e.Children[selector]
	if len(children) == 0 {
		return nil, browser.ErrNotFound
	}
	return children[0], nil
}

// ClickCount returns how many times the element was clicked
func (e *Element) ClickCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Clicks
}

func toElements(in []*Element) []browser.Element {
	out := make([]browser.Element, 0, len(in))
	for _, e := range in {
		out = append(out, e)
	}
	return out
}
