package forum

import (
	"context"
	"errors"
	"strings"

	"sjsage522/autoread/helpers"
	"sjsage522/autoread/internal/browser"
	"sjsage522/autoread/logger"

	"github.com/PuerkitoBio/goquery"
)

// rowLinkSelectors are tried in order inside a topic row
var rowLinkSelectors = []string{"td:nth-child(1) > span > a", "a.title", "a"}

// Strategy is one way of listing topics on the latest page. Hrefs may be
// relative.
type Strategy struct {
	Name string
	Find func(ctx context.Context, page browser.Page) ([]TopicReference, error)
}

// DefaultStrategies are tried in order, the first non-empty result wins
func DefaultStrategies() []Strategy {
	return []Strategy{
		rowStrategy("ember-table", "#ember57 > table > tbody > tr"),
		rowStrategy("table-rows", "table tbody tr"),
		linkStrategy("raw-topic-link", "a.raw-topic-link"),
		linkStrategy("data-topic-id", "a[data-topic-id]"),
		{Name: "markup", Find: markupLinks},
	}
}

// Discovery lists topics from the current page
type Discovery struct {
	baseURL    string
	strategies []Strategy
	log        *logger.Logger
}

// NewDiscovery resolves hrefs against baseURL. No strategies means the defaults.
func NewDiscovery(baseURL string, strategies ...Strategy) *Discovery {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Discovery{
		baseURL:    baseURL,
		strategies: strategies,
		log:        logger.For("discovery"),
	}
}

// Discover runs the strategies against page. The result holds absolute
// URLs, each once, in page order.
func (d *Discovery) Discover(ctx context.Context, page browser.Page) []TopicReference {
	for _, s := range d.strategies {
		if ctx.Err() != nil {
			return nil
		}
		found, err := s.Find(ctx, page)
		if err != nil {
			d.log.Warn().Err(err).Str("strategy", s.Name).Msg("Strategy failed")
			continue
		}
		topics := d.normalize(found)
		if len(topics) == 0 {
			d.log.Debug().Str("strategy", s.Name).Msg("Strategy found no topics")
			continue
		}
		d.log.Info().Str("strategy", s.Name).Int("count", len(topics)).Msg("Topics discovered")
		return topics
	}
	d.log.Warn().Msg("No topics found by any strategy")
	return nil
}

func (d *Discovery) normalize(found []TopicReference) []TopicReference {
	seen := make(map[string]struct{}, len(found))
	topics := make([]TopicReference, 0, len(found))
	for _, t := range found {
		url := helpers.ResolveURL(d.baseURL, t.URL)
		if url == "" {
			continue
		}
		if _, dup := seen[url]; dup {
			continue
		}
		seen[url] = struct{}{}
		topics = append(topics, TopicReference{URL: url, Title: t.Title})
	}
	return topics
}

func rowStrategy(name, selector string) Strategy {
	return Strategy{
		Name: name,
		Find: func(ctx context.Context, page browser.Page) ([]TopicReference, error) {
			rows, err := page.FindElements(ctx, selector)
			if err != nil {
				return nil, err
			}
			log := logger.For("discovery").WithField("strategy", name)
			topics := make([]TopicReference, 0, len(rows))
			for _, row := range rows {
				link := firstLink(ctx, row)
				if link == nil {
					log.Warn().Msg("Row has no link")
					continue
				}
				if t, ok := topicFrom(ctx, link, log); ok {
					topics = append(topics, t)
				}
			}
			return topics, nil
		},
	}
}

func linkStrategy(name, selector string) Strategy {
	return Strategy{
		Name: name,
		Find: func(ctx context.Context, page browser.Page) ([]TopicReference, error) {
			links, err := page.FindElements(ctx, selector)
			if err != nil {
				return nil, err
			}
			log := logger.For("discovery").WithField("strategy", name)
			topics := make([]TopicReference, 0, len(links))
			for _, link := range links {
				if t, ok := topicFrom(ctx, link, log); ok {
					topics = append(topics, t)
				}
			}
			return topics, nil
		},
	}
}

// markupLinks scans every anchor of the page source
func markupLinks(ctx context.Context, page browser.Page) ([]TopicReference, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var topics []TopicReference
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		text := strings.TrimSpace(s.Text())
		if href == "" || text == "" {
			return
		}
		if strings.Contains(href, "login") || strings.Contains(href, "register") {
			return
		}
		topics = append(topics, TopicReference{URL: href, Title: text})
	})
	return topics, nil
}

func firstLink(ctx context.Context, row browser.Element) browser.Element {
	for _, sel := range rowLinkSelectors {
		link, err := row.FindElement(ctx, sel)
		if err == nil {
			return link
		}
		if !errors.Is(err, browser.ErrNotFound) {
			logger.For("discovery").Debug().Err(err).Str("selector", sel).Msg("Link lookup failed")
		}
	}
	return nil
}

func topicFrom(ctx context.Context, link browser.Element, log *logger.Logger) (TopicReference, bool) {
	title, err := link.Text(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Link text unavailable")
	}
	href, ok, err := link.Attr(ctx, "href")
	if err != nil || !ok || strings.TrimSpace(href) == "" {
		log.Warn().Str("title", title).Msg("Topic link has no href")
		return TopicReference{}, false
	}
	return TopicReference{URL: href, Title: title}, true
}
