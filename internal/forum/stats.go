package forum

import (
	"context"
	"time"

	"sjsage522/autoread/helpers"
	"sjsage522/autoread/internal/browser"
	"sjsage522/autoread/internal/table"
	"sjsage522/autoread/logger"
	taskerrors "sjsage522/autoread/pkg/errors"
)

// StatsScraper reads the stats table from the Connect page
type StatsScraper struct {
	url string

	Policy helpers.RetryPolicy

	log *logger.Logger
}

// NewStatsScraper retries three times two seconds apart
func NewStatsScraper(connectURL string) *StatsScraper {
	return &StatsScraper{
		url: connectURL,
		Policy: helpers.RetryPolicy{
			Name:        "stats scrape",
			MaxAttempts: 3,
			Delay:       2 * time.Second,
		},
		log: logger.For("stats"),
	}
}

// Scrape opens a fresh page on the Connect URL and extracts its table.
// The label only tags log lines.
func (s *StatsScraper) Scrape(ctx context.Context, b browser.Browser, label string) (table.StatsTable, error) {
	stats, err := helpers.Retry(ctx, s.Policy, func(ctx context.Context) (table.StatsTable, error) {
		return s.scrapeOnce(ctx, b)
	})
	if err != nil {
		return table.Empty(), taskerrors.NewScrape("stats", "read "+label+" stats", err)
	}
	s.log.Info().Str("snapshot", label).Int("rows", len(stats.Rows)).Msg("Stats scraped")
	return stats, nil
}

func (s *StatsScraper) scrapeOnce(ctx context.Context, b browser.Browser) (table.StatsTable, error) {
	page, err := b.NewPage(ctx)
	if err != nil {
		return table.StatsTable{}, err
	}
	defer page.Close()

	if err := page.Navigate(ctx, s.url, PageLoadTimeout); err != nil {
		return table.StatsTable{}, err
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return table.StatsTable{}, err
	}
	return table.Extract(html), nil
}
