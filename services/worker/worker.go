package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"sjsage522/autoread/helpers"
	"sjsage522/autoread/internal/browser"
	"sjsage522/autoread/internal/forum"
	"sjsage522/autoread/internal/notify"
	"sjsage522/autoread/internal/table"
	"sjsage522/autoread/logger"
	taskerrors "sjsage522/autoread/pkg/errors"
	"sjsage522/autoread/services/visited"

	"github.com/google/uuid"
)

// State is a step of a run
type State string

const (
	StateInit            State = "init"
	StateCheckingSession State = "checking_session"
	StateLoggedIn        State = "logged_in"
	StateAuthenticating  State = "authenticating"
	StateScrapingBefore  State = "scraping_before"
	StateBrowsing        State = "browsing"
	StateScrapingAfter   State = "scraping_after"
	StateReporting       State = "reporting"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

const (
	MessageLoginSucceeded = "✅每日登录成功"
	MessageBrowseFinished = " + 浏览任务完成"
)

// Formats of the stats appended to the notification
const (
	StatsFormatMarkdown = "markdown"
	StatsFormatHTML     = "html"
)

// Notifier delivers the final report
type Notifier interface {
	SendAll(ctx context.Context, message string, opts ...notify.SendOption) map[int]bool
}

// Options controls a run
type Options struct {
	Site          forum.Site
	Credentials   forum.Credentials
	BrowseEnabled bool
	MaxTopics     int
	Browse        forum.BrowseOptions
	// Title is the notification title
	Title string
	// IncludeStats appends the comparison to the notification
	IncludeStats bool
	// StatsFormat is StatsFormatMarkdown (default) or StatsFormatHTML
	StatsFormat string
}

// Result describes one run
type Result struct {
	RunID           string                `json:"run_id"`
	State           State                 `json:"state"`
	Reason          string                `json:"reason,omitempty"`
	AlreadyLoggedIn bool                  `json:"already_logged_in"`
	Visited         []string              `json:"visited"`
	Known           []string              `json:"known"`
	Browsed         int                   `json:"browsed"`
	Before          table.StatsTable      `json:"before"`
	After           table.StatsTable      `json:"after"`
	Comparison      []table.ComparisonRow `json:"comparison"`
	Message         string                `json:"message"`
	Deliveries      map[int]bool          `json:"deliveries"`
	Started         time.Time             `json:"started"`
	Elapsed         time.Duration         `json:"elapsed"`
}

// Worker drives a browser through a daily session
type Worker struct {
	browser  browser.Browser
	notifier Notifier
	store    visited.Store
	opts     Options

	Auth       *forum.Authenticator
	Discovery  *forum.Discovery
	Engagement *forum.Engagement
	Stats      *forum.StatsScraper
	// Out receives the console comparison table
	Out io.Writer

	log *logger.Logger
}

// NewWorker creates a new worker. A nil store keeps nothing between runs.
func NewWorker(b browser.Browser, n Notifier, store visited.Store, opts Options) *Worker {
	if store == nil {
		store = visited.NopStore{}
	}
	if opts.Title == "" {
		opts.Title = notify.DefaultTitle
	}
	return &Worker{
		browser:    b,
		notifier:   n,
		store:      store,
		opts:       opts,
		Auth:       forum.NewAuthenticator(opts.Site, opts.Credentials),
		Discovery:  forum.NewDiscovery(opts.Site.HomeURL),
		Engagement: forum.NewEngagement(opts.Browse, nil),
		Stats:      forum.NewStatsScraper(opts.Site.ConnectURL),
		Out:        os.Stdout,
		log:        logger.For("worker"),
	}
}

// Start runs the session every interval until ctx is cancelled. Failed
// runs are logged and the loop goes on.
func (w *Worker) Start(ctx context.Context, interval time.Duration) error {
	for {
		res, err := w.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			w.log.Error().Err(err).Str("run_id", res.RunID).Msg("Run failed")
		}
		w.log.Info().
			Str("run_id", res.RunID).
			Dur("elapsed", res.Elapsed).
			Dur("next_in", interval).
			Msg("Waiting for next run")

		if err := helpers.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// Run performs a single session. On failure the returned Result is in
// StateFailed and no notification is sent.
func (w *Worker) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:   uuid.NewString(),
		State:   StateInit,
		Started: time.Now(),
		Before:  table.Empty(),
		After:   table.Empty(),
	}
	defer func() { res.Elapsed = time.Since(res.Started) }()
	log := w.log.WithField("run_id", res.RunID)

	page, err := w.browser.NewPage(ctx)
	if err != nil {
		return w.fail(res, taskerrors.NewTransient("worker", "open page", err))
	}
	defer page.Close()

	res.State = StateCheckingSession
	performed, err := w.Auth.EnsureSession(ctx, page)
	if err != nil {
		if ctx.Err() != nil {
			return w.fail(res, ctx.Err())
		}
		if taskerrors.Is(err, taskerrors.ErrorTypeAuthentication) {
			res.State = StateAuthenticating
		}
		return w.fail(res, err)
	}
	res.AlreadyLoggedIn = !performed
	res.State = StateLoggedIn
	log.Info().Bool("already_logged_in", res.AlreadyLoggedIn).Msg("Session ready")

	res.State = StateScrapingBefore
	res.Before = w.scrape(ctx, "before")
	if ctx.Err() != nil {
		return w.fail(res, ctx.Err())
	}

	if w.opts.BrowseEnabled {
		res.State = StateBrowsing
		if err := w.browse(ctx, page, res); err != nil {
			return w.fail(res, err)
		}
	}

	res.State = StateScrapingAfter
	res.After = w.scrape(ctx, "after")
	if ctx.Err() != nil {
		return w.fail(res, ctx.Err())
	}

	res.State = StateReporting
	w.report(ctx, res)

	res.State = StateDone
	log.Info().
		Int("visited", len(res.Visited)).
		Int("browsed", res.Browsed).
		Msg("Run complete")
	return res, nil
}

func (w *Worker) fail(res *Result, err error) (*Result, error) {
	w.log.WithError(err).Error().Str("run_id", res.RunID).Str("state", string(res.State)).Msg("Run aborted")
	res.State = StateFailed
	res.Reason = err.Error()
	return res, err
}

func (w *Worker) scrape(ctx context.Context, label string) table.StatsTable {
	stats, err := w.Stats.Scrape(ctx, w.browser, label)
	if err != nil {
		w.log.Warn().Err(err).Str("snapshot", label).Msg("Continuing without stats")
	}
	return stats
}

// browse reads up to MaxTopics unvisited topics from the latest listing.
// The visited set is saved on every return path, including cancellation.
func (w *Worker) browse(ctx context.Context, page browser.Page, res *Result) error {
	stored, err := w.store.Load(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("Failed to load visited topics, starting empty")
	}
	seen := visited.NewSet(stored...)
	defer func() {
		res.Known = seen.List()
		if err := w.store.Save(context.WithoutCancel(ctx), res.Known); err != nil {
			w.log.Error().Err(err).Msg("Failed to save visited topics")
		}
	}()

	if err := page.Navigate(ctx, w.opts.Site.LatestURL, forum.PageLoadTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.log.Error().Err(err).Msg("Failed to open latest topics")
		return nil
	}

	topics := pending(w.Discovery.Discover(ctx, page), seen, w.opts.MaxTopics)
	w.log.Info().
		Int("known", seen.Len()).
		Int("pending", len(topics)).
		Msg("Browsing topics")

	for i, topic := range topics {
		if err := ctx.Err(); err != nil {
			return err
		}
		seen.Add(topic.URL)
		res.Visited = append(res.Visited, topic.URL)

		if w.Engagement.Engage(ctx, w.browser, topic) {
			res.Browsed++
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		err := taskerrors.NewEngagement("worker", fmt.Sprintf("topic %d/%d not read", i+1, len(topics)), nil)
		w.log.Warn().Err(err).Str("url", topic.URL).Msg("Skipping topic")
	}
	return nil
}

// pending drops visited topics and keeps at most limit of the rest
func pending(topics []forum.TopicReference, seen *visited.Set, limit int) []forum.TopicReference {
	out := make([]forum.TopicReference, 0, len(topics))
	for _, t := range topics {
		if len(out) >= limit {
			break
		}
		if seen.Contains(t.URL) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (w *Worker) report(ctx context.Context, res *Result) {
	res.Comparison = table.Diff(res.Before, res.After)
	if len(res.Comparison) > 0 {
		fmt.Fprintln(w.Out, table.RenderComparisonConsole(res.Comparison))
	} else {
		fmt.Fprintln(w.Out, table.RenderConsole("连接信息", res.After))
	}
	w.log.Info().Int("changed", table.ChangedCount(res.Comparison)).Msg("Stats compared")

	res.Message = w.message(res)
	res.Deliveries = w.notifier.SendAll(ctx, res.Message, notify.WithTitle(w.opts.Title))

	delivered := 0
	for _, ok := range res.Deliveries {
		if ok {
			delivered++
		}
	}
	w.log.Info().Int("delivered", delivered).Int("channels", len(res.Deliveries)).Msg("Notifications sent")
}

func (w *Worker) message(res *Result) string {
	msg := MessageLoginSucceeded
	if w.opts.BrowseEnabled {
		msg += MessageBrowseFinished
	}
	if !w.opts.IncludeStats {
		return msg
	}
	switch w.opts.StatsFormat {
	case StatsFormatHTML:
		// html channels render a placeholder when the stats are missing
		msg += "\n\n" + table.RenderHTML(res.Comparison)
	default:
		if len(res.Comparison) > 0 {
			msg += "\n\n" + table.RenderMarkdown(res.Comparison)
		}
	}
	return msg
}
