package forum

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"sjsage522/autoread/helpers"
	"sjsage522/autoread/internal/browser"
	"sjsage522/autoread/logger"
	taskerrors "sjsage522/autoread/pkg/errors"
)

// BottomScript evaluates to true when the viewport reaches the end of the page
const BottomScript = `window.scrollY + window.innerHeight >= document.body.scrollHeight`

const likeButtonTimeout = 2 * time.Second

// BrowseOptions tunes how a topic is read
type BrowseOptions struct {
	LikeProbability      float64
	MaxScrollTimes       int
	ScrollDistanceMin    int
	ScrollDistanceMax    int
	ScrollWaitMin        time.Duration
	ScrollWaitMax        time.Duration
	EarlyExitProbability float64
}

// DefaultBrowseOptions returns the reading behaviour used when nothing is configured
func DefaultBrowseOptions() BrowseOptions {
	return BrowseOptions{
		LikeProbability:      0.3,
		MaxScrollTimes:       10,
		ScrollDistanceMin:    550,
		ScrollDistanceMax:    650,
		ScrollWaitMin:        2 * time.Second,
		ScrollWaitMax:        4 * time.Second,
		EarlyExitProbability: 0.1,
	}
}

// Engagement reads a single topic like a person would
type Engagement struct {
	opts BrowseOptions
	rnd  *rand.Rand

	// Policy retries opening the topic
	Policy helpers.RetryPolicy
	Sleep  Sleeper

	log *logger.Logger
}

// NewEngagement returns an Engagement drawing randomness from rnd. A nil
// rnd uses a time seeded source.
func NewEngagement(opts BrowseOptions, rnd *rand.Rand) *Engagement {
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Engagement{
		opts: opts,
		rnd:  rnd,
		Policy: helpers.RetryPolicy{
			Name:        "open topic",
			MaxAttempts: 2,
			Delay:       2 * time.Second,
			Retryable:   taskerrors.IsRetryable,
		},
		Sleep: defaultSleeper,
		log:   logger.For("engage"),
	}
}

// Engage opens topic in its own page, maybe likes it, then scrolls through
// it. The page is always closed. It reports whether the topic was read.
func (e *Engagement) Engage(ctx context.Context, b browser.Browser, topic TopicReference) bool {
	log := e.log.WithFields(logger.Fields{"url": topic.URL, "title": topic.Title})

	page, err := b.NewPage(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open page")
		return false
	}
	defer page.Close()

	err = helpers.Do(ctx, e.Policy, func(ctx context.Context) error {
		if err := page.Navigate(ctx, topic.URL, PageLoadTimeout); err != nil {
			return taskerrors.NewTransient("engage", "open topic", err)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to open topic")
		return false
	}
	log.Info().Msg("Reading topic")

	if e.rnd.Float64() < e.opts.LikeProbability {
		e.like(ctx, page, log)
	}

	if err := e.scroll(ctx, page, log); err != nil {
		log.Warn().Err(err).Msg("Reading interrupted")
		return false
	}
	return true
}

func (e *Engagement) like(ctx context.Context, page browser.Page, log *logger.Logger) {
	button, err := page.FindElement(ctx, SelectorLikeButton, likeButtonTimeout)
	if errors.Is(err, browser.ErrNotFound) {
		log.Info().Msg("No like button, possibly already liked")
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("Like button lookup failed")
		return
	}
	if err := button.Click(ctx); err != nil {
		log.Warn().Err(err).Msg("Like failed")
		return
	}
	log.Info().Msg("Topic liked")
}

// scroll stops after MaxScrollTimes, on a random early exit or once the
// bottom is reached without the URL changing since the previous check.
func (e *Engagement) scroll(ctx context.Context, page browser.Page, log *logger.Logger) error {
	prevURL := ""
	for i := 0; i < e.opts.MaxScrollTimes; i++ {
		distance := helpers.RandomInt(e.rnd, e.opts.ScrollDistanceMin, e.opts.ScrollDistanceMax)
		if err := page.ScrollBy(ctx, distance); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("Scroll failed")
			return nil
		}
		log.Debug().Int("distance", distance).Msg("Scrolled")

		if e.rnd.Float64() < e.opts.EarlyExitProbability {
			log.Info().Msg("Stopped reading early")
			return nil
		}

		var atBottom bool
		if err := page.RunScript(ctx, BottomScript, &atBottom); err != nil {
			log.Debug().Err(err).Msg("Bottom check failed")
			atBottom = false
		}
		current, err := page.CurrentURL(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("URL unavailable")
		}

		if current != prevURL {
			prevURL = current
		} else if atBottom {
			log.Info().Msg("Reached the bottom")
			return nil
		}

		wait := helpers.RandomDuration(e.rnd, e.opts.ScrollWaitMin, e.opts.ScrollWaitMax)
		if err := e.Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}
