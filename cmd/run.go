package cmd

import (
	"context"

	"sjsage522/autoread/config"
	"sjsage522/autoread/helpers"
	"sjsage522/autoread/internal/browser"
	"sjsage522/autoread/internal/forum"
	"sjsage522/autoread/internal/notify"
	"sjsage522/autoread/logger"
	"sjsage522/autoread/services/visited"
	"sjsage522/autoread/services/worker"
)

// run wires the services and performs one run, or loops when cfg.Every is set.
// Every resource is released on return.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.For("cmd")

	store, storeCloser, err := visited.Open(cfg.Visited)
	if err != nil {
		return err
	}
	defer storeCloser.Close()

	notifier := notify.Setup(cfg.Notifications, notify.Deps{})
	defer func() {
		if err := notifier.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close notification channels")
		}
	}()
	log.Info().Strs("channels", notifier.Names()).Msg("Notification channels ready")

	b, err := openBrowser(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	w := worker.NewWorker(b, notifier, store, workerOptions(cfg))
	if cfg.Every > 0 {
		return w.Start(ctx, cfg.Every)
	}
	_, err = w.Run(ctx)
	return err
}

func openBrowser(ctx context.Context, cfg *config.Config) (*browser.Chrome, error) {
	if cfg.Browser.RemoteURL != "" {
		return browser.NewRemoteChrome(ctx, cfg.Browser.RemoteURL, browserOptions(cfg))
	}
	return browser.NewChrome(ctx, browserOptions(cfg))
}

func browserOptions(cfg *config.Config) browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Proxy = cfg.Browser.Proxy
	opts.UserAgent = cfg.Browser.UserAgent
	if opts.UserAgent == "" {
		opts.UserAgent = helpers.RandomUserAgent(nil)
	}
	if cfg.Browser.WindowWidth > 0 && cfg.Browser.WindowHeight > 0 {
		opts.WindowWidth, opts.WindowHeight = cfg.Browser.WindowWidth, cfg.Browser.WindowHeight
	}
	if cfg.Browser.Timeout > 0 {
		opts.Timeout = cfg.Browser.Timeout
	}
	opts.Headers = helpers.BrowserHeaders()
	return opts
}

func workerOptions(cfg *config.Config) worker.Options {
	return worker.Options{
		Site: forum.Site{
			HomeURL:    cfg.Site.HomeURL,
			LatestURL:  cfg.Site.LatestURL,
			LoginURL:   cfg.Site.LoginURL,
			ConnectURL: cfg.Site.ConnectURL,
		},
		Credentials:   forum.Credentials{Username: cfg.Username, Password: cfg.Password},
		BrowseEnabled: cfg.BrowseEnabled,
		MaxTopics:     cfg.MaxTopics,
		Browse: forum.BrowseOptions{
			LikeProbability:      cfg.Browse.LikeProbability,
			MaxScrollTimes:       cfg.Browse.MaxScrollTimes,
			ScrollDistanceMin:    cfg.Browse.ScrollDistanceMin,
			ScrollDistanceMax:    cfg.Browse.ScrollDistanceMax,
			ScrollWaitMin:        cfg.Browse.ScrollWaitMin,
			ScrollWaitMax:        cfg.Browse.ScrollWaitMax,
			EarlyExitProbability: cfg.Browse.EarlyExitProbability,
		},
		Title:        cfg.Notifications.Title,
		IncludeStats: cfg.Notifications.IncludeStats,
		StatsFormat:  cfg.Notifications.StatsFormat,
	}
}
