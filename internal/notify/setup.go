package notify

import (
	"sjsage522/autoread/config"
	"sjsage522/autoread/logger"
	"sjsage522/autoread/services/publisher"

	"github.com/go-resty/resty/v2"
)

// Deps lets callers share or replace the transports used by channels
type Deps struct {
	HTTPClient *resty.Client
	// Publisher replaces the Redis stream built from config
	Publisher publisher.Publisher
}

// Setup builds a Manager from config. Channels missing a required
// parameter are skipped. Order is Gotify, ServerChan, Redis stream.
func Setup(cfg config.NotificationsConfig, deps Deps) *Manager {
	m := NewManager()
	log := logger.For("notify")

	client := deps.HTTPClient
	if client == nil {
		client = NewHTTPClient(DefaultHTTPTimeout)
	}

	if cfg.Gotify.URL != "" && cfg.Gotify.Token != "" {
		m.Register(NewGotify(cfg.Gotify.URL, cfg.Gotify.Token, client))
	} else {
		log.Debug().Msg("Gotify not configured")
	}

	if cfg.ServerChan.PushKey != "" {
		m.Register(NewServerChan(cfg.ServerChan.PushKey, client, cfg.ServerChan.RetryMin, cfg.ServerChan.RetryMax))
	} else {
		log.Debug().Msg("ServerChan not configured")
	}

	switch {
	case deps.Publisher != nil:
		m.Register(NewStream(deps.Publisher))
	case cfg.Redis.Addr != "":
		pub := publisher.NewRedisPublisher(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Stream, cfg.Redis.MaxLen)
		m.own(pub)
		m.Register(NewStream(pub))
	default:
		log.Debug().Msg("Redis stream not configured")
	}

	log.Info().Strs("channels", m.Names()).Msg("Notification channels ready")
	return m
}
