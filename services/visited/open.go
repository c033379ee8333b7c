package visited

import (
	"io"

	"sjsage522/autoread/config"
	"sjsage522/autoread/logger"
	taskerrors "sjsage522/autoread/pkg/errors"
	"sjsage522/autoread/services/cache"
)

// Open builds the store selected by cfg. The closer releases backend
// connections and is never nil.
func Open(cfg config.VisitedConfig) (Store, io.Closer, error) {
	log := logger.For("visited")
	switch cfg.Backend {
	case "":
		log.Debug().Msg("Visited topics are not persisted")
		return NopStore{}, nopCloser{}, nil
	case "file":
		log.Info().Str("path", cfg.Path).Msg("Visited topics stored in file")
		return NewFileStore(cfg.Path), nopCloser{}, nil
	case "memory":
		log.Info().Str("key", cfg.Key).Msg("Visited topics kept in memory until exit")
		return NewCacheStore(cache.NewMemoryService(), cfg.Key, cfg.TTL), nopCloser{}, nil
	case "memcache":
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		log.Info().Str("addr", cfg.MemcacheAddr).Str("key", cfg.Key).Msg("Visited topics stored in memcache")
		return NewCacheStore(mc, cfg.Key, cfg.TTL), mc, nil
	default:
		return nil, nil, taskerrors.NewConfiguration("unknown visited backend "+cfg.Backend, nil)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
