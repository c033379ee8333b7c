package cache

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// relativeExpirationLimit is the longest expiration memcache reads as
// relative seconds; longer values are unix timestamps
const relativeExpirationLimit = 30 * 24 * time.Hour

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
	now    func() time.Time
}

// NewMemcacheService creates a new memcache service
func NewMemcacheService(serverAddr string) *MemcacheService {
	return &MemcacheService{
		client: memcache.New(serverAddr),
		now:    time.Now,
	}
}

// Ping checks that every server answers
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: m.expiration(expiration),
	})
}

// Delete removes a value from memcache. A missing key is not an error.
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Close releases idle connections
func (m *MemcacheService) Close() error {
	return m.client.Close()
}

func (m *MemcacheService) expiration(d time.Duration) int32 {
	if d <= 0 {
		return 0
	}
	if d > relativeExpirationLimit {
		return int32(m.now().Add(d).Unix())
	}
	return int32(d.Seconds())
}
