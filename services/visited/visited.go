// Package visited remembers which topic URLs have already been read.
package visited

import (
	"context"
	"strings"
	"sync"
)

// Store persists a visited set between runs
type Store interface {
	Load(ctx context.Context) ([]string, error)
	// Save overwrites the stored set
	Save(ctx context.Context, urls []string) error
}

// Set is an insertion ordered set of URLs
type Set struct {
	mu    sync.Mutex
	order []string
	seen  map[string]struct{}
}

// NewSet returns a set holding urls
func NewSet(urls ...string) *Set {
	s := &Set{seen: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		s.Add(u)
	}
	return s
}

// Add inserts url and reports whether it was new. Blank URLs are ignored.
func (s *Set) Add(url string) bool {
	url = strings.TrimSpace(url)
	if url == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[url]; ok {
		return false
	}
	s.seen[url] = struct{}{}
	s.order = append(s.order, url)
	return true
}

// Contains reports whether url was added
func (s *Set) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[strings.TrimSpace(url)]
	return ok
}

// Len returns the number of URLs
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// List returns the URLs in insertion order
func (s *Set) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Encode joins urls one per line
func Encode(urls []string) []byte {
	if len(urls) == 0 {
		return nil
	}
	return []byte(strings.Join(urls, "\n") + "\n")
}

// Decode splits a newline separated payload, dropping blank lines
func Decode(data []byte) []string {
	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}
	return urls
}

// NopStore keeps nothing between runs
type NopStore struct{}

func (NopStore) Load(context.Context) ([]string, error) { return nil, nil }

func (NopStore) Save(context.Context, []string) error { return nil }
