package enrich

import (
	"net/url"
	"strings"
	"sync"
)

type outcome struct {
	text string
	err  error
}

// memo remembers the outcome per page so bookmarks sharing a link are fetched once.
type memo struct {
	mu   sync.Mutex
	seen map[string]outcome
}

func newMemo() *memo {
	return &memo{seen: make(map[string]outcome)}
}

func (m *memo) get(key string) (outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.seen[key]
	return o, ok
}

func (m *memo) put(key string, o outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[key] = o
}

func (m *memo) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// pageKey drops the fragment and a leading "www." so equivalent links share a key.
func pageKey(u *url.URL) string {
	k := *u
	k.Fragment = ""
	k.RawFragment = ""
	k.Host = strings.TrimPrefix(strings.ToLower(k.Host), "www.")
	return k.String()
}
