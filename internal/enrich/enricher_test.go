package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"raindrop_sync/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const describedPage = `<!DOCTYPE html>
<html><head>
<title>Field notes</title>
<meta name="description" content="A   short
summary of the field notes.">
</head><body>
<article><h1>Field notes</h1>
<p>The first paragraph of the article is long enough to be considered readable content by the extractor.</p>
<p>The second paragraph adds more words so that the page scores as an article rather than boilerplate.</p>
</article>
</body></html>`

const bodyOnlyPage = `<!DOCTYPE html>
<html><head><title>Plain</title></head><body>
<article>
<p>Readable text starts here and keeps going for a while so the extractor keeps it as the main content.</p>
<p>Another paragraph follows with additional sentences about nothing in particular, again for length.</p>
</article>
</body></html>`

func testConfig() config.EnrichConfig {
	return config.EnrichConfig{Enabled: true, TimeoutSec: 5, DelayMS: 1, MaxBodyKB: 512, MaxExcerptChars: 300}
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})
	mux.HandleFunc("/described", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, describedPage)
	})
	mux.HandleFunc("/private/page", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, describedPage)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExcerptUsesPageDescription(t *testing.T) {
	srv := newSite(t)
	e, err := NewEnricher(testConfig(), "raindrop-sync-test", nil)
	require.NoError(t, err)

	got, err := e.Excerpt(context.Background(), srv.URL+"/described#section")
	require.NoError(t, err)
	assert.Equal(t, "A short summary of the field notes.", got)

	again, err := e.Excerpt(context.Background(), srv.URL+"/described")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestExcerptRespectsRobots(t *testing.T) {
	srv := newSite(t)
	e, err := NewEnricher(testConfig(), "raindrop-sync-test", nil)
	require.NoError(t, err)

	_, err = e.Excerpt(context.Background(), srv.URL+"/private/page")
	assert.Error(t, err)
}

func TestExcerptHTTPError(t *testing.T) {
	srv := newSite(t)
	e, err := NewEnricher(testConfig(), "raindrop-sync-test", nil)
	require.NoError(t, err)

	_, err = e.Excerpt(context.Background(), srv.URL+"/gone")
	assert.Error(t, err)
}

func TestExcerptRejectsNonHTTPLinks(t *testing.T) {
	e, err := NewEnricher(testConfig(), "raindrop-sync-test", nil)
	require.NoError(t, err)

	_, err = e.Excerpt(context.Background(), "ftp://example.com/file")
	assert.True(t, errors.Is(err, ErrUnsupportedLink))
}

func TestExcerptCancelled(t *testing.T) {
	e, err := NewEnricher(testConfig(), "raindrop-sync-test", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Excerpt(ctx, "https://example.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractExcerptFallsBackToArticleText(t *testing.T) {
	u, _ := url.Parse("https://example.com/plain")

	got, err := ExtractExcerpt([]byte(bodyOnlyPage), "text/html", u, 40)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got, "Readable text"), got)
	assert.True(t, strings.HasSuffix(got, ellipsis), got)
	assert.LessOrEqual(t, len([]rune(got)), 41)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "one two"+ellipsis, truncate("one two three four", 10))
	assert.Equal(t, "unbounded text", truncate("unbounded text", 0))
}

func TestSpaceBlocks(t *testing.T) {
	got := spaceBlocks(`<p>one</p><p class="x">two</p>`)
	assert.Equal(t, ` <p>one</p>  <p class="x">two</p> `, got)
}

func TestExcerptFetchesEachPageOnce(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, describedPage)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	e, err := NewEnricher(testConfig(), "raindrop-sync-test", nil)
	require.NoError(t, err)

	for _, link := range []string{srv.URL + "/page", srv.URL + "/page#intro", srv.URL + "/page#outro"} {
		got, err := e.Excerpt(context.Background(), link)
		require.NoError(t, err)
		assert.Equal(t, "A short summary of the field notes.", got)
	}
	_, err = e.Excerpt(context.Background(), srv.URL+"/gone")
	assert.Error(t, err)
	_, err = e.Excerpt(context.Background(), srv.URL+"/gone")
	assert.Error(t, err)

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 2, e.pages.size())
}

func TestPageKey(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://www.Example.com/a#frag", "https://example.com/a"},
		{"https://example.com/a?x=1", "https://example.com/a?x=1"},
		{"http://example.com/a", "http://example.com/a"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.link)
		require.NoError(t, err)
		assert.Equal(t, tt.want, pageKey(u), tt.link)
	}
}

func TestExcerptReturnsOnCancelDuringFetch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		fmt.Fprint(w, describedPage)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	cfg := testConfig()
	cfg.TimeoutSec = 30
	e, err := NewEnricher(cfg, "raindrop-sync-test", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	begin := time.Now()
	_, err = e.Excerpt(ctx, srv.URL+"/slow")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(begin), 5*time.Second)
	assert.Zero(t, e.pages.size(), "cancelled fetches must not be memoised")
}
