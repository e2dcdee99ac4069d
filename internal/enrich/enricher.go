// Package enrich fills in missing bookmark excerpts from the bookmarked page.
package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"raindrop_sync/internal/config"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/gocolly/colly"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

const (
	excerptKey = "excerpt"
	errorKey   = "extract_error"
	runCtxKey  = "run_ctx"
	ellipsis   = "…"
)

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reBlockOpen  = regexp.MustCompile(`<(div|p|br|li|td|tr|h[1-6])(\s[^>]*)?/?>`)
	reBlockClose = regexp.MustCompile(`</(div|p|li|td|tr|h[1-6])>`)
)

var ErrUnsupportedLink = errors.New("unsupported link scheme")

type Enricher struct {
	collector *colly.Collector
	maxChars  int
	pages     *memo
	log       *zap.Logger
}

func NewEnricher(cfg config.EnrichConfig, userAgent string, log *zap.Logger) (*Enricher, error) {
	if log == nil {
		log = zap.NewNop()
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.MaxBodySize(cfg.MaxBodyKB*1024),
	)
	c.IgnoreRobotsTxt = false
	c.AllowURLRevisit = true
	c.SetRequestTimeout(time.Duration(cfg.TimeoutSec) * time.Second)

	if err := c.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      time.Duration(cfg.DelayMS) * time.Millisecond,
	}); err != nil {
		return nil, fmt.Errorf("configure enrichment rate limit: %w", err)
	}

	e := &Enricher{collector: c, maxChars: cfg.MaxExcerptChars, pages: newMemo(), log: log}
	c.OnRequest(abortCancelled)
	c.OnResponse(e.onResponse)
	return e, nil
}

// Excerpt fetches link and returns a short plain-text summary of the page.
func (e *Enricher) Excerpt(ctx context.Context, link string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLink, u.Scheme)
	}
	u.Fragment = ""

	key := pageKey(u)
	if o, ok := e.pages.get(key); ok {
		return o.text, o.err
	}
	text, err := e.fetch(ctx, u)
	if ctx.Err() == nil {
		e.pages.put(key, outcome{text: text, err: err})
	}
	return text, err
}

// fetch returns as soon as ctx is done. A request already on the wire is
// left to finish within the collector's timeout.
func (e *Enricher) fetch(ctx context.Context, u *url.URL) (string, error) {
	cctx := colly.NewContext()
	cctx.Put(runCtxKey, ctx)

	done := make(chan error, 1)
	go func() {
		done <- e.collector.Request(http.MethodGet, u.String(), nil, cctx, nil)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			if errors.Is(err, colly.ErrRobotsTxtBlocked) {
				e.log.Debug("Skipped by robots.txt", zap.String("link", u.String()))
			}
			return "", fmt.Errorf("fetch %s: %w", u, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if msg := cctx.Get(errorKey); msg != "" {
		return "", fmt.Errorf("extract %s: %s", u, msg)
	}

	text := cctx.Get(excerptKey)
	e.log.Debug("Enriched excerpt", zap.String("link", u.String()), zap.Int("chars", len(text)))
	return text, nil
}

func abortCancelled(r *colly.Request) {
	if ctx, ok := r.Ctx.GetAny(runCtxKey).(context.Context); ok && ctx.Err() != nil {
		r.Abort()
	}
}

func (e *Enricher) onResponse(r *colly.Response) {
	text, err := ExtractExcerpt(r.Body, r.Headers.Get("Content-Type"), r.Request.URL, e.maxChars)
	if err != nil {
		r.Ctx.Put(errorKey, err.Error())
		return
	}
	r.Ctx.Put(excerptKey, text)
}

// ExtractExcerpt prefers the page's own description and falls back to the
// start of the readable article text.
func ExtractExcerpt(body []byte, contentType string, pageURL *url.URL, maxChars int) (string, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		reader = bytes.NewReader(body)
	}

	article, err := readability.FromReader(reader, pageURL)
	if err != nil {
		return "", err
	}

	text := normalizeText(article.Excerpt)
	if text == "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaceBlocks(article.Content)))
		if err != nil {
			return "", err
		}
		text = normalizeText(doc.Text())
	}
	if text == "" {
		return "", errors.New("no readable text")
	}
	return truncate(text, maxChars), nil
}

func normalizeText(text string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// spaceBlocks pads block elements so adjacent blocks don't run together in Text().
func spaceBlocks(html string) string {
	html = reBlockOpen.ReplaceAllString(html, " $0")
	return reBlockClose.ReplaceAllString(html, "$0 ")
}

func truncate(text string, maxChars int) string {
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return text
	}
	cut := string(runes[:maxChars])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + ellipsis
}
