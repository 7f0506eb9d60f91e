// Package crawler extracts detail-page URLs from paginated listing
// indices rendered in a headless browser.
package crawler

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/you/prospect/internal/domain"
)

// Fetcher renders one index page and returns its HTML. firstPage tells
// networked implementations to run consent dismissal once.
type Fetcher interface {
	Open(ctx context.Context, url string, firstPage bool) (html string, err error)
}

type Crawler struct {
	fetcher Fetcher
	log     *zap.Logger
}

func New(fetcher Fetcher, log *zap.Logger) *Crawler {
	return &Crawler{fetcher: fetcher, log: log}
}

// Collect walks index pages from startPage, accumulating de-duplicated
// detail-page URLs that match the configured link pattern. Stops on
// maxPages, on a page without a next-page control, or when a page past
// the first contributes zero new URLs. Crawling is best-effort: a
// mid-crawl error returns whatever was collected so far.
func (c *Crawler) Collect(ctx context.Context, cfg domain.ScraperConfig, startPage int) ([]string, error) {
	pattern, err := regexp.Compile(cfg.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("crawler: bad link pattern %q: %w", cfg.LinkPattern, err)
	}
	if startPage < 1 {
		startPage = 1
	}
	maxPages := cfg.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	seen := make(map[string]struct{})
	var urls []string

	for page := startPage; page < startPage+maxPages; page++ {
		html, err := c.fetcher.Open(ctx, pageURL(cfg.BaseURL, page), page == startPage)
		if err != nil {
			c.log.Warn("crawl aborted mid-run, keeping partial results",
				zap.Int("page", page),
				zap.Int("collected", len(urls)),
				zap.Error(err))
			return urls, nil
		}

		links, hasNext, err := extract(html, cfg.BaseURL, pattern)
		if err != nil {
			c.log.Warn("page parse failed, keeping partial results",
				zap.Int("page", page), zap.Error(err))
			return urls, nil
		}

		fresh := 0
		for _, l := range links {
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			urls = append(urls, l)
			fresh++
		}
		c.log.Info("index page crawled",
			zap.Int("page", page),
			zap.Int("links", len(links)),
			zap.Int("new", fresh))

		if !hasNext {
			break
		}
		if fresh == 0 && page > startPage {
			// Exhausted or duplicate content; no point going deeper.
			break
		}
		if page+1 >= startPage+maxPages {
			break
		}
		if cfg.DelayBetweenPages > 0 {
			select {
			case <-time.After(cfg.DelayBetweenPages):
			case <-ctx.Done():
				return urls, nil
			}
		}
	}
	return urls, nil
}

func pageURL(base string, page int) string {
	if page <= 1 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%spage=%d", base, sep, page)
}

// extract pulls candidate links and the next-page state out of a
// rendered index page.
func extract(html, base string, pattern *regexp.Regexp) (links []string, hasNext bool, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, false, err
	}

	set := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = strings.TrimRight(baseOrigin(base), "/") + href
		}
		if pattern.MatchString(href) {
			set[href] = struct{}{}
		}
	})

	links = make([]string, 0, len(set))
	for l := range set {
		links = append(links, l)
	}
	sort.Strings(links)

	next := doc.Find(`a[rel="next"], .pagination .next a, a.next-page`)
	hasNext = next.Length() > 0 && !next.First().HasClass("disabled")
	return links, hasNext, nil
}

func baseOrigin(base string) string {
	if i := strings.Index(base, "://"); i >= 0 {
		if j := strings.Index(base[i+3:], "/"); j >= 0 {
			return base[:i+3+j]
		}
	}
	return base
}
