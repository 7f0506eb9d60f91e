package crawler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/prospect/internal/domain"
)

type fakeFetcher struct {
	pages map[string]string
	errOn string
	calls []string
}

func (f *fakeFetcher) Open(_ context.Context, url string, _ bool) (string, error) {
	f.calls = append(f.calls, url)
	if f.errOn != "" && url == f.errOn {
		return "", errors.New("navigation failed")
	}
	html, ok := f.pages[url]
	if !ok {
		return "", errors.New("no such page")
	}
	return html, nil
}

func indexPage(hasNext bool, links ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, l := range links {
		fmt.Fprintf(&b, `<a href=%q>annonce</a>`, l)
	}
	if hasNext {
		b.WriteString(`<a rel="next" href="#">suivant</a>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func testConfig(maxPages int) domain.ScraperConfig {
	return domain.ScraperConfig{
		BaseURL:           "https://site.example/liste",
		LinkPattern:       `/annonce/`,
		MaxPages:          maxPages,
		DelayBetweenPages: time.Millisecond,
	}
}

func TestCollectWalksUntilNoNextPage(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://site.example/liste":        indexPage(true, "/annonce/1", "/annonce/2"),
		"https://site.example/liste?page=2": indexPage(false, "/annonce/3"),
	}}
	c := New(f, zap.NewNop())

	urls, err := c.Collect(context.Background(), testConfig(10), 1)
	require.NoError(t, err)
	assert.Len(t, urls, 3)
	assert.Len(t, f.calls, 2)
}

func TestCollectStopsWhenPageYieldsNothingNew(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://site.example/liste":        indexPage(true, "/annonce/1", "/annonce/2"),
		"https://site.example/liste?page=2": indexPage(true, "/annonce/3"),
		"https://site.example/liste?page=3": indexPage(true, "/annonce/1", "/annonce/3"),
		"https://site.example/liste?page=4": indexPage(true, "/annonce/9"),
	}}
	c := New(f, zap.NewNop())

	urls, err := c.Collect(context.Background(), testConfig(10), 1)
	require.NoError(t, err)
	// Page 3 contributed zero new URLs, so page 4 is never visited.
	assert.Len(t, urls, 3)
	assert.Len(t, f.calls, 3)
}

func TestCollectHonorsMaxPages(t *testing.T) {
	pages := map[string]string{"https://site.example/liste": indexPage(true, "/annonce/1")}
	for i := 2; i <= 9; i++ {
		pages[fmt.Sprintf("https://site.example/liste?page=%d", i)] = indexPage(true, fmt.Sprintf("/annonce/%d", i))
	}
	f := &fakeFetcher{pages: pages}
	c := New(f, zap.NewNop())

	urls, err := c.Collect(context.Background(), testConfig(3), 1)
	require.NoError(t, err)
	assert.Len(t, urls, 3)
	assert.Len(t, f.calls, 3)
}

func TestCollectMidCrawlErrorKeepsPartialResults(t *testing.T) {
	f := &fakeFetcher{
		pages: map[string]string{
			"https://site.example/liste":        indexPage(true, "/annonce/1", "/annonce/2"),
			"https://site.example/liste?page=3": indexPage(false, "/annonce/4"),
		},
		errOn: "https://site.example/liste?page=2",
	}
	c := New(f, zap.NewNop())

	urls, err := c.Collect(context.Background(), testConfig(10), 1)
	require.NoError(t, err, "crawling is best-effort")
	assert.Len(t, urls, 2)
}

func TestCollectDeduplicatesAcrossPages(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://site.example/liste":        indexPage(true, "/annonce/1", "/annonce/1", "/annonce/2"),
		"https://site.example/liste?page=2": indexPage(false, "/annonce/2", "/annonce/3"),
	}}
	c := New(f, zap.NewNop())

	urls, err := c.Collect(context.Background(), testConfig(10), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"https://site.example/annonce/1",
		"https://site.example/annonce/2",
		"https://site.example/annonce/3",
	}, urls)
}

func TestCollectIgnoresNonMatchingLinks(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://site.example/liste": indexPage(false, "/annonce/1", "/mentions-legales", "/contact"),
	}}
	c := New(f, zap.NewNop())

	urls, err := c.Collect(context.Background(), testConfig(5), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://site.example/annonce/1"}, urls)
}

func TestDismissWithShortCircuitsOnFirstSuccess(t *testing.T) {
	var tried []string
	strategy := func(name string, err error) ConsentStrategy {
		return ConsentStrategy{Name: name, Run: func(context.Context) error {
			tried = append(tried, name)
			return err
		}}
	}

	name, ok := dismissWith(context.Background(), []ConsentStrategy{
		strategy("first", errors.New("not found")),
		strategy("second", nil),
		strategy("third", nil),
	})
	require.True(t, ok)
	assert.Equal(t, "second", name)
	assert.Equal(t, []string{"first", "second"}, tried)
}

func TestDismissWithNoMatchIsNotAnError(t *testing.T) {
	_, ok := dismissWith(context.Background(), []ConsentStrategy{
		{Name: "a", Run: func(context.Context) error { return errors.New("nope") }},
	})
	assert.False(t, ok)
}
