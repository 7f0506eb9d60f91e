package crawler

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const navTimeout = 45 * time.Second

// ChromeFetcher renders pages in a headless Chrome instance.
type ChromeFetcher struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	log      *zap.Logger
}

func NewChromeFetcher(parent context.Context, log *zap.Logger) *ChromeFetcher {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(parent, opts...)
	return &ChromeFetcher{allocCtx: allocCtx, cancel: cancel, log: log}
}

func (f *ChromeFetcher) Close() { f.cancel() }

// Open navigates to url, waits for the document, dismisses any consent
// overlay on the first page, and returns the rendered HTML.
func (f *ChromeFetcher) Open(ctx context.Context, url string, firstPage bool) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.allocCtx)
	defer cancelTab()
	tabCtx, cancelTO := context.WithTimeout(tabCtx, navTimeout)
	defer cancelTO()

	var html string
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	); err != nil {
		return "", errors.Wrapf(err, "navigate %s", url)
	}

	if firstPage {
		DismissConsent(tabCtx, f.log)
	}

	if err := chromedp.Run(tabCtx,
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return "", errors.Wrapf(err, "read page %s", url)
	}
	return html, nil
}
