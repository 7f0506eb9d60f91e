package crawler

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const consentTimeout = 3 * time.Second

// ConsentStrategy is one way of finding and clicking a cookie-consent
// control. Strategies are tried in order; each may fail on its own and
// no match at all is not an error.
type ConsentStrategy struct {
	Name string
	Run  func(ctx context.Context) error
}

func clickSelector(name, sel string) ConsentStrategy {
	return ConsentStrategy{
		Name: name,
		Run: func(ctx context.Context) error {
			return chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
		},
	}
}

func clickButtonByText(name string, accepted ...string) ConsentStrategy {
	return ConsentStrategy{
		Name: name,
		Run: func(ctx context.Context) error {
			var nodes []*cdp.Node
			if err := chromedp.Run(ctx, chromedp.Nodes("button", &nodes, chromedp.ByQueryAll)); err != nil {
				return err
			}
			for _, n := range nodes {
				text := strings.ToLower(strings.TrimSpace(nodeText(n)))
				for _, want := range accepted {
					if strings.Contains(text, want) {
						return chromedp.Run(ctx, chromedp.MouseClickNode(n))
					}
				}
			}
			return context.DeadlineExceeded
		},
	}
}

func nodeText(n *cdp.Node) string {
	var b strings.Builder
	for _, c := range n.Children {
		if c.NodeValue != "" {
			b.WriteString(c.NodeValue)
		}
	}
	return b.String()
}

// defaultConsentStrategies covers the common consent-manager widgets on
// the target sites, most specific first.
var defaultConsentStrategies = []ConsentStrategy{
	clickSelector("didomi-agree", "#didomi-notice-agree-button"),
	clickSelector("onetrust-accept", "#onetrust-accept-btn-handler"),
	clickSelector("axeptio-accept", "#axeptio_btn_acceptAll"),
	clickButtonByText("text-accept", "tout accepter", "accepter", "accept all", "j'accepte"),
}

// DismissConsent tries each strategy in order, short-circuiting on the
// first success and ignoring individual failures. No match is not an
// error.
func DismissConsent(ctx context.Context, log *zap.Logger) {
	if name, ok := dismissWith(ctx, defaultConsentStrategies); ok {
		log.Debug("consent dismissed", zap.String("strategy", name))
		return
	}
	log.Debug("no consent overlay matched")
}

func dismissWith(ctx context.Context, strategies []ConsentStrategy) (string, bool) {
	for _, s := range strategies {
		sctx, cancel := context.WithTimeout(ctx, consentTimeout)
		err := s.Run(sctx)
		cancel()
		if err == nil {
			return s.Name, true
		}
	}
	return "", false
}
