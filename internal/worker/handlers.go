package worker

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/prospect/internal/crawler"
	"github.com/you/prospect/internal/deces"
	"github.com/you/prospect/internal/domain"
	"github.com/you/prospect/internal/geocode"
	"github.com/you/prospect/internal/harvest"
	"github.com/you/prospect/internal/storage"
)

// Queue names. One handler per queue; the job type selects behavior
// within the decoded payload.
const (
	QueueDPE       = "dpe"
	QueueBodacc    = "bodacc"
	QueueScraping  = "scraping"
	QueueDeces     = "deces"
	QueueGeocoding = "geocoding"
)

const insertBatchSize = 500

// Deps holds every service handle the handlers need. Built once at
// process start and passed in explicitly; there is no ambient registry.
type Deps struct {
	DPE      *harvest.DPEHarvester
	Bodacc   *harvest.LiquidationHarvester
	Crawler  *crawler.Crawler
	Geocoder *geocode.Geocoder
	Deces    *deces.Pipeline
	Store    *storage.Store
	Sources  map[string]domain.ScraperConfig
	Log      *zap.Logger
}

// RegisterAll wires every queue to its handler.
func (d *Deps) RegisterAll(p *Pool) {
	p.Register(QueueDPE, d.handleFetchDPE)
	p.Register(QueueBodacc, d.handleFetchLiquidations)
	p.Register(QueueScraping, d.handleScrapeListings)
	p.Register(QueueDeces, d.handleProcessDeceases)
	p.Register(QueueGeocoding, d.handleGeocodeBacklog)
}

func (d *Deps) handleFetchDPE(ctx context.Context, job *domain.Job, payload any) error {
	p, ok := payload.(*domain.FetchDPEPayload)
	if !ok {
		return errors.Errorf("queue %s got payload %T", job.Queue, payload)
	}

	records, err := d.DPE.FetchAll(ctx, harvest.DPEQuery{
		Department:    p.Department,
		SinceDate:     p.SinceDate,
		EnergyClasses: p.EnergyClasses,
		PageSize:      p.PageSize,
	})
	if err != nil {
		return errors.Wrapf(err, "fetch dpe records for department %s", p.Department)
	}

	rows := harvest.MapDPE(records, p.Department)
	rows, failures := d.Geocoder.GeocodeBatch(ctx, rows)
	d.Log.Info("dpe harvest enriched",
		zap.String("department", p.Department),
		zap.Int("records", len(rows)),
		zap.Int("geocode_misses", len(failures)))

	inserted, err := d.Store.InsertOpportunities(ctx, rows, insertBatchSize)
	if err != nil {
		return errors.Wrap(err, "insert dpe opportunities")
	}
	d.Log.Info("dpe opportunities persisted",
		zap.String("department", p.Department),
		zap.Int("inserted", inserted),
		zap.Int("skipped", len(rows)-inserted))
	return nil
}

func (d *Deps) handleFetchLiquidations(ctx context.Context, job *domain.Job, payload any) error {
	p, ok := payload.(*domain.FetchLiquidationsPayload)
	if !ok {
		return errors.Errorf("queue %s got payload %T", job.Queue, payload)
	}

	records, err := d.Bodacc.FetchAll(ctx, harvest.LiquidationQuery{
		Department: p.Department,
		FromDate:   p.FromDate,
		ToDate:     p.ToDate,
	})
	if err != nil {
		return errors.Wrapf(err, "fetch liquidations for department %s", p.Department)
	}

	rows := harvest.MapLiquidations(records, p.Department)
	inserted, err := d.Store.InsertOpportunities(ctx, rows, insertBatchSize)
	if err != nil {
		return errors.Wrap(err, "insert liquidation opportunities")
	}
	d.Log.Info("liquidation opportunities persisted",
		zap.String("department", p.Department),
		zap.Int("inserted", inserted))
	return nil
}

func (d *Deps) handleScrapeListings(ctx context.Context, job *domain.Job, payload any) error {
	p, ok := payload.(*domain.ScrapeListingsPayload)
	if !ok {
		return errors.Errorf("queue %s got payload %T", job.Queue, payload)
	}
	cfg, ok := d.Sources[p.Source]
	if !ok {
		return errors.Errorf("unknown scrape source %q", p.Source)
	}

	urls, err := d.Crawler.Collect(ctx, cfg, p.StartPage)
	if err != nil {
		return errors.Wrapf(err, "crawl %s", p.Source)
	}

	rows := make([]domain.Opportunity, 0, len(urls))
	for _, u := range urls {
		rows = append(rows, domain.Opportunity{
			ExternalID: u,
			Kind:       listingKind(p.Source),
			Label:      p.Source + " " + lastPathSegment(u),
			SourceURL:  u,
		})
	}

	inserted, err := d.Store.InsertOpportunities(ctx, rows, insertBatchSize)
	if err != nil {
		return errors.Wrap(err, "insert scraped listings")
	}
	d.Log.Info("scraped listings persisted",
		zap.String("source", p.Source),
		zap.Int("urls", len(urls)),
		zap.Int("inserted", inserted))
	return nil
}

func (d *Deps) handleProcessDeceases(ctx context.Context, job *domain.Job, payload any) error {
	if _, ok := payload.(*domain.ProcessDeceasesFilePayload); !ok {
		return errors.Errorf("queue %s got payload %T", job.Queue, payload)
	}

	processed, failures, err := d.Deces.Run(ctx)
	if err != nil {
		return errors.Wrap(err, "decedent file ingestion")
	}
	d.Log.Info("decedent archives processed",
		zap.Int("processed", len(processed)),
		zap.Int("failed", len(failures)))
	for _, f := range failures {
		d.Log.Error("decedent archive failed",
			zap.String("file", f.FileName),
			zap.Error(f.Err))
	}
	return nil
}

func (d *Deps) handleGeocodeBacklog(ctx context.Context, job *domain.Job, payload any) error {
	p, ok := payload.(*domain.GeocodeBacklogPayload)
	if !ok {
		return errors.Errorf("queue %s got payload %T", job.Queue, payload)
	}

	rows, err := d.Store.AddressBacklog(ctx, p.Kind, p.Limit)
	if err != nil {
		return errors.Wrap(err, "load address backlog")
	}
	if len(rows) == 0 {
		return nil
	}

	rows, failures := d.Geocoder.GeocodeBatch(ctx, rows)
	if err := d.Store.UpdateCoordinates(ctx, rows); err != nil {
		return errors.Wrap(err, "backfill coordinates")
	}
	d.Log.Info("geocode backlog processed",
		zap.String("kind", string(p.Kind)),
		zap.Int("rows", len(rows)),
		zap.Int("misses", len(failures)))
	return nil
}

func listingKind(source string) domain.OpportunityKind {
	if strings.Contains(source, "encheres") || strings.Contains(source, "licitor") {
		return domain.KindAuction
	}
	return domain.KindListing
}

func lastPathSegment(u string) string {
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}
