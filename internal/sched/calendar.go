package sched

import (
	"time"

	"github.com/you/prospect/internal/domain"
	"github.com/you/prospect/internal/worker"
)

const parisTZ = "Europe/Paris"

// RegisterCalendar installs the standing schedule. Heavy jobs are
// deliberately offset by an hour from each other so they never compete
// for the rate limiters or the database at the same time.
func RegisterCalendar(s *Scheduler, departments []string) error {
	// Daily energy-diagnostic harvest, one job per department.
	if err := s.Add("0 2 * * *", parisTZ, worker.QueueDPE, domain.TypeFetchDPERecords, func() []any {
		since := time.Now().AddDate(0, 0, -2).Format("2006-01-02")
		out := make([]any, 0, len(departments))
		for _, dep := range departments {
			out = append(out, &domain.FetchDPEPayload{
				Department:    dep,
				SinceDate:     since,
				EnergyClasses: []string{"F", "G"},
			})
		}
		return out
	}); err != nil {
		return err
	}

	// Daily company-liquidation harvest, one hour after the DPE run.
	if err := s.Add("0 3 * * *", parisTZ, worker.QueueBodacc, domain.TypeFetchFailingCompanies, func() []any {
		now := time.Now()
		out := make([]any, 0, len(departments))
		for _, dep := range departments {
			out = append(out, &domain.FetchLiquidationsPayload{
				Department: dep,
				FromDate:   now.AddDate(0, 0, -7).Format("2006-01-02"),
				ToDate:     now.Format("2006-01-02"),
			})
		}
		return out
	}); err != nil {
		return err
	}

	// Weekly notary-listing crawl.
	if err := s.Add("0 4 * * 1", parisTZ, worker.QueueScraping, domain.TypeScrapeNotaryListings, func() []any {
		return []any{&domain.ScrapeListingsPayload{Source: "notaires", StartPage: 1}}
	}); err != nil {
		return err
	}

	// Monthly decedent archive ingestion.
	if err := s.Add("0 5 3 * *", parisTZ, worker.QueueDeces, domain.TypeProcessDeceasesFile, func() []any {
		return []any{&domain.ProcessDeceasesFilePayload{}}
	}); err != nil {
		return err
	}

	// Daily geocode backfill for rows still missing coordinates.
	return s.Add("0 6 * * *", parisTZ, worker.QueueGeocoding, domain.TypeGeocodeBacklog, func() []any {
		return []any{&domain.GeocodeBacklogPayload{Kind: domain.KindEnergyDiagnostic, Limit: 500}}
	})
}
