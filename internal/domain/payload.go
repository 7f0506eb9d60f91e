package domain

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type JobType string

const (
	TypeFetchDPERecords       JobType = "fetch-dpe-records"
	TypeFetchFailingCompanies JobType = "fetch-failing-companies"
	TypeScrapeNotaryListings  JobType = "scrape-notary-listings"
	TypeProcessDeceasesFile   JobType = "process-deceases-file"
	TypeGeocodeBacklog        JobType = "geocode-backlog"
)

// FetchDPEPayload asks for energy-diagnostic records of one department.
type FetchDPEPayload struct {
	Department    string   `json:"department"`
	SinceDate     string   `json:"since_date"`
	EnergyClasses []string `json:"energy_classes,omitempty"`
	PageSize      int      `json:"page_size,omitempty"`
}

// FetchLiquidationsPayload asks for company-insolvency records.
type FetchLiquidationsPayload struct {
	Department string `json:"department"`
	FromDate   string `json:"from_date"`
	ToDate     string `json:"to_date"`
}

// ScrapeListingsPayload drives one browser crawl of a listing index.
type ScrapeListingsPayload struct {
	Source    string `json:"source"`
	StartPage int    `json:"start_page,omitempty"`
}

// ProcessDeceasesFilePayload triggers the bulk archive ingestion run.
// An empty FileName means "discover and process everything new".
type ProcessDeceasesFilePayload struct {
	FileName string `json:"file_name,omitempty"`
}

// GeocodeBacklogPayload re-runs geocoding for stored rows lacking coordinates.
type GeocodeBacklogPayload struct {
	Kind  OpportunityKind `json:"kind"`
	Limit int             `json:"limit,omitempty"`
}

// DecodePayload decodes raw into the concrete payload struct for t.
// An unknown job type is an error, never a silently-empty payload.
func DecodePayload(t JobType, raw []byte) (any, error) {
	var dst any
	switch t {
	case TypeFetchDPERecords:
		dst = &FetchDPEPayload{}
	case TypeFetchFailingCompanies:
		dst = &FetchLiquidationsPayload{}
	case TypeScrapeNotaryListings:
		dst = &ScrapeListingsPayload{}
	case TypeProcessDeceasesFile:
		dst = &ProcessDeceasesFilePayload{}
	case TypeGeocodeBacklog:
		dst = &GeocodeBacklogPayload{}
	default:
		return nil, errors.Errorf("unknown job type %q", t)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return nil, errors.Wrapf(err, "decode %s payload", t)
	}
	return dst, nil
}

// EncodePayload is the enqueue-side counterpart of DecodePayload.
func EncodePayload(p any) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, errors.Wrap(err, "encode payload")
	}
	return b, nil
}
