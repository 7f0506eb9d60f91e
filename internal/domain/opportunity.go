package domain

import "time"

type OpportunityKind string

const (
	KindAuction          OpportunityKind = "auction"
	KindListing          OpportunityKind = "listing"
	KindEnergyDiagnostic OpportunityKind = "energy-diagnostic"
	KindLiquidation      OpportunityKind = "liquidation"
	KindSuccession       OpportunityKind = "succession"
)

// Opportunity is the normalized target record. ExternalID is the
// source-provided key; no two rows share an ExternalID within one kind.
// Re-ingesting an existing ExternalID is a no-op, never an overwrite.
type Opportunity struct {
	ExternalID      string
	Kind            OpportunityKind
	Label           string
	Address         string
	ZipCode         string
	Department      string
	Latitude        *float64
	Longitude       *float64
	OpportunityDate *time.Time

	// Kind-specific fields, nil/empty when not applicable.
	EnergyClass string
	GESClass    string
	SurfaceM2   *float64
	CompanyName string
	Procedure   string
	SourceURL   string
}

// GeocodeResult is ephemeral: produced per lookup, merged into an
// Opportunity, never persisted on its own.
type GeocodeResult struct {
	FormattedAddress string
	ZipCode          string
	Latitude         float64
	Longitude        float64
	Score            float64
}

// ScrapedFile marks a bulk archive file as already ingested. It is the
// sole idempotency guard for the file pipeline.
type ScrapedFile struct {
	ID        int64
	FileName  string
	CreatedAt time.Time
}

// ScraperConfig is the immutable per-crawl configuration.
type ScraperConfig struct {
	BaseURL           string        `yaml:"base_url"`
	LinkPattern       string        `yaml:"link_pattern"`
	MaxPages          int           `yaml:"max_pages"`
	DelayBetweenPages time.Duration `yaml:"delay_between_pages"`
}
