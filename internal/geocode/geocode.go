// Package geocode resolves free-text addresses to coordinates.
package geocode

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/prospect/internal/domain"
	"github.com/you/prospect/internal/harvest"
)

// Matches below this score are treated as misses even though the HTTP
// call succeeded. Precision over recall.
const ScoreThreshold = 0.5

const progressEvery = 100

type searchResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lng, lat]
		} `json:"geometry"`
		Properties struct {
			Label    string  `json:"label"`
			Postcode string  `json:"postcode"`
			Score    float64 `json:"score"`
		} `json:"properties"`
	} `json:"features"`
}

// Geocoder queries a BAN-style address search endpoint through the
// shared rate limiter and retry policy.
type Geocoder struct {
	client  *harvest.Client
	baseURL string
	log     *zap.Logger
}

func New(client *harvest.Client, baseURL string, log *zap.Logger) *Geocoder {
	return &Geocoder{client: client, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

// Geocode resolves one address. A nil result with nil error means the
// best candidate scored below the threshold.
func (g *Geocoder) Geocode(ctx context.Context, address string) (*domain.GeocodeResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, nil
	}

	vals := url.Values{}
	vals.Set("q", address)
	vals.Set("limit", "1")

	var resp searchResponse
	if err := g.client.GetPage(ctx, "geocode", g.baseURL+"/search", vals, &resp); err != nil {
		return nil, errors.Wrapf(err, "geocode %q", address)
	}
	if len(resp.Features) == 0 {
		return nil, nil
	}

	top := resp.Features[0]
	if top.Properties.Score < ScoreThreshold {
		return nil, nil
	}
	if len(top.Geometry.Coordinates) < 2 {
		return nil, nil
	}
	return &domain.GeocodeResult{
		FormattedAddress: top.Properties.Label,
		ZipCode:          top.Properties.Postcode,
		Longitude:        top.Geometry.Coordinates[0],
		Latitude:         top.Geometry.Coordinates[1],
		Score:            top.Properties.Score,
	}, nil
}

// Failure records one address that could not be resolved.
type Failure struct {
	Index   int
	Address string
	Err     error
}

// GeocodeBatch enriches rows in place. Misses and transport failures
// are collected, logged in aggregate, and never silently dropped.
// Progress is logged every 100 rows for observability on long runs.
func (g *Geocoder) GeocodeBatch(ctx context.Context, rows []domain.Opportunity) ([]domain.Opportunity, []Failure) {
	var failures []Failure
	start := time.Now()

	for i := range rows {
		if i > 0 && i%progressEvery == 0 {
			g.log.Info("geocoding progress",
				zap.Int("done", i),
				zap.Int("total", len(rows)),
				zap.Int("failures", len(failures)),
				zap.Duration("elapsed", time.Since(start)))
		}

		res, err := g.Geocode(ctx, rows[i].Address)
		if err != nil {
			failures = append(failures, Failure{Index: i, Address: rows[i].Address, Err: err})
			continue
		}
		if res == nil {
			failures = append(failures, Failure{Index: i, Address: rows[i].Address})
			continue
		}

		rows[i].Latitude = &res.Latitude
		rows[i].Longitude = &res.Longitude
		if rows[i].ZipCode == "" {
			rows[i].ZipCode = res.ZipCode
		}
		if res.FormattedAddress != "" {
			rows[i].Address = res.FormattedAddress
		}
	}

	if len(failures) > 0 {
		g.log.Warn("geocoding batch finished with misses",
			zap.Int("total", len(rows)),
			zap.Int("failures", len(failures)))
	}
	return rows, failures
}
