package harvest

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/prospect/internal/domain"
)

// DPERecord is one raw row of the energy-diagnostic registry.
type DPERecord struct {
	Numero      string   `json:"numero_dpe"`
	Address     string   `json:"adresse_ban"`
	ZipCode     string   `json:"code_postal_ban"`
	EnergyClass string   `json:"etiquette_dpe"`
	GESClass    string   `json:"etiquette_ges"`
	SurfaceM2   *float64 `json:"surface_habitable_logement"`
	Established string   `json:"date_etablissement_dpe"`
}

type dpePage struct {
	Total   int         `json:"total"`
	Results []DPERecord `json:"results"`
}

// DPEQuery filters one harvest run.
type DPEQuery struct {
	Department    string
	SinceDate     string
	EnergyClasses []string
	PageSize      int
}

// DPEHarvester paginates the energy-diagnostic registry.
type DPEHarvester struct {
	client  *Client
	baseURL string
	log     *zap.Logger
}

func NewDPEHarvester(client *Client, baseURL string, log *zap.Logger) *DPEHarvester {
	return &DPEHarvester{client: client, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

// FetchAll requests pages sequentially until a short page, a pagination
// ceiling (400 after at least one good page: log and keep what we have),
// or a first-page failure (propagated).
func (h *DPEHarvester) FetchAll(ctx context.Context, q DPEQuery) ([]DPERecord, error) {
	size := q.PageSize
	if size <= 0 {
		size = 1000
	}

	var all []DPERecord
	for page := 1; ; page++ {
		vals := url.Values{}
		vals.Set("page", strconv.Itoa(page))
		vals.Set("size", strconv.Itoa(size))
		vals.Set("qs", h.filter(q))

		var p dpePage
		err := h.client.GetPage(ctx, "dpe.fetch", h.baseURL+"/lines", vals, &p)
		if err != nil {
			if page > 1 && errors.Is(errors.Cause(err), ErrBadRequest) {
				h.log.Info("pagination ceiling reached",
					zap.String("department", q.Department),
					zap.Int("page", page),
					zap.Int("records", len(all)))
				return all, nil
			}
			return all, errors.Wrapf(err, "dpe page %d (department %s)", page, q.Department)
		}

		all = append(all, p.Results...)
		if len(p.Results) < size {
			return all, nil
		}
	}
}

func (h *DPEHarvester) filter(q DPEQuery) string {
	var parts []string
	if q.Department != "" {
		parts = append(parts, "code_insee_ban:"+q.Department+"*")
	}
	if q.SinceDate != "" {
		parts = append(parts, "date_etablissement_dpe:[\""+q.SinceDate+"\" TO *]")
	}
	if len(q.EnergyClasses) > 0 {
		parts = append(parts, "etiquette_dpe:("+strings.Join(q.EnergyClasses, " OR ")+")")
	}
	return strings.Join(parts, " AND ")
}

// MapDPE normalizes raw registry rows into opportunities. The registry
// row number is the dedup key.
func MapDPE(records []DPERecord, department string) []domain.Opportunity {
	out := make([]domain.Opportunity, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Numero) == "" {
			continue
		}
		o := domain.Opportunity{
			ExternalID:  r.Numero,
			Kind:        domain.KindEnergyDiagnostic,
			Label:       "DPE " + r.EnergyClass + " " + r.Address,
			Address:     r.Address,
			ZipCode:     r.ZipCode,
			Department:  department,
			EnergyClass: r.EnergyClass,
			GESClass:    r.GESClass,
			SurfaceM2:   r.SurfaceM2,
		}
		if t, err := time.Parse("2006-01-02", r.Established); err == nil {
			o.OpportunityDate = &t
		}
		out = append(out, o)
	}
	return out
}
