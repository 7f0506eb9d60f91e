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

// LiquidationRecord is one raw company-insolvency announcement.
type LiquidationRecord struct {
	RecordID string `json:"recordid"`
	Fields   struct {
		CompanyName  string `json:"commercant"`
		City         string `json:"ville"`
		ZipCode      string `json:"cp"`
		Department   string `json:"departement_nom_officiel"`
		Procedure    string `json:"familleavis_lib"`
		PublishedOn  string `json:"dateparution"`
		Registration string `json:"registre"`
	} `json:"fields"`
}

type liquidationPage struct {
	NHits   int                 `json:"nhits"`
	Records []LiquidationRecord `json:"records"`
}

// LiquidationQuery filters one harvest run.
type LiquidationQuery struct {
	Department string
	FromDate   string
	ToDate     string
	PageSize   int
}

// LiquidationHarvester paginates the company-insolvency registry. Same
// pagination contract as the DPE harvester: sequential pages, short
// page ends the run, 400 after partial success is the ceiling.
type LiquidationHarvester struct {
	client  *Client
	baseURL string
	dataset string
	log     *zap.Logger
}

func NewLiquidationHarvester(client *Client, baseURL string, log *zap.Logger) *LiquidationHarvester {
	return &LiquidationHarvester{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		dataset: "annonces-commerciales",
		log:     log,
	}
}

func (h *LiquidationHarvester) FetchAll(ctx context.Context, q LiquidationQuery) ([]LiquidationRecord, error) {
	size := q.PageSize
	if size <= 0 {
		size = 100
	}

	var all []LiquidationRecord
	for page := 0; ; page++ {
		vals := url.Values{}
		vals.Set("dataset", h.dataset)
		vals.Set("rows", strconv.Itoa(size))
		vals.Set("start", strconv.Itoa(page*size))
		vals.Set("q", h.filter(q))

		var p liquidationPage
		err := h.client.GetPage(ctx, "bodacc.fetch", h.baseURL+"/api/records/1.0/search/", vals, &p)
		if err != nil {
			if page > 0 && errors.Is(errors.Cause(err), ErrBadRequest) {
				h.log.Info("pagination ceiling reached",
					zap.String("department", q.Department),
					zap.Int("page", page),
					zap.Int("records", len(all)))
				return all, nil
			}
			return all, errors.Wrapf(err, "liquidation page %d (department %s)", page, q.Department)
		}

		all = append(all, p.Records...)
		if len(p.Records) < size {
			return all, nil
		}
	}
}

func (h *LiquidationHarvester) filter(q LiquidationQuery) string {
	parts := []string{`familleavis_lib:"procédure collective"`}
	if q.Department != "" {
		parts = append(parts, "numerodepartement:"+q.Department)
	}
	if q.FromDate != "" && q.ToDate != "" {
		parts = append(parts, "dateparution:["+q.FromDate+" TO "+q.ToDate+"]")
	}
	return strings.Join(parts, " AND ")
}

// MapLiquidations normalizes raw announcements into opportunities.
func MapLiquidations(records []LiquidationRecord, department string) []domain.Opportunity {
	out := make([]domain.Opportunity, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.RecordID) == "" {
			continue
		}
		o := domain.Opportunity{
			ExternalID:  r.RecordID,
			Kind:        domain.KindLiquidation,
			Label:       r.Fields.Procedure + " " + r.Fields.CompanyName,
			Address:     r.Fields.City,
			ZipCode:     r.Fields.ZipCode,
			Department:  department,
			CompanyName: r.Fields.CompanyName,
			Procedure:   r.Fields.Procedure,
		}
		if t, err := time.Parse("2006-01-02", r.Fields.PublishedOn); err == nil {
			o.OpportunityDate = &t
		}
		out = append(out, o)
	}
	return out
}
