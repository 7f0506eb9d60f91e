package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/you/prospect/internal/domain"
)

type Store struct{ db *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{db} }

// InsertOpportunities bulk-writes normalized rows in fixed-size batches.
// Rows whose (external_id, kind) already exists are silently skipped:
// re-ingestion never overwrites, by design. A batch failure propagates
// and stops the run.
func (s *Store) InsertOpportunities(ctx context.Context, rows []domain.Opportunity, batchSize int) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 200
	}

	total := 0
	for i := 0; i < len(rows); i += batchSize {
		j := i + batchSize
		if j > len(rows) {
			j = len(rows)
		}
		b := &pgx.Batch{}
		count := 0
		for _, o := range rows[i:j] {
			if o.ExternalID == "" {
				continue
			}
			b.Queue(`insert into opportunities(
external_id, kind, label, address, zip_code, department,
latitude, longitude, opportunity_date,
energy_class, ges_class, surface_m2, company_name, procedure, source_url
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
on conflict (external_id, kind) do nothing`,
				o.ExternalID, o.Kind, o.Label, o.Address, o.ZipCode, o.Department,
				o.Latitude, o.Longitude, o.OpportunityDate,
				o.EnergyClass, o.GESClass, o.SurfaceM2, o.CompanyName, o.Procedure, o.SourceURL,
			)
			count++
		}
		br := s.db.SendBatch(ctx, b)
		for k := 0; k < count; k++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return total, errors.Wrapf(err, "insert batch %d..%d", i, j)
			}
			total += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return total, errors.Wrap(err, "close batch")
		}
	}
	return total, nil
}

// ScrapedFileNames returns the set of archive files already ingested.
func (s *Store) ScrapedFileNames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.Query(ctx, `select file_name from scraped_files`)
	if err != nil {
		return nil, errors.Wrap(err, "list scraped files")
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = struct{}{}
	}
	return out, rows.Err()
}

// RecordScrapedFile claims a file name. The unique constraint makes a
// concurrent double claim surface as a conflict instead of a double
// ingestion; claimed reports whether this caller won.
func (s *Store) RecordScrapedFile(ctx context.Context, fileName string) (claimed bool, err error) {
	tag, err := s.db.Exec(ctx,
		`insert into scraped_files(file_name) values ($1) on conflict (file_name) do nothing`,
		fileName)
	if err != nil {
		return false, errors.Wrapf(err, "record scraped file %s", fileName)
	}
	return tag.RowsAffected() == 1, nil
}

// AddressBacklog returns stored rows of one kind still missing
// coordinates, for the geocode backlog job.
func (s *Store) AddressBacklog(ctx context.Context, kind domain.OpportunityKind, limit int) ([]domain.Opportunity, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.Query(ctx, `
select external_id, kind, label, address, zip_code, department
  from opportunities
 where kind = $1 and latitude is null and address <> ''
 order by created_at asc
 limit $2`, kind, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query address backlog")
	}
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		var o domain.Opportunity
		if err := rows.Scan(&o.ExternalID, &o.Kind, &o.Label, &o.Address, &o.ZipCode, &o.Department); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateCoordinates backfills geocoded coordinates on existing rows.
func (s *Store) UpdateCoordinates(ctx context.Context, rows []domain.Opportunity) error {
	b := &pgx.Batch{}
	count := 0
	for _, o := range rows {
		if o.Latitude == nil || o.Longitude == nil {
			continue
		}
		b.Queue(`update opportunities
set latitude = $1, longitude = $2, zip_code = coalesce(nullif($3,''), zip_code)
where external_id = $4 and kind = $5 and latitude is null`,
			o.Latitude, o.Longitude, o.ZipCode, o.ExternalID, o.Kind)
		count++
	}
	br := s.db.SendBatch(ctx, b)
	defer br.Close()
	for k := 0; k < count; k++ {
		if _, err := br.Exec(); err != nil {
			return errors.Wrap(err, "update coordinates")
		}
	}
	return nil
}

// Ping verifies connectivity for the liveness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
