package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rental_insights/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valNonEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) UpsertProperty(ctx context.Context, p domain.Property) error {
	sources, err := json.Marshal(p.DataSources)
	if err != nil {
		return fmt.Errorf("marshal data sources: %w", err)
	}
	metrics, err := json.Marshal(p.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	_, err = r.db.ExecContext(ctx, upsertPropertySQL,
		p.ID,
		p.Name,
		p.StandardName,
		domain.NameKey(p.StandardName),
		valStr(p.AirbnbURL),
		string(sources),
		string(metrics),
		p.Health,
		p.DataCompleteness,
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC(),
	)
	return err
}

func (r *Repo) DeleteProperty(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deletePropertySQL, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) LogIngest(ctx context.Context, run domain.IngestRun) error {
	_, err := r.db.ExecContext(ctx, insertIngestRunSQL,
		string(run.Source),
		run.RowsSeen,
		run.RowsDropped,
		run.Properties,
		run.Status,
		valNonEmpty(run.Detail),
	)
	return err
}

func (r *Repo) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	return r.getOne(ctx, getPropertySQL, id)
}

// GetPropertyByStandardName matches on the name key, so spellings that differ
// only in case or punctuation find the same row.
func (r *Repo) GetPropertyByStandardName(ctx context.Context, std string) (domain.Property, error) {
	return r.getOne(ctx, getPropertyByStandardNameSQL, domain.NameKey(std))
}

func (r *Repo) getOne(ctx context.Context, query string, arg any) (domain.Property, error) {
	p, err := scanProperty(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, err
}

func (r *Repo) ListProperties(ctx context.Context, q domain.PropertiesQuery) (domain.PropertiesPage, error) {
	after := ""
	if q.Cursor != nil {
		after = *q.Cursor
	}
	rows, err := r.db.QueryContext(ctx, listPropertiesSQL, after, q.Limit+1)
	if err != nil {
		return domain.PropertiesPage{}, err
	}
	defer rows.Close()

	out := make([]domain.Property, 0, q.Limit)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return domain.PropertiesPage{}, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return domain.PropertiesPage{}, err
	}

	var pg domain.PropertiesPage
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
		next := out[len(out)-1].ID
		pg.NextCursor = &next
	}
	pg.Items = out
	return pg, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProperty(s scanner) (domain.Property, error) {
	var p domain.Property
	var url sql.NullString
	var sourcesJSON, metricsJSON []byte
	if err := s.Scan(
		&p.ID,
		&p.Name,
		&p.StandardName,
		&url,
		&sourcesJSON,
		&metricsJSON,
		&p.Health,
		&p.DataCompleteness,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return domain.Property{}, err
	}
	if url.Valid && url.String != "" {
		u := url.String
		p.AirbnbURL = &u
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &p.DataSources); err != nil {
			return domain.Property{}, fmt.Errorf("decode data sources of %s: %w", p.ID, err)
		}
	}
	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &p.Metrics); err != nil {
			return domain.Property{}, fmt.Errorf("decode metrics of %s: %w", p.ID, err)
		}
	}
	return p, nil
}
