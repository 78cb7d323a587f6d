package docstore

import (
	"context"
	"errors"
	"fmt"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"sort"
)

// Postgres keeps documents as jsonb rows in the documents table (see postgres.Migrate).
type Postgres struct{ DB *pgxpool.Pool }

var _ Store = (*Postgres)(nil)

// $3 carries the plain fields, $4 the names of fields stamped with the server clock.
const fieldsExpr = `($3::jsonb || (SELECT coalesce(jsonb_object_agg(k, to_jsonb(now())), '{}'::jsonb) FROM unnest($4::text[]) AS k))`

func encodeFields(fields Fields) (string, []string, error) {
	plain := make(map[string]any, len(fields))
	var stamped []string
	for k, v := range fields {
		if IsServerTimestamp(v) {
			stamped = append(stamped, k)
			continue
		}
		plain[k] = v
	}
	sort.Strings(stamped)
	b, err := json.Marshal(plain)
	if err != nil {
		return "", nil, fmt.Errorf("encode fields: %w", err)
	}
	return string(b), stamped, nil
}

func (p *Postgres) Put(ctx context.Context, collection, id string, fields Fields) error {
	doc, stamped, err := encodeFields(fields)
	if err != nil {
		return err
	}
	_, err = p.DB.Exec(ctx, `
		INSERT INTO documents (collection, id, fields) VALUES ($1, $2, `+fieldsExpr+`)
		ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()`,
		collection, id, doc, stamped)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, collection, id string, fields Fields) error {
	doc, stamped, err := encodeFields(fields)
	if err != nil {
		return err
	}
	ct, err := p.DB.Exec(ctx, `
		INSERT INTO documents (collection, id, fields) VALUES ($1, $2, `+fieldsExpr+`)
		ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, doc, stamped)
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("create %s/%s: %w", collection, id, ErrAlreadyExists)
	}
	return nil
}

func (p *Postgres) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := uuid.NewString()
	if err := p.Create(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) Upsert(ctx context.Context, collection, id string, fields Fields) (bool, error) {
	doc, stamped, err := encodeFields(fields)
	if err != nil {
		return false, err
	}
	var created bool
	// xmax is 0 only for freshly inserted rows.
	err = p.DB.QueryRow(ctx, `
		INSERT INTO documents (collection, id, fields) VALUES ($1, $2, `+fieldsExpr+`)
		ON CONFLICT (collection, id) DO UPDATE
		   SET fields = documents.fields || EXCLUDED.fields, updated_at = now()
		RETURNING (xmax = 0)`,
		collection, id, doc, stamped).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return created, nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, fields Fields) error {
	doc, stamped, err := encodeFields(fields)
	if err != nil {
		return err
	}
	ct, err := p.DB.Exec(ctx, `
		UPDATE documents SET fields = fields || `+fieldsExpr+`, updated_at = now()
		WHERE collection = $1 AND id = $2`,
		collection, id, doc, stamped)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	d := Document{Collection: collection, ID: id}
	var raw []byte
	err := p.DB.QueryRow(ctx, `
		SELECT fields, created_at, updated_at FROM documents
		WHERE collection = $1 AND id = $2`, collection, id).Scan(&raw, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(raw, &d.Fields); err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return d, nil
}

func (p *Postgres) QueryEquals(ctx context.Context, collection, field string, value any) ([]Document, error) {
	filter, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	rows, err := p.DB.Query(ctx, `
		SELECT id, fields, created_at, updated_at FROM documents
		WHERE collection = $1 AND fields @> $2::jsonb
		ORDER BY created_at, id`, collection, string(filter))
	if err != nil {
		return nil, fmt.Errorf("query %s where %s: %w", collection, field, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		d := Document{Collection: collection}
		var raw []byte
		if err := rows.Scan(&d.ID, &raw, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &d.Fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, d.ID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
