package indicator

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/formula-engine/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type indicatorRepoPG struct{ pool *pgxpool.Pool }

func NewIndicatorRepoPG(pool *pgxpool.Pool) IndicatorRepository {
	return &indicatorRepoPG{pool: pool}
}

func (r *indicatorRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const indCols = `id, name, code, numerator, denominator, factor, annualized, decimals, created_at, updated_at`

func (r *indicatorRepoPG) scanRow(row pgx.Row) (*Indicator, error) {
	var ind Indicator
	err := row.Scan(&ind.ID, &ind.Name, &ind.Code, &ind.Numerator, &ind.Denominator,
		&ind.Factor, &ind.Annualized, &ind.Decimals, &ind.CreatedAt, &ind.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &ind, err
}

func (r *indicatorRepoPG) Create(ctx context.Context, ind *Indicator) error {
	ind.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO indicator (id, name, code, numerator, denominator, factor, annualized, decimals)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		ind.ID, ind.Name, ind.Code, ind.Numerator, ind.Denominator, ind.Factor, ind.Annualized, ind.Decimals,
	).Scan(&ind.CreatedAt, &ind.UpdatedAt)
}

func (r *indicatorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Indicator, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+indCols+` FROM indicator WHERE id = $1`, id))
}

func (r *indicatorRepoPG) Update(ctx context.Context, ind *Indicator) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE indicator SET name=$2, code=$3, numerator=$4, denominator=$5, factor=$6,
			annualized=$7, decimals=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		ind.ID, ind.Name, ind.Code, ind.Numerator, ind.Denominator, ind.Factor, ind.Annualized, ind.Decimals,
	).Scan(&ind.CreatedAt, &ind.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *indicatorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM indicator WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *indicatorRepoPG) List(ctx context.Context, limit, offset int) ([]*Indicator, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM indicator`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+indCols+` FROM indicator ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Indicator
	for rows.Next() {
		ind, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ind)
	}
	return items, total, rows.Err()
}
