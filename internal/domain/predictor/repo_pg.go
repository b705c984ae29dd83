package predictor

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/formula-engine/internal/expression"
	"github.com/ehr/formula-engine/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type predictorRepoPG struct{ pool *pgxpool.Pool }

func NewPredictorRepoPG(pool *pgxpool.Pool) PredictorRepository {
	return &predictorRepoPG{pool: pool}
}

func (r *predictorRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const predCols = `id, name, generator, missing_value_policy, sample_skip_test, output_data_element, output_integer, decimals, created_at, updated_at`

func (r *predictorRepoPG) scanRow(row pgx.Row) (*Predictor, error) {
	var p Predictor
	var policy string
	err := row.Scan(&p.ID, &p.Name, &p.Generator, &policy, &p.SampleSkipTest,
		&p.OutputDataElement, &p.OutputInteger, &p.Decimals, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Policy, err = expression.ParseMissingValuePolicy(policy); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *predictorRepoPG) Create(ctx context.Context, p *Predictor) error {
	p.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO predictor (id, name, generator, missing_value_policy, sample_skip_test, output_data_element, output_integer, decimals)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Generator, p.Policy.String(), p.SampleSkipTest, p.OutputDataElement, p.OutputInteger, p.Decimals,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (r *predictorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Predictor, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+predCols+` FROM predictor WHERE id = $1`, id))
}

func (r *predictorRepoPG) Update(ctx context.Context, p *Predictor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE predictor SET name=$2, generator=$3, missing_value_policy=$4, sample_skip_test=$5,
			output_data_element=$6, output_integer=$7, decimals=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Generator, p.Policy.String(), p.SampleSkipTest, p.OutputDataElement, p.OutputInteger, p.Decimals,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *predictorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM predictor WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *predictorRepoPG) List(ctx context.Context, limit, offset int) ([]*Predictor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM predictor`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+predCols+` FROM predictor ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Predictor
	for rows.Next() {
		p, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
