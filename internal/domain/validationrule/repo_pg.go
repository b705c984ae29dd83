package validationrule

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

type ruleRepoPG struct{ pool *pgxpool.Pool }

func NewRuleRepoPG(pool *pgxpool.Pool) RuleRepository {
	return &ruleRepoPG{pool: pool}
}

func (r *ruleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const ruleCols = `id, name, description, left_expression, left_policy, operator, right_expression, right_policy, created_at, updated_at`

func (r *ruleRepoPG) scanRow(row pgx.Row) (*Rule, error) {
	var rule Rule
	var leftPolicy, rightPolicy string
	err := row.Scan(&rule.ID, &rule.Name, &rule.Description, &rule.Left, &leftPolicy,
		&rule.Operator, &rule.Right, &rightPolicy, &rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rule.LeftPolicy, err = expression.ParseMissingValuePolicy(leftPolicy); err != nil {
		return nil, err
	}
	if rule.RightPolicy, err = expression.ParseMissingValuePolicy(rightPolicy); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepoPG) Create(ctx context.Context, rule *Rule) error {
	rule.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO validation_rule (id, name, description, left_expression, left_policy, operator, right_expression, right_policy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		rule.ID, rule.Name, rule.Description, rule.Left, rule.LeftPolicy.String(),
		string(rule.Operator), rule.Right, rule.RightPolicy.String(),
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
}

func (r *ruleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Rule, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+ruleCols+` FROM validation_rule WHERE id = $1`, id))
}

func (r *ruleRepoPG) Update(ctx context.Context, rule *Rule) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE validation_rule SET name=$2, description=$3, left_expression=$4, left_policy=$5,
			operator=$6, right_expression=$7, right_policy=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		rule.ID, rule.Name, rule.Description, rule.Left, rule.LeftPolicy.String(),
		string(rule.Operator), rule.Right, rule.RightPolicy.String(),
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *ruleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM validation_rule WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ruleRepoPG) List(ctx context.Context, limit, offset int) ([]*Rule, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM validation_rule`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ruleCols+` FROM validation_rule ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Rule
	for rows.Next() {
		rule, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rule)
	}
	return items, total, rows.Err()
}
