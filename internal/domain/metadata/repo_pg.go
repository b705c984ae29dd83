package metadata

import (
	"context"
	"errors"

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

type objectRepoPG struct{ pool *pgxpool.Pool }

func NewObjectRepoPG(pool *pgxpool.Pool) ObjectRepository {
	return &objectRepoPG{pool: pool}
}

func (r *objectRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const objectCols = `class, uid, name, code, value, member_count, created_at, updated_at`

func scanObject(row pgx.Row) (*Object, error) {
	var o Object
	var class string
	if err := row.Scan(&class, &o.UID, &o.Name, &o.Code, &o.Value, &o.MemberCount, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	o.Class = expression.ObjectClass(class)
	return &o, nil
}

func (r *objectRepoPG) Upsert(ctx context.Context, o *Object) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO metadata_object (class, uid, name, code, value, member_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (class, uid) DO UPDATE SET
			name = EXCLUDED.name, code = EXCLUDED.code, value = EXCLUDED.value,
			member_count = EXCLUDED.member_count, updated_at = NOW()
		RETURNING created_at, updated_at`,
		string(o.Class), o.UID, o.Name, o.Code, o.Value, o.MemberCount,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *objectRepoPG) Get(ctx context.Context, class expression.ObjectClass, uid string) (*Object, error) {
	return scanObject(r.conn(ctx).QueryRow(ctx,
		`SELECT `+objectCols+` FROM metadata_object WHERE class = $1 AND uid = $2`, string(class), uid))
}

func (r *objectRepoPG) Delete(ctx context.Context, class expression.ObjectClass, uid string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM metadata_object WHERE class = $1 AND uid = $2`, string(class), uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *objectRepoPG) List(ctx context.Context, class expression.ObjectClass, limit, offset int) ([]*Object, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM metadata_object WHERE $1 = '' OR class = $1`, string(class)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+objectCols+` FROM metadata_object
		WHERE $1 = '' OR class = $1 ORDER BY class, name, uid LIMIT $2 OFFSET $3`, string(class), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectObjects(rows)
	return items, total, err
}

func (r *objectRepoPG) All(ctx context.Context) ([]*Object, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+objectCols+` FROM metadata_object ORDER BY class, uid`)
	if err != nil {
		return nil, err
	}
	return collectObjects(rows)
}

func collectObjects(rows pgx.Rows) ([]*Object, error) {
	defer rows.Close()
	var items []*Object
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}
