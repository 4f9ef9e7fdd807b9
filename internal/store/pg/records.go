package pg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tenantcrm.dev/internal/crm"
	"tenantcrm.dev/internal/tenancy"
)

func (s *Store) List(ctx context.Context, schema crm.Schema, q tenancy.Scoped) ([]crm.Entity, int, error) {
	if s.db == nil {
		return nil, 0, errNoDB
	}
	stmt, err := q.SQL(schema.Search, 1)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`select count(*) from %s where %s`, schema.Table, stmt.Where),
		stmt.Args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", schema.Table, err)
	}
	if total == 0 {
		return []crm.Entity{}, 0, nil
	}

	items, err := s.selectRecords(ctx, schema, stmt)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Store) Get(ctx context.Context, schema crm.Schema, q tenancy.Scoped) (crm.Entity, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	stmt, err := q.SQL(nil, 1)
	if err != nil {
		return nil, err
	}
	items, err := s.selectRecords(ctx, schema, stmt)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, crm.ErrNotFound
	}
	return items[0], nil
}

func (s *Store) selectRecords(ctx context.Context, schema crm.Schema, stmt tenancy.Statement) ([]crm.Entity, error) {
	query := fmt.Sprintf(`select %s from %s where %s order by %s limit %d offset %d`,
		strings.Join(crm.AllColumns(schema), ", "), schema.Table, stmt.Where, stmt.OrderBy, stmt.Limit, stmt.Offset)
	rows, err := s.db.QueryContext(ctx, query, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", schema.Table, err)
	}
	defer rows.Close()

	out := []crm.Entity{}
	for rows.Next() {
		e := schema.New()
		if err := rows.Scan(crm.AllFields(e)...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", schema.Table, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Insert(ctx context.Context, schema crm.Schema, e crm.Entity) error {
	if s.db == nil {
		return errNoDB
	}
	cols := crm.AllColumns(schema)
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`insert into %s (%s) values (%s)`, schema.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", ")),
		crm.AllFields(e)...)
	if isForeignKeyViolation(err) {
		return crm.Invalid("ownerId", "unknown owner")
	}
	return err
}

func (s *Store) Update(ctx context.Context, schema crm.Schema, q tenancy.Scoped, e crm.Entity) error {
	if s.db == nil {
		return errNoDB
	}
	meta := e.Meta()
	sets := []string{"owner_id = $1", "updated_at = $2"}
	args := []any{meta.OwnerID, meta.UpdatedAt}
	for i, c := range schema.Columns {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+3))
	}
	args = append(args, e.Fields()...)

	stmt, err := q.SQL(nil, len(args)+1)
	if err != nil {
		return err
	}
	return s.execOne(ctx,
		fmt.Sprintf(`update %s set %s where %s`, schema.Table, strings.Join(sets, ", "), stmt.Where),
		append(args, stmt.Args...)...)
}

func (s *Store) Deactivate(ctx context.Context, schema crm.Schema, q tenancy.Scoped, at time.Time) error {
	if s.db == nil {
		return errNoDB
	}
	stmt, err := q.SQL(nil, 2)
	if err != nil {
		return err
	}
	return s.execOne(ctx,
		fmt.Sprintf(`update %s set is_active = false, updated_at = $1 where %s`, schema.Table, stmt.Where),
		append([]any{at}, stmt.Args...)...)
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return crm.Invalid("ownerId", "unknown owner")
		}
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return crm.ErrNotFound
	}
	return nil
}
