package main

import (
	"context"
	"fmt"
)

// shadowColumn returns the temporary column name used while converting one
// dependent column. Deterministic; it exists only inside the transaction.
func shadowColumn(column string) string {
	return column + "__rekey"
}

// rewriteDependent converts one dependent foreign-key column to the new
// type: adds a nullable shadow column, fills it from the identity mapping,
// then swaps it in for the old column. The column's foreign-key constraint
// must already be gone; the orchestrator drops every discovered constraint
// before the primary key, since PostgreSQL refuses to drop a key whose
// backing index still has dependents.
//
// Old values absent from the mapping are orphaned references. The shadow
// column stays NULL for those rows and every distinct orphaned value is
// collected into the result; the run never aborts on orphans, and never
// fabricates a mapping for them.
func rewriteDependent(ctx context.Context, x executor, schema string, ref ForeignKeyReference, mapping *IdentityMapping, newType string) (RewriteResult, error) {
	res := RewriteResult{Table: ref.Table, Column: ref.Column}
	tbl := qualified(schema, ref.Table)

	// Re-verify against the live catalog; the discovery snapshot may be stale.
	declared, exists, err := columnType(ctx, x, schema, ref.Table, ref.Column)
	if err != nil {
		return res, err
	}
	if !exists {
		return res, &UnsupportedSchemaError{
			Table:      ref.Table,
			Column:     ref.Column,
			Constraint: ref.Constraint,
			Reason:     "dependent column no longer exists",
		}
	}
	if sameColumnType(declared, newType) {
		// A prior run already converted this column.
		res.Skipped = true
		return res, nil
	}

	shadow := shadowColumn(ref.Column)
	addQ := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", tbl, pgIdent(shadow), newType)
	if _, err := x.Exec(ctx, addQ); err != nil {
		return res, fmt.Errorf("add shadow column %s.%s: %w", ref.Table, shadow, err)
	}

	fillQ := fmt.Sprintf(
		"UPDATE %s t SET %s = m.new_id FROM %s m WHERE t.%s = m.old_id",
		tbl, pgIdent(shadow), pgIdent(mapping.MapTable), pgIdent(ref.Column),
	)
	tag, err := x.Exec(ctx, fillQ)
	if err != nil {
		return res, fmt.Errorf("populate shadow column %s.%s: %w", ref.Table, shadow, err)
	}
	res.Rows = tag.RowsAffected()

	orphans, err := collectOrphans(ctx, x, tbl, ref.Column, shadow)
	if err != nil {
		return res, fmt.Errorf("collect orphans in %s.%s: %w", ref.Table, ref.Column, err)
	}
	res.Orphans = orphans

	swap := []string{
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", tbl, pgIdent(ref.Column)),
		fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", tbl, pgIdent(shadow), pgIdent(ref.Column)),
	}
	for _, q := range swap {
		if _, err := x.Exec(ctx, q); err != nil {
			return res, fmt.Errorf("swap column %s.%s: %w", ref.Table, ref.Column, err)
		}
	}

	return res, nil
}

// collectOrphans lists every distinct old value that was non-null but got
// no mapping, with the number of rows holding it.
func collectOrphans(ctx context.Context, x executor, tbl, column, shadow string) ([]Orphan, error) {
	q := fmt.Sprintf(
		"SELECT %s::text, count(*) FROM %s WHERE %s IS NOT NULL AND %s IS NULL GROUP BY %s ORDER BY %s",
		pgIdent(column), tbl, pgIdent(column), pgIdent(shadow), pgIdent(column), pgIdent(column),
	)
	rows, err := x.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orphans []Orphan
	for rows.Next() {
		var o Orphan
		if err := rows.Scan(&o.Value, &o.Rows); err != nil {
			return nil, err
		}
		orphans = append(orphans, o)
	}
	return orphans, rows.Err()
}
