package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// isNoRows reports whether a QueryRow scan found no matching row.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// findReferences discovers every foreign-key constraint whose referenced
// table/column is the given pair, including self-referential ones. Results
// come back ordered by dependent table then column so downstream steps and
// log output are stable across runs.
//
// Constraints spanning more than one column are not rewritable one column
// at a time; they surface as UnsupportedSchemaError instead of being
// silently skipped.
func findReferences(ctx context.Context, x executor, schema, table, column string) ([]ForeignKeyReference, error) {
	const q = `
		SELECT
			tc.table_name,
			kcu.column_name,
			tc.constraint_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column,
			rc.update_rule,
			rc.delete_rule,
			(SELECT count(*) FROM information_schema.key_column_usage k
			  WHERE k.constraint_name = tc.constraint_name
			    AND k.constraint_schema = tc.constraint_schema) AS key_span
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.constraint_schema = tc.constraint_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.constraint_schema = tc.constraint_schema
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_name = tc.constraint_name
			AND rc.constraint_schema = tc.constraint_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		  AND ccu.table_schema = $1
		  AND ccu.table_name = $2
		  AND ccu.column_name = $3
		ORDER BY tc.table_name, kcu.column_name`

	rows, err := x.Query(ctx, q, schema, table, column)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys referencing %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var refs []ForeignKeyReference
	for rows.Next() {
		var ref ForeignKeyReference
		if err := rows.Scan(
			&ref.Table, &ref.Column, &ref.Constraint,
			&ref.RefTable, &ref.RefColumn,
			&ref.UpdateRule, &ref.DeleteRule, &ref.KeySpan,
		); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read foreign keys: %w", err)
	}

	for _, ref := range refs {
		if ref.KeySpan > 1 {
			return nil, &UnsupportedSchemaError{
				Table:      ref.Table,
				Column:     ref.Column,
				Constraint: ref.Constraint,
				Reason:     fmt.Sprintf("foreign key spans %d columns; composite keys cannot be rewritten", ref.KeySpan),
			}
		}
	}

	return refs, nil
}

// columnType returns the declared data type of a column and whether the
// column exists at all. Discovery snapshots go stale under concurrent DDL,
// so callers re-check immediately before acting on a column.
func columnType(ctx context.Context, x executor, schema, table, column string) (string, bool, error) {
	var dataType string
	err := x.QueryRow(ctx,
		`SELECT data_type FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2 AND column_name = $3`,
		schema, table, column,
	).Scan(&dataType)
	if err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("look up column %s.%s: %w", table, column, err)
	}
	return dataType, true, nil
}

// primaryKeyInfo returns the primary-key constraint name and column of a
// table, or ok=false if the table has no primary key.
func primaryKeyInfo(ctx context.Context, x executor, schema, table string) (constraint, column string, ok bool, err error) {
	qerr := x.QueryRow(ctx,
		`SELECT tc.constraint_name, kcu.column_name
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name
			AND kcu.constraint_schema = tc.constraint_schema
		 WHERE tc.table_schema = $1 AND tc.table_name = $2
		   AND tc.constraint_type = 'PRIMARY KEY'
		 ORDER BY kcu.ordinal_position
		 LIMIT 1`,
		schema, table,
	).Scan(&constraint, &column)
	if qerr != nil {
		if isNoRows(qerr) {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("look up primary key of %s: %w", table, qerr)
	}
	return constraint, column, true, nil
}

// constraintOwner reports which table owns a constraint name and the
// constraint's type ("PRIMARY KEY", "FOREIGN KEY", ...). ok=false means
// the name is free.
func constraintOwner(ctx context.Context, x executor, schema, name string) (table, ctype string, ok bool, err error) {
	qerr := x.QueryRow(ctx,
		`SELECT table_name, constraint_type
		 FROM information_schema.table_constraints
		 WHERE constraint_schema = $1 AND constraint_name = $2`,
		schema, name,
	).Scan(&table, &ctype)
	if qerr != nil {
		if isNoRows(qerr) {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("look up constraint %s: %w", name, qerr)
	}
	return table, ctype, true, nil
}

// tableExists reports whether a base table exists in the schema.
func tableExists(ctx context.Context, x executor, schema, table string) (bool, error) {
	var exists bool
	err := x.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2 AND table_type = 'BASE TABLE')`,
		schema, table,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return exists, nil
}

// sameColumnType compares a declared information_schema data_type with a
// target type, tolerating aliases like int/integer/int8.
func sameColumnType(declared, target string) bool {
	return normalizeColumnType(declared) == normalizeColumnType(target)
}

func normalizeColumnType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "int2", "smallint":
		return "smallint"
	case "int", "int4", "integer":
		return "integer"
	case "int8", "bigint":
		return "bigint"
	case "character varying", "varchar":
		return "character varying"
	case "char", "character":
		return "character"
	default:
		return strings.ToLower(strings.TrimSpace(t))
	}
}
