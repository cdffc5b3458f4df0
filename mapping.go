package main

import (
	"context"
	"fmt"
)

// mappingTableName returns the scratch-table name for one rekeyed table.
// Deterministic so a failed-then-retried run reuses the same name; the
// table itself is transaction-scoped and never survives the run.
func mappingTableName(table string) string {
	return "rekey_map_" + table
}

// buildIdentityMapping assigns dense new integer identifiers to every row
// of the source table, ordered ascending by the old primary-key value, and
// stores the pairs in a temp table created with ON COMMIT DROP. New
// identifiers run contiguously from startID.
//
// The declared primary key should guarantee uniqueness of the old values;
// the engine verifies it anyway and fails with DuplicateSourceKeyError if
// the data disagrees with the constraint.
func buildIdentityMapping(ctx context.Context, x executor, schema, table, pkColumn string, startID int64) (*IdentityMapping, error) {
	var total, distinct int64
	countQ := fmt.Sprintf(
		"SELECT count(*), count(DISTINCT %s) FROM %s",
		pgIdent(pkColumn), qualified(schema, table),
	)
	if err := x.QueryRow(ctx, countQ).Scan(&total, &distinct); err != nil {
		return nil, fmt.Errorf("count source keys in %s: %w", table, err)
	}
	if total != distinct {
		return nil, &DuplicateSourceKeyError{
			Table:      table,
			Column:     pkColumn,
			Duplicates: total - distinct,
		}
	}

	mapTable := mappingTableName(table)
	createQ := fmt.Sprintf(
		`CREATE TEMP TABLE %s ON COMMIT DROP AS
		 SELECT old_id, row_number() OVER (ORDER BY old_id) + %d AS new_id
		 FROM (SELECT %s AS old_id FROM %s) src`,
		pgIdent(mapTable), startID-1, pgIdent(pkColumn), qualified(schema, table),
	)
	if _, err := x.Exec(ctx, createQ); err != nil {
		return nil, fmt.Errorf("build identity mapping for %s: %w", table, err)
	}

	var rows int64
	if err := x.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", pgIdent(mapTable))).Scan(&rows); err != nil {
		return nil, fmt.Errorf("count identity mapping for %s: %w", table, err)
	}

	return &IdentityMapping{MapTable: mapTable, Rows: rows}, nil
}
