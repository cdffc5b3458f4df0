package main

import (
	"context"
	"fmt"
)

// Constraint names are generated deterministically from table and column
// names so re-running a migration finds its own constraints instead of
// piling up duplicates.

func pkConstraintName(table string) string {
	return table + "_pkey"
}

func fkConstraintName(table, column string) string {
	return table + "_" + column + "_fkey"
}

// dropForeignKey removes one discovered foreign-key constraint. All
// referencing constraints must go before the primary key itself: its
// backing index cannot be dropped while a foreign key still depends on it.
func dropForeignKey(ctx context.Context, x executor, schema string, ref ForeignKeyReference) error {
	q := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s",
		qualified(schema, ref.Table), pgIdent(ref.Constraint))
	if _, err := x.Exec(ctx, q); err != nil {
		return fmt.Errorf("drop constraint %s: %w", ref.Constraint, err)
	}
	return nil
}

// dropPrimaryKey removes the table's primary-key constraint under whatever
// name it currently has. Absence is not an error.
func dropPrimaryKey(ctx context.Context, x executor, schema, table string) error {
	name, _, ok, err := primaryKeyInfo(ctx, x, schema, table)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	q := fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", qualified(schema, table), pgIdent(name))
	if _, err := x.Exec(ctx, q); err != nil {
		return fmt.Errorf("drop primary key %s: %w", name, err)
	}
	return nil
}

// recreatePrimaryKey adds the primary key back under the deterministic
// name. If that name already belongs to this table's primary key the call
// is a no-op; if it belongs to anything else, ConstraintConflictError.
func recreatePrimaryKey(ctx context.Context, x executor, schema, table, column string) error {
	name := pkConstraintName(table)
	owner, ctype, taken, err := constraintOwner(ctx, x, schema, name)
	if err != nil {
		return err
	}
	if taken {
		if owner == table && ctype == "PRIMARY KEY" {
			return nil
		}
		return &ConstraintConflictError{Name: name, Table: table, OwnedBy: owner, OwnedType: ctype}
	}
	q := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)",
		qualified(schema, table), pgIdent(name), pgIdent(column))
	if _, err := x.Exec(ctx, q); err != nil {
		return fmt.Errorf("recreate primary key %s: %w", name, err)
	}
	return nil
}

// recreateForeignKey restores one dependent edge against the rekeyed
// primary key with the planned cascade policy. The referenced table's new
// primary key must already exist in this transaction, otherwise constraint
// creation fails on mismatched types.
func recreateForeignKey(ctx context.Context, x executor, schema string, ref ForeignKeyReference, policy CascadePolicy) error {
	name := fkConstraintName(ref.Table, ref.Column)
	owner, ctype, taken, err := constraintOwner(ctx, x, schema, name)
	if err != nil {
		return err
	}
	if taken {
		if owner == ref.Table && ctype == "FOREIGN KEY" {
			return nil
		}
		return &ConstraintConflictError{Name: name, Table: ref.Table, OwnedBy: owner, OwnedType: ctype}
	}
	q := fmt.Sprintf(
		"ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s) ON UPDATE %s ON DELETE %s",
		qualified(schema, ref.Table), pgIdent(name), pgIdent(ref.Column),
		qualified(schema, ref.RefTable), pgIdent(ref.RefColumn),
		policy.OnUpdate, policy.OnDelete,
	)
	if _, err := x.Exec(ctx, q); err != nil {
		return fmt.Errorf("recreate foreign key %s: %w", name, err)
	}
	return nil
}

// attachSequence creates (or reuses) a sequence for the rekeyed primary
// key, positions it right after the highest assigned identifier, and makes
// it the column default, so inserts keep the dense numbering going.
func attachSequence(ctx context.Context, x executor, schema, table, column string) error {
	seqName := fmt.Sprintf("%s_%s_seq", table, column)
	// The regclass literals reuse the quoted form so mixed-case or
	// punctuated schema names resolve to the same sequence the DDL created.
	seq := qualified(schema, seqName)
	stmts := []string{
		fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s", seq),
		fmt.Sprintf("SELECT setval('%s', COALESCE((SELECT MAX(%s) FROM %s), 0) + 1, false)",
			seq, pgIdent(column), qualified(schema, table)),
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT nextval('%s')",
			qualified(schema, table), pgIdent(column), seq),
	}
	for _, q := range stmts {
		if _, err := x.Exec(ctx, q); err != nil {
			return fmt.Errorf("attach sequence %s: %w", seqName, err)
		}
	}
	return nil
}
