package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// executor is the transactional SQL surface the engine runs against.
// pgx.Tx satisfies it; tests use fakes.
type executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Phase is the orchestrator's position in one rekey run.
type Phase int

const (
	PhasePlanning Phase = iota
	PhaseMappingBuilt
	PhaseConstraintsDropped
	PhaseDependentsRewritten
	PhasePrimaryKeySwapped
	PhaseConstraintsRestored
	PhaseCommitted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePlanning:
		return "planning"
	case PhaseMappingBuilt:
		return "mapping-built"
	case PhaseConstraintsDropped:
		return "constraints-dropped"
	case PhaseDependentsRewritten:
		return "dependents-rewritten"
	case PhasePrimaryKeySwapped:
		return "primary-key-swapped"
	case PhaseConstraintsRestored:
		return "constraints-restored"
	case PhaseCommitted:
		return "committed"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// columnKey identifies one dependent column for policy overrides.
type columnKey struct {
	Table  string
	Column string
}

// defaultPolicy applies to every reference without an explicit override.
var defaultPolicy = CascadePolicy{OnUpdate: "CASCADE", OnDelete: "SET NULL"}

// buildPlan introspects the dependency graph of one table and resolves the
// cascade policy for every discovered reference. Read-only; the plan can be
// inspected or logged before any write happens.
func buildPlan(ctx context.Context, x executor, schema, table, pkColumn, newType string, startID int64, overrides map[columnKey]CascadePolicy) (*MigrationPlan, error) {
	exists, err := tableExists(ctx, x, schema, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("table %s.%s does not exist", schema, table)
	}

	_, actualPK, ok, err := primaryKeyInfo(ctx, x, schema, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &UnsupportedSchemaError{Table: table, Column: pkColumn, Reason: "table has no primary key"}
	}
	if actualPK != pkColumn {
		return nil, &UnsupportedSchemaError{
			Table:  table,
			Column: pkColumn,
			Reason: fmt.Sprintf("primary key column is %s, not %s", actualPK, pkColumn),
		}
	}

	pkType, ok, err := columnType(ctx, x, schema, table, pkColumn)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &UnsupportedSchemaError{Table: table, Column: pkColumn, Reason: "primary key column does not exist"}
	}

	refs, err := findReferences(ctx, x, schema, table, pkColumn)
	if err != nil {
		return nil, err
	}

	policies := make([]PlannedPolicy, len(refs))
	for i, ref := range refs {
		pol := PlannedPolicy{CascadePolicy: defaultPolicy}
		if override, found := overrides[columnKey{Table: ref.Table, Column: ref.Column}]; found {
			pol.CascadePolicy = override
			pol.Overridden = true
		}
		pol.Weakened = ref.DeleteRule == "CASCADE" && pol.OnDelete == "SET NULL"
		policies[i] = pol
	}

	return &MigrationPlan{
		Target:     TableDescriptor{Schema: schema, Name: table, PKColumn: pkColumn, PKType: pkType},
		NewType:    newType,
		StartID:    startID,
		References: refs,
		Policies:   policies,
	}, nil
}

// runRekey executes one primary-key type migration inside the caller's
// transaction. The caller begins and commits (or rolls back) the
// transaction; the engine performs no commit of its own, so any error
// means the schema is untouched once the transaction aborts.
//
// If the primary key already has the target type the whole run
// short-circuits to a no-op report.
func runRekey(ctx context.Context, x executor, plan *MigrationPlan, attachSequences bool) (*MigrationReport, error) {
	start := time.Now()
	t := plan.Target
	report := &MigrationReport{Table: t.Name, State: PhasePlanning}

	fail := func(phase Phase, err error) (*MigrationReport, error) {
		report.State = PhaseFailed
		return nil, &TransactionAbortError{Phase: phase, Table: t.Name, Err: err}
	}

	if sameColumnType(t.PKType, plan.NewType) {
		report.State = PhaseCommitted
		report.NoOp = true
		report.Elapsed = time.Since(start)
		return report, nil
	}

	for i, ref := range plan.References {
		pol := plan.Policies[i]
		if pol.Weakened {
			log.Printf("  NOTE: %s.%s ON DELETE CASCADE will be recreated as SET NULL", ref.Table, ref.Column)
		}
	}

	mapping, err := buildIdentityMapping(ctx, x, t.Schema, t.Name, t.PKColumn, plan.StartID)
	if err != nil {
		return fail(PhasePlanning, err)
	}
	report.State = PhaseMappingBuilt
	report.RowsMapped = mapping.Rows
	log.Printf("  mapped %d row(s) of %s.%s", mapping.Rows, t.Name, t.PKColumn)

	// Foreign keys first: the primary key's backing index cannot be
	// dropped while any of them still references it.
	for _, ref := range plan.References {
		if err := dropForeignKey(ctx, x, t.Schema, ref); err != nil {
			return fail(PhaseMappingBuilt, err)
		}
	}
	if err := dropPrimaryKey(ctx, x, t.Schema, t.Name); err != nil {
		return fail(PhaseMappingBuilt, err)
	}
	report.State = PhaseConstraintsDropped

	for _, ref := range plan.References {
		res, err := rewriteDependent(ctx, x, t.Schema, ref, mapping, plan.NewType)
		if err != nil {
			return fail(PhaseConstraintsDropped, err)
		}
		report.Rewrites = append(report.Rewrites, res)
		switch {
		case res.Skipped:
			log.Printf("  %s.%s already migrated, skipped", ref.Table, ref.Column)
		case len(res.Orphans) > 0:
			log.Printf("  rewrote %s.%s (%d row(s), %d orphaned value(s))", ref.Table, ref.Column, res.Rows, len(res.Orphans))
		default:
			log.Printf("  rewrote %s.%s (%d row(s))", ref.Table, ref.Column, res.Rows)
		}
	}
	report.State = PhaseDependentsRewritten

	if err := swapPrimaryKeyColumn(ctx, x, t, mapping, plan.NewType); err != nil {
		return fail(PhaseDependentsRewritten, err)
	}
	report.State = PhasePrimaryKeySwapped

	if err := recreatePrimaryKey(ctx, x, t.Schema, t.Name, t.PKColumn); err != nil {
		return fail(PhasePrimaryKeySwapped, err)
	}
	// Every discovered constraint was dropped up front, so every one is
	// recreated here, whether or not its column needed rewriting.
	for i, ref := range plan.References {
		if err := recreateForeignKey(ctx, x, t.Schema, ref, plan.Policies[i].CascadePolicy); err != nil {
			return fail(PhasePrimaryKeySwapped, err)
		}
	}
	if attachSequences {
		if err := attachSequence(ctx, x, t.Schema, t.Name, t.PKColumn); err != nil {
			return fail(PhasePrimaryKeySwapped, err)
		}
	}
	report.State = PhaseConstraintsRestored

	report.State = PhaseCommitted
	report.Elapsed = time.Since(start)
	return report, nil
}

// swapPrimaryKeyColumn converts the primary-key column itself: shadow
// column, populate from the mapping, swap, NOT NULL. Every source row is
// in the mapping by construction, so a NULL left in the shadow column
// means the table changed under us and the run must abort.
func swapPrimaryKeyColumn(ctx context.Context, x executor, t TableDescriptor, mapping *IdentityMapping, newType string) error {
	tbl := qualified(t.Schema, t.Name)
	shadow := shadowColumn(t.PKColumn)

	stmts := []string{
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", tbl, pgIdent(shadow), newType),
		fmt.Sprintf("UPDATE %s t SET %s = m.new_id FROM %s m WHERE t.%s = m.old_id",
			tbl, pgIdent(shadow), pgIdent(mapping.MapTable), pgIdent(t.PKColumn)),
	}
	for _, q := range stmts {
		if _, err := x.Exec(ctx, q); err != nil {
			return fmt.Errorf("swap primary key of %s: %w", t.Name, err)
		}
	}

	var unmapped int64
	checkQ := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s IS NULL", tbl, pgIdent(shadow))
	if err := x.QueryRow(ctx, checkQ).Scan(&unmapped); err != nil {
		return fmt.Errorf("verify primary key mapping of %s: %w", t.Name, err)
	}
	if unmapped > 0 {
		return fmt.Errorf("primary key swap of %s left %d row(s) unmapped", t.Name, unmapped)
	}

	stmts = []string{
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", tbl, pgIdent(t.PKColumn)),
		fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", tbl, pgIdent(shadow), pgIdent(t.PKColumn)),
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", tbl, pgIdent(t.PKColumn)),
	}
	for _, q := range stmts {
		if _, err := x.Exec(ctx, q); err != nil {
			return fmt.Errorf("swap primary key of %s: %w", t.Name, err)
		}
	}
	return nil
}
