package main

import "time"

// TableDescriptor identifies the table whose primary key is being rekeyed.
type TableDescriptor struct {
	Schema   string
	Name     string
	PKColumn string
	PKType   string // declared type at plan time, e.g. "text", "bigint"
}

// ForeignKeyReference is one discovered edge in the dependency graph: a
// column in a dependent table whose foreign key points at the primary key
// being rekeyed. Discovered from catalog metadata, never declared by the
// caller.
type ForeignKeyReference struct {
	Table      string // dependent table
	Column     string // dependent column
	Constraint string // existing constraint name
	RefTable   string
	RefColumn  string
	UpdateRule string // existing ON UPDATE action
	DeleteRule string // existing ON DELETE action
	KeySpan    int    // number of columns the constraint spans
}

// CascadePolicy is the ON UPDATE / ON DELETE pair applied when a foreign
// key is recreated.
type CascadePolicy struct {
	OnUpdate string
	OnDelete string
}

// PlannedPolicy is the policy chosen for one reference, with provenance:
// whether the caller overrode the default, and whether recreation weakens
// a discovered ON DELETE CASCADE to SET NULL.
type PlannedPolicy struct {
	CascadePolicy
	Overridden bool
	Weakened   bool
}

// MigrationPlan is everything one rekey run needs, built before any write.
// References and Policies are index-aligned.
type MigrationPlan struct {
	Target     TableDescriptor
	NewType    string
	StartID    int64
	References []ForeignKeyReference
	Policies   []PlannedPolicy
}

// IdentityMapping points at the transaction-scoped scratch table holding
// the old-identifier → new-identifier pairs. The table is created with
// ON COMMIT DROP, so it never outlives the migration whether it commits
// or aborts.
type IdentityMapping struct {
	MapTable string
	Rows     int64
}

// Orphan is a dependent-column value with no row in the rekeyed table.
// Orphans are reported, never fatal.
type Orphan struct {
	Value string
	Rows  int64
}

// RewriteResult describes what happened to one dependent column.
type RewriteResult struct {
	Table   string
	Column  string
	Skipped bool // column already had the new type
	Rows    int64
	Orphans []Orphan
}

// MigrationReport is the sole success output of a rekey run. Non-fatal
// data-quality findings (orphans) surface only here.
type MigrationReport struct {
	Table      string
	State      Phase
	NoOp       bool
	RowsMapped int64
	Rewrites   []RewriteResult
	Elapsed    time.Duration
}

// OrphanCount sums orphaned rows across all rewritten columns.
func (r *MigrationReport) OrphanCount() int64 {
	var n int64
	for _, rw := range r.Rewrites {
		for _, o := range rw.Orphans {
			n += o.Rows
		}
	}
	return n
}
