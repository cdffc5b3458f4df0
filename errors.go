package main

import "fmt"

// UnsupportedSchemaError marks schema shapes the engine refuses to touch:
// composite-key foreign keys and columns that vanished between discovery
// and rewrite. Partial handling would corrupt referential integrity, so
// the run aborts instead.
type UnsupportedSchemaError struct {
	Table      string
	Column     string
	Constraint string
	Reason     string
}

func (e *UnsupportedSchemaError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("unsupported schema: constraint %s on %s.%s: %s", e.Constraint, e.Table, e.Column, e.Reason)
	}
	return fmt.Sprintf("unsupported schema: %s.%s: %s", e.Table, e.Column, e.Reason)
}

// DuplicateSourceKeyError reports that the source primary-key column held
// duplicate values at read time. The declared primary key should make this
// impossible; the engine checks anyway rather than assume the constraint
// was honored.
type DuplicateSourceKeyError struct {
	Table      string
	Column     string
	Duplicates int64
}

func (e *DuplicateSourceKeyError) Error() string {
	return fmt.Sprintf("duplicate source keys: %s.%s has %d non-unique value(s)", e.Table, e.Column, e.Duplicates)
}

// ConstraintConflictError reports that a deterministically generated
// constraint name already exists on an unrelated object, so recreating
// the constraint would collide.
type ConstraintConflictError struct {
	Name      string
	Table     string // table the name should belong to
	OwnedBy   string // table that actually owns the existing constraint
	OwnedType string // constraint type of the existing constraint
}

func (e *ConstraintConflictError) Error() string {
	return fmt.Sprintf("constraint name conflict: %s wanted for %s but exists on %s as %s",
		e.Name, e.Table, e.OwnedBy, e.OwnedType)
}

// TransactionAbortError wraps any failure inside a rekey run with the
// phase and table it originated from. The enclosing transaction is the
// sole rollback mechanism; callers abort it on this error.
type TransactionAbortError struct {
	Phase Phase
	Table string
	Err   error
}

func (e *TransactionAbortError) Error() string {
	return fmt.Sprintf("rekey %s aborted in phase %s: %v", e.Table, e.Phase, e.Err)
}

func (e *TransactionAbortError) Unwrap() error { return e.Err }
