package main

import (
	"context"
	"errors"
	"testing"
)

func TestFindReferences(t *testing.T) {
	exec := &fakeExec{
		rules: []queryRule{
			{
				substr: "FOREIGN KEY",
				rows: [][]any{
					{"chat_logs", "session_id", "chat_logs_session_id_fkey", "sessions", "id", "CASCADE", "SET NULL", 1},
					{"favorites", "session_id", "favorites_session_id_fkey", "sessions", "id", "CASCADE", "CASCADE", 1},
				},
			},
		},
	}

	refs, err := findReferences(context.Background(), exec, "public", "sessions", "id")
	if err != nil {
		t.Fatalf("findReferences() error: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("len(refs) = %d, want 2", len(refs))
	}
	want := ForeignKeyReference{
		Table: "chat_logs", Column: "session_id", Constraint: "chat_logs_session_id_fkey",
		RefTable: "sessions", RefColumn: "id",
		UpdateRule: "CASCADE", DeleteRule: "SET NULL", KeySpan: 1,
	}
	if refs[0] != want {
		t.Errorf("refs[0] = %+v, want %+v", refs[0], want)
	}
	if refs[1].DeleteRule != "CASCADE" {
		t.Errorf("refs[1].DeleteRule = %q", refs[1].DeleteRule)
	}
}

func TestFindReferencesCompositeKey(t *testing.T) {
	exec := &fakeExec{
		rules: []queryRule{
			{
				substr: "FOREIGN KEY",
				rows: [][]any{
					{"bookings", "session_id", "bookings_composite_fkey", "sessions", "id", "CASCADE", "CASCADE", 2},
				},
			},
		},
	}

	_, err := findReferences(context.Background(), exec, "public", "sessions", "id")
	if err == nil {
		t.Fatal("expected error for composite-key foreign key")
	}
	var unsupported *UnsupportedSchemaError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %T, want *UnsupportedSchemaError", err)
	}
	if unsupported.Constraint != "bookings_composite_fkey" {
		t.Errorf("Constraint = %q", unsupported.Constraint)
	}
}

func TestFindReferencesScopesReferencedSchema(t *testing.T) {
	// A same-named table in another schema must not have its dependents
	// attributed to the table under migration. The rule only matches
	// when the discovery query restricts the referenced side to the
	// target schema.
	exec := &fakeExec{
		rules: []queryRule{
			{
				substr: "ccu.table_schema = $1",
				rows: [][]any{
					{"chat_logs", "session_id", "chat_logs_session_id_fkey", "sessions", "id", "CASCADE", "SET NULL", 1},
				},
			},
		},
	}

	refs, err := findReferences(context.Background(), exec, "public", "sessions", "id")
	if err != nil {
		t.Fatalf("findReferences() error: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("len(refs) = %d, want 1; referenced-table filter missing a schema predicate", len(refs))
	}
}

func TestFindReferencesNone(t *testing.T) {
	exec := &fakeExec{
		rules: []queryRule{{substr: "FOREIGN KEY", rows: nil}},
	}
	refs, err := findReferences(context.Background(), exec, "public", "media", "id")
	if err != nil {
		t.Fatalf("findReferences() error: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("len(refs) = %d, want 0", len(refs))
	}
}

func TestColumnType(t *testing.T) {
	exec := &fakeExec{
		rules: []queryRule{
			{substr: "information_schema.columns", args: "chat_logs", row: []any{"text"}},
		},
	}

	typ, ok, err := columnType(context.Background(), exec, "public", "chat_logs", "session_id")
	if err != nil {
		t.Fatalf("columnType() error: %v", err)
	}
	if !ok || typ != "text" {
		t.Errorf("columnType() = (%q, %t), want (text, true)", typ, ok)
	}

	// Unknown column scans no rows and reports absence, not an error.
	_, ok, err = columnType(context.Background(), exec, "public", "bookings", "gone")
	if err != nil {
		t.Fatalf("columnType() error: %v", err)
	}
	if ok {
		t.Error("columnType() reported a column that does not exist")
	}
}

func TestPrimaryKeyInfo(t *testing.T) {
	exec := &fakeExec{
		rules: []queryRule{
			{substr: "'PRIMARY KEY'", args: "sessions", row: []any{"sessions_pkey", "id"}},
		},
	}

	name, col, ok, err := primaryKeyInfo(context.Background(), exec, "public", "sessions")
	if err != nil {
		t.Fatalf("primaryKeyInfo() error: %v", err)
	}
	if !ok || name != "sessions_pkey" || col != "id" {
		t.Errorf("primaryKeyInfo() = (%q, %q, %t)", name, col, ok)
	}

	_, _, ok, err = primaryKeyInfo(context.Background(), exec, "public", "no_pk_table")
	if err != nil {
		t.Fatalf("primaryKeyInfo() error: %v", err)
	}
	if ok {
		t.Error("primaryKeyInfo() reported a primary key for a table without one")
	}
}

func TestConstraintOwner(t *testing.T) {
	exec := &fakeExec{
		rules: []queryRule{
			{substr: "constraint_name = $2", args: "sessions_pkey", row: []any{"sessions", "PRIMARY KEY"}},
		},
	}

	table, ctype, ok, err := constraintOwner(context.Background(), exec, "public", "sessions_pkey")
	if err != nil {
		t.Fatalf("constraintOwner() error: %v", err)
	}
	if !ok || table != "sessions" || ctype != "PRIMARY KEY" {
		t.Errorf("constraintOwner() = (%q, %q, %t)", table, ctype, ok)
	}

	_, _, ok, err = constraintOwner(context.Background(), exec, "public", "free_name")
	if err != nil {
		t.Fatalf("constraintOwner() error: %v", err)
	}
	if ok {
		t.Error("constraintOwner() reported a free name as taken")
	}
}

func TestSameColumnType(t *testing.T) {
	tests := []struct {
		declared, target string
		want             bool
	}{
		{"bigint", "bigint", true},
		{"int8", "bigint", true},
		{"integer", "int", true},
		{"int4", "integer", true},
		{"smallint", "int2", true},
		{"text", "bigint", false},
		{"character varying", "varchar", true},
		{"BIGINT", "bigint", true},
	}
	for _, tt := range tests {
		if got := sameColumnType(tt.declared, tt.target); got != tt.want {
			t.Errorf("sameColumnType(%q, %q) = %t, want %t", tt.declared, tt.target, got, tt.want)
		}
	}
}
