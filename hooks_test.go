package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			"single statement",
			"SELECT 1",
			[]string{"SELECT 1"},
		},
		{
			"two statements",
			"SELECT 1; SELECT 2;",
			[]string{"SELECT 1", "SELECT 2"},
		},
		{
			"trailing without semicolon",
			"SELECT 1; SELECT 2",
			[]string{"SELECT 1", "SELECT 2"},
		},
		{
			"empty statements skipped",
			"SELECT 1;; ;SELECT 2;",
			[]string{"SELECT 1", "SELECT 2"},
		},
		{
			"semicolon inside quotes",
			"SELECT 'hello;world'; SELECT 2",
			[]string{"SELECT 'hello;world'", "SELECT 2"},
		},
		{
			"escaped quotes",
			"SELECT 'it''s'; SELECT 2",
			[]string{"SELECT 'it''s'", "SELECT 2"},
		},
		{
			"whitespace trimmed",
			"  SELECT 1  ;  SELECT 2  ;  ",
			[]string{"SELECT 1", "SELECT 2"},
		},
		{
			"empty input",
			"",
			nil,
		},
		{
			"multiline SQL",
			"UPDATE app.chat_logs SET session_id = NULL\nWHERE session_id = 'missing';\nDELETE FROM app.favorites\nWHERE session_id IS NULL;",
			[]string{"UPDATE app.chat_logs SET session_id = NULL\nWHERE session_id = 'missing'", "DELETE FROM app.favorites\nWHERE session_id IS NULL"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitStatements(tt.sql)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitStatements() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestRunHooks(t *testing.T) {
	dir := t.TempDir()
	hookFile := filepath.Join(dir, "cleanup.sql")
	content := "DELETE FROM {{schema}}.chat_logs WHERE session_id = 'junk';\nUPDATE {{schema}}.favorites SET session_id = NULL WHERE session_id = 'junk';"
	if err := os.WriteFile(hookFile, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{
		Target:    TargetConfig{Schema: "app"},
		configDir: dir,
	}
	exec := &fakeExec{}

	if err := runHooks(context.Background(), exec, cfg, []string{"cleanup.sql"}, "before"); err != nil {
		t.Fatalf("runHooks() error: %v", err)
	}
	if len(exec.execCalls) != 2 {
		t.Fatalf("expected two statements executed, got %d", len(exec.execCalls))
	}
	if exec.execCalls[0] != "DELETE FROM app.chat_logs WHERE session_id = 'junk'" {
		t.Errorf("unexpected first statement: %s", exec.execCalls[0])
	}
}

func TestRunHooksMissingFile(t *testing.T) {
	cfg := &Config{
		Target:    TargetConfig{Schema: "app"},
		configDir: t.TempDir(),
	}
	exec := &fakeExec{}

	err := runHooks(context.Background(), exec, cfg, []string{"absent.sql"}, "before")
	if err == nil {
		t.Fatal("expected error for missing hook file")
	}
	if len(exec.execCalls) != 0 {
		t.Fatalf("expected no statements executed, got %v", exec.execCalls)
	}
}

func TestRunHooksNoFiles(t *testing.T) {
	exec := &fakeExec{}
	if err := runHooks(context.Background(), exec, &Config{}, nil, "before"); err != nil {
		t.Fatalf("runHooks() error: %v", err)
	}
	if len(exec.execCalls) != 0 {
		t.Fatalf("expected no statements executed, got %v", exec.execCalls)
	}
}
