package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the full TOML-driven rekey configuration.
type Config struct {
	Target          TargetConfig  `toml:"target"`
	StartID         int64         `toml:"start_id"`
	NewType         string        `toml:"new_type"`
	AttachSequences bool          `toml:"attach_sequences"`
	Rekeys          []RekeyConfig `toml:"rekey"`
	Hooks           HooksConfig   `toml:"hooks"`

	// configDir is the directory containing the TOML file, used to resolve relative SQL paths.
	configDir string
}

// TargetConfig identifies the PostgreSQL database and schema under migration.
type TargetConfig struct {
	DSN    string `toml:"dsn"`
	Schema string `toml:"schema"`
}

// RekeyConfig describes one table whose primary key changes type.
type RekeyConfig struct {
	Table    string         `toml:"table"`
	PKColumn string         `toml:"pk_column"`
	NewType  string         `toml:"new_type"` // overrides the top-level default
	Policies []PolicyConfig `toml:"policy"`
}

// PolicyConfig overrides the cascade policy for one dependent column.
// References without an override get ON UPDATE CASCADE, ON DELETE SET NULL.
type PolicyConfig struct {
	Table    string `toml:"table"`
	Column   string `toml:"column"`
	OnUpdate string `toml:"on_update"`
	OnDelete string `toml:"on_delete"`
}

// HooksConfig lists SQL files executed inside each rekey transaction,
// before and after the engine runs. Orphan cleanup belongs in before hooks.
type HooksConfig struct {
	Before []string `toml:"before"`
	After  []string `toml:"after"`
}

var validIntegerTypes = map[string]bool{
	"smallint": true,
	"integer":  true,
	"bigint":   true,
}

var validCascadeActions = map[string]bool{
	"CASCADE":     true,
	"SET NULL":    true,
	"SET DEFAULT": true,
	"RESTRICT":    true,
	"NO ACTION":   true,
}

// loadConfig reads a TOML config file and returns a Config with defaults applied.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Config{
		Target:          TargetConfig{Schema: "public"},
		StartID:         1,
		NewType:         "bigint",
		AttachSequences: true,
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if cfg.Target.DSN == "" {
		return nil, fmt.Errorf("target.dsn is required")
	}
	cfg.Target.Schema = strings.TrimSpace(cfg.Target.Schema)
	if cfg.Target.Schema == "" {
		cfg.Target.Schema = "public"
	}

	if cfg.StartID < 1 {
		return nil, fmt.Errorf("start_id must be >= 1")
	}
	if !validIntegerTypes[cfg.NewType] {
		return nil, fmt.Errorf("new_type must be one of: smallint, integer, bigint")
	}

	// Rekey blocks are optional for `pgrekey migrate`; the rekey command
	// checks for an empty list itself.
	for i := range cfg.Rekeys {
		r := &cfg.Rekeys[i]
		if r.Table == "" {
			return nil, fmt.Errorf("rekey[%d]: table is required", i)
		}
		if r.PKColumn == "" {
			return nil, fmt.Errorf("rekey[%d] (%s): pk_column is required", i, r.Table)
		}
		if r.NewType == "" {
			r.NewType = cfg.NewType
		}
		if !validIntegerTypes[r.NewType] {
			return nil, fmt.Errorf("rekey[%d] (%s): new_type must be one of: smallint, integer, bigint", i, r.Table)
		}
		for j := range r.Policies {
			p := &r.Policies[j]
			if p.Table == "" || p.Column == "" {
				return nil, fmt.Errorf("rekey[%d] (%s): policy[%d]: table and column are required", i, r.Table, j)
			}
			p.OnUpdate = normalizeCascadeAction(p.OnUpdate, defaultPolicy.OnUpdate)
			p.OnDelete = normalizeCascadeAction(p.OnDelete, defaultPolicy.OnDelete)
			if !validCascadeActions[p.OnUpdate] {
				return nil, fmt.Errorf("rekey[%d] (%s): policy[%d]: invalid on_update %q", i, r.Table, j, p.OnUpdate)
			}
			if !validCascadeActions[p.OnDelete] {
				return nil, fmt.Errorf("rekey[%d] (%s): policy[%d]: invalid on_delete %q", i, r.Table, j, p.OnDelete)
			}
		}
	}

	return &cfg, nil
}

// normalizeCascadeAction upper-cases an action and collapses underscore
// spellings (set_null) to the SQL form, falling back to a default when
// the value is empty.
func normalizeCascadeAction(action, fallback string) string {
	action = strings.TrimSpace(action)
	if action == "" {
		return fallback
	}
	action = strings.ToUpper(action)
	action = strings.ReplaceAll(action, "_", " ")
	return action
}

// policyOverrides converts one rekey block's policy list into the lookup
// map the planner consumes.
func (r *RekeyConfig) policyOverrides() map[columnKey]CascadePolicy {
	if len(r.Policies) == 0 {
		return nil
	}
	m := make(map[columnKey]CascadePolicy, len(r.Policies))
	for _, p := range r.Policies {
		m[columnKey{Table: p.Table, Column: p.Column}] = CascadePolicy{OnUpdate: p.OnUpdate, OnDelete: p.OnDelete}
	}
	return m
}

// resolvePath resolves a path relative to the config file directory.
func (c *Config) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}
