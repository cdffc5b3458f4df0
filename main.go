package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	_ "github.com/voyago/pgrekey/migrations"
)

var (
	configPath    string
	migrationsDir string
)

var rootCmd = &cobra.Command{
	Use:   "pgrekey [config.toml]",
	Short: "PostgreSQL primary-key type migration tool",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRekeyCommand,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <up|down|status> [config.toml]",
	Short: "Apply the chronological schema migrations",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runMigrateCommand,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML config file")
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "directory holding migration sources")
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath(args []string, pos int) (string, error) {
	// Positional arg takes precedence over --config flag
	path := configPath
	if len(args) > pos {
		path = args[pos]
	}
	if path == "" {
		return "", fmt.Errorf("config file required: pgrekey <config.toml> or pgrekey --config <config.toml>")
	}
	return path, nil
}

func runRekeyCommand(cmd *cobra.Command, args []string) error {
	cfgPath, err := resolveConfigPath(args, 0)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if len(cfg.Rekeys) == 0 {
		return fmt.Errorf("at least one [[rekey]] block is required")
	}

	ctx := context.Background()
	start := time.Now()

	log.Printf("pgrekey — primary-key type migration")
	log.Printf("config: schema=%s new_type=%s start_id=%d rekeys=%d attach_sequences=%t",
		cfg.Target.Schema, cfg.NewType, cfg.StartID, len(cfg.Rekeys), cfg.AttachSequences)

	pool, err := pgxpool.New(ctx, cfg.Target.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	for _, r := range cfg.Rekeys {
		report, err := rekeyOne(ctx, pool, cfg, r)
		if err != nil {
			return err
		}
		printReport(report)
	}

	log.Printf("completed in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

// rekeyOne runs one table's migration inside a single transaction. Commit
// happens only after the engine and the after hooks succeed; any error
// rolls the whole run back via the deferred Rollback.
func rekeyOne(ctx context.Context, pool *pgxpool.Pool, cfg *Config, r RekeyConfig) (*MigrationReport, error) {
	log.Printf("rekeying %s.%s (%s → %s)...", cfg.Target.Schema, r.Table, r.PKColumn, r.NewType)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := runHooks(ctx, tx, cfg, cfg.Hooks.Before, "before"); err != nil {
		return nil, err
	}

	plan, err := buildPlan(ctx, tx, cfg.Target.Schema, r.Table, r.PKColumn, r.NewType, cfg.StartID, r.policyOverrides())
	if err != nil {
		return nil, err
	}
	log.Printf("  %d dependent column(s) discovered", len(plan.References))

	report, err := runRekey(ctx, tx, plan, cfg.AttachSequences)
	if err != nil {
		return nil, err
	}

	if err := runHooks(ctx, tx, cfg, cfg.Hooks.After, "after"); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit rekey of %s: %w", r.Table, err)
	}
	return report, nil
}

func printReport(rep *MigrationReport) {
	if rep.NoOp {
		log.Printf("%s: already migrated, nothing to do (%s)", rep.Table, rep.Elapsed.Round(time.Millisecond))
		return
	}
	log.Printf("%s: %s, %d row(s) mapped, %d dependent column(s), %d orphaned row(s), %s",
		rep.Table, rep.State, rep.RowsMapped, len(rep.Rewrites), rep.OrphanCount(),
		rep.Elapsed.Round(time.Millisecond))
	for _, rw := range rep.Rewrites {
		for _, o := range rw.Orphans {
			log.Printf("  WARN: orphaned reference %s.%s = %q (%d row(s), left NULL)",
				rw.Table, rw.Column, o.Value, o.Rows)
		}
	}
}

func runMigrateCommand(cmd *cobra.Command, args []string) error {
	action := args[0]
	cfgPath, err := resolveConfigPath(args, 1)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	db, err := sql.Open("pgx", cfg.Target.DSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	switch action {
	case "up":
		return goose.Up(db, migrationsDir)
	case "down":
		return goose.Down(db, migrationsDir)
	case "status":
		return goose.Status(db, migrationsDir)
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down, or status)", action)
	}
}
