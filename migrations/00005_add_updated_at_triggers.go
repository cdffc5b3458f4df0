package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddUpdatedAtTriggers, downAddUpdatedAtTriggers)
}

var updatedAtTables = []string{"attractions", "accommodations", "restaurants"}

func upAddUpdatedAtTriggers(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`CREATE OR REPLACE FUNCTION set_updated_at() RETURNS TRIGGER AS $fn$
		 BEGIN NEW.updated_at = CURRENT_TIMESTAMP; RETURN NEW; END;
		 $fn$ LANGUAGE plpgsql`)
	if err != nil {
		return err
	}
	for _, table := range updatedAtTables {
		q := fmt.Sprintf(
			`CREATE OR REPLACE TRIGGER trg_%s_updated_at
			 BEFORE UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION set_updated_at()`,
			table, table)
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func downAddUpdatedAtTriggers(ctx context.Context, tx *sql.Tx) error {
	for _, table := range updatedAtTables {
		q := fmt.Sprintf(`DROP TRIGGER IF EXISTS trg_%s_updated_at ON %s`, table, table)
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx, `DROP FUNCTION IF EXISTS set_updated_at()`)
	return err
}
