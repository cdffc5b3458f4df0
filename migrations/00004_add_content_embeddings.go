package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAddContentEmbeddings, downAddContentEmbeddings)
}

func upAddContentEmbeddings(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS content_embeddings (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			entity_type TEXT NOT NULL,
			entity_ref TEXT NOT NULL,
			locale TEXT NOT NULL DEFAULT 'en',
			embedding REAL[] NOT NULL,
			model TEXT NOT NULL,
			dimensions INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (entity_type, entity_ref, locale, model)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_content_embeddings_entity ON content_embeddings(entity_type, entity_ref)`,
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func downAddContentEmbeddings(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS content_embeddings`)
	return err
}
