package postgres

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id UUID PRIMARY KEY,
	title VARCHAR(255) NOT NULL,
	author VARCHAR(255) NOT NULL,
	description TEXT,
	owner_id VARCHAR(255) NOT NULL,
	owner_email VARCHAR(255),
	status VARCHAR(50) NOT NULL,
	storage_key TEXT NOT NULL,
	file_name VARCHAR(255) NOT NULL,
	declared_size BIGINT NOT NULL DEFAULT 0,
	detected_content_type VARCHAR(255),
	expires_at TIMESTAMPTZ,
	pending_since TIMESTAMPTZ,
	reviewer_id VARCHAR(255),
	review_reason TEXT,
	reviewed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT (now() AT TIME ZONE 'utc'),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT (now() AT TIME ZONE 'utc')
);

CREATE INDEX IF NOT EXISTS books_pending_idx
	ON books (pending_since)
	WHERE pending_since IS NOT NULL;

CREATE INDEX IF NOT EXISTS books_owner_idx
	ON books (owner_id, created_at DESC);
`

// Migrate creates the books table and its indexes if they do not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply books schema: %w", err)
	}
	return nil
}
