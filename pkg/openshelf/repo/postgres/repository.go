// Package postgres provides the PostgreSQL repository. The pending queue is
// the nullable pending_since column: set when a book enters PENDING, cleared
// when it leaves, with a partial index serving the moderation listing.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openshelf/openshelf/pkg/openshelf"
)

// DBTX is satisfied by both a pgx pool and a transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements openshelf.Repository using PostgreSQL.
type Repository struct {
	db DBTX
}

// New creates a PostgreSQL repository.
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a PostgreSQL repository backed by a connection pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const bookColumns = `
	id, title, author, description, owner_id, owner_email,
	status, storage_key, file_name, declared_size, detected_content_type,
	expires_at, reviewer_id, review_reason, reviewed_at,
	created_at, updated_at`

func (r *Repository) CreateBook(ctx context.Context, book *openshelf.Book) error {
	query := `
		INSERT INTO books (
			id, title, author, description, owner_id, owner_email,
			status, storage_key, file_name, declared_size,
			expires_at, pending_since, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	var pendingSince *time.Time
	if book.Status == openshelf.StatusPending {
		t := book.UpdatedAt
		pendingSince = &t
	}

	_, err := r.db.Exec(ctx, query,
		book.ID, book.Title, book.Author, book.Description,
		book.OwnerID, book.OwnerEmail, book.Status, book.StorageKey,
		book.FileName, book.DeclaredSize, book.ExpiresAt, pendingSince,
		book.CreatedAt, book.UpdatedAt)
	if err != nil {
		return r.wrapError("create book", err)
	}
	return nil
}

func (r *Repository) GetBook(ctx context.Context, id uuid.UUID) (*openshelf.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = $1`
	book, err := scanBook(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, openshelf.ErrBookNotFound
		}
		return nil, r.wrapError("get book", err)
	}
	return book, nil
}

func (r *Repository) ApplyStatusChange(ctx context.Context, id uuid.UUID, expect openshelf.BookStatus, change openshelf.StatusChange) (*openshelf.Book, error) {
	now := time.Now().UTC()

	query := `
		UPDATE books SET
			status = $3,
			storage_key = COALESCE(NULLIF($4, ''), storage_key),
			detected_content_type = COALESCE(NULLIF($5, ''), detected_content_type),
			expires_at = CASE WHEN $6 THEN NULL ELSE expires_at END,
			pending_since = CASE
				WHEN $7 THEN $10::timestamptz
				WHEN $8 THEN NULL
				ELSE pending_since
			END,
			reviewer_id = COALESCE($9->>'reviewerId', reviewer_id),
			review_reason = COALESCE($9->>'reason', review_reason),
			reviewed_at = COALESCE(($9->>'reviewedAt')::timestamptz, reviewed_at),
			updated_at = $10
		WHERE id = $1 AND status = $2
		RETURNING ` + bookColumns

	book, err := scanBook(r.db.QueryRow(ctx, query,
		id, expect, change.To, change.StorageKey, change.DetectedContentType,
		change.ClearExpiry, change.EnterPendingIndex, change.LeavePendingIndex,
		reviewJSON(change.Review), now))
	if err == nil {
		return book, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, r.wrapError("apply status change", err)
	}

	// No row matched: either the book is gone or another transition won.
	if _, getErr := r.GetBook(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, openshelf.ErrStatusConflict
}

func (r *Repository) DeleteBook(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return r.wrapError("delete book", err)
	}
	return nil
}

func (r *Repository) ListPending(ctx context.Context, limit, offset int) ([]*openshelf.Book, error) {
	query := `SELECT ` + bookColumns + `
		FROM books
		WHERE pending_since IS NOT NULL
		ORDER BY pending_since ASC
		LIMIT $1 OFFSET $2`
	return r.listBooks(ctx, "list pending", query, limit, offset)
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*openshelf.Book, error) {
	query := `SELECT ` + bookColumns + `
		FROM books
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	return r.listBooks(ctx, "list by owner", query, ownerID, limit, offset)
}

func (r *Repository) listBooks(ctx context.Context, op, query string, args ...interface{}) ([]*openshelf.Book, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.wrapError(op, err)
	}
	defer rows.Close()

	books := []*openshelf.Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, r.wrapError(op, err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrapError(op, err)
	}
	return books, nil
}

func (r *Repository) wrapError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("book already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("books table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBook(row rowScanner) (*openshelf.Book, error) {
	var (
		book         openshelf.Book
		description  *string
		ownerEmail   *string
		detectedType *string
		reviewerID   *string
		reviewReason *string
		reviewedAt   *time.Time
	)
	err := row.Scan(
		&book.ID, &book.Title, &book.Author, &description,
		&book.OwnerID, &ownerEmail, &book.Status, &book.StorageKey,
		&book.FileName, &book.DeclaredSize, &detectedType,
		&book.ExpiresAt, &reviewerID, &reviewReason, &reviewedAt,
		&book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if description != nil {
		book.Description = *description
	}
	if ownerEmail != nil {
		book.OwnerEmail = *ownerEmail
	}
	if detectedType != nil {
		book.DetectedContentType = *detectedType
	}
	if reviewerID != nil {
		book.Review = &openshelf.ReviewOutcome{ReviewerID: *reviewerID}
		if reviewReason != nil {
			book.Review.Reason = *reviewReason
		}
		if reviewedAt != nil {
			book.Review.ReviewedAt = *reviewedAt
		}
	}
	return &book, nil
}

// reviewJSON renders the review fields as a jsonb argument so a single UPDATE
// statement covers transitions with and without a review outcome.
func reviewJSON(review *openshelf.ReviewOutcome) map[string]interface{} {
	if review == nil {
		return map[string]interface{}{}
	}
	out := map[string]interface{}{
		"reviewerId": review.ReviewerID,
		"reviewedAt": review.ReviewedAt.Format(time.RFC3339Nano),
	}
	if review.Reason != "" {
		out["reason"] = review.Reason
	}
	return out
}

var _ openshelf.Repository = (*Repository)(nil)
