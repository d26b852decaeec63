// Package dynamo provides the DynamoDB repository. One record per book in a
// single table (PK "BOOK#{id}", SK "METADATA"), with two sparse global
// secondary indexes: a by-status index whose attributes exist only while the
// book is PENDING, and a by-owner index kept for the record's lifetime.
// Index membership is controlled purely by attribute presence, so every
// status change sets or removes those attributes in the same conditional
// update that flips the status.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/openshelf/openshelf/pkg/openshelf"
)

const (
	skMetadata = "METADATA"

	byStatusIndex = "byStatus"
	byOwnerIndex  = "byOwner"

	pendingPartition = "STATUS#PENDING"
)

// Repository implements openshelf.Repository over DynamoDB.
type Repository struct {
	client *dynamodb.Client
	table  string
}

// New creates a DynamoDB repository for the given table.
func New(client *dynamodb.Client, table string) *Repository {
	return &Repository{client: client, table: table}
}

// record is the persisted shape of a book. The sparse index attributes
// (ByStatusPK/SK) are present only while the book is PENDING; TTL carries the
// draft expiry for the store's native sweep and is removed when the record
// leaves UPLOADING.
type record struct {
	PK string `dynamodbav:"PK"`
	SK string `dynamodbav:"SK"`

	BookID      string `dynamodbav:"bookId"`
	Title       string `dynamodbav:"title"`
	Author      string `dynamodbav:"author"`
	Description string `dynamodbav:"description,omitempty"`

	OwnerID    string `dynamodbav:"ownerId"`
	OwnerEmail string `dynamodbav:"ownerEmail,omitempty"`

	Status       string `dynamodbav:"status"`
	StorageKey   string `dynamodbav:"storageKey"`
	FileName     string `dynamodbav:"fileName"`
	DeclaredSize int64  `dynamodbav:"declaredSize"`

	DetectedContentType string `dynamodbav:"detectedContentType,omitempty"`

	TTL *int64 `dynamodbav:"ttl,omitempty"`

	ReviewerID   string `dynamodbav:"reviewerId,omitempty"`
	ReviewReason string `dynamodbav:"reviewReason,omitempty"`
	ReviewedAt   string `dynamodbav:"reviewedAt,omitempty"`

	ByStatusPK string `dynamodbav:"byStatusPK,omitempty"`
	ByStatusSK string `dynamodbav:"byStatusSK,omitempty"`
	ByOwnerPK  string `dynamodbav:"byOwnerPK"`
	ByOwnerSK  string `dynamodbav:"byOwnerSK"`

	CreatedAt string `dynamodbav:"createdAt"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

func pkFor(id uuid.UUID) string      { return "BOOK#" + id.String() }
func ownerPKFor(owner string) string { return "UPLOADER#" + owner }

func (r *Repository) CreateBook(ctx context.Context, book *openshelf.Book) error {
	rec := toRecord(book)
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal book record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("failed to put book record: %w", err)
	}
	return nil
}

func (r *Repository) GetBook(ctx context.Context, id uuid.UUID) (*openshelf.Book, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       recordKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get book record: %w", err)
	}
	if out.Item == nil {
		return nil, openshelf.ErrBookNotFound
	}

	var rec record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal book record: %w", err)
	}
	return fromRecord(&rec)
}

func (r *Repository) ApplyStatusChange(ctx context.Context, id uuid.UUID, expect openshelf.BookStatus, change openshelf.StatusChange) (*openshelf.Book, error) {
	now := time.Now().UTC()

	update := expression.
		Set(expression.Name("status"), expression.Value(string(change.To))).
		Set(expression.Name("updatedAt"), expression.Value(now.Format(time.RFC3339Nano)))

	if change.StorageKey != "" {
		update = update.Set(expression.Name("storageKey"), expression.Value(change.StorageKey))
	}
	if change.DetectedContentType != "" {
		update = update.Set(expression.Name("detectedContentType"), expression.Value(change.DetectedContentType))
	}
	if change.ClearExpiry {
		update = update.Remove(expression.Name("ttl"))
	}
	if change.EnterPendingIndex {
		update = update.
			Set(expression.Name("byStatusPK"), expression.Value(pendingPartition)).
			Set(expression.Name("byStatusSK"), expression.Value(pendingSortKey(now, id)))
	}
	if change.LeavePendingIndex {
		update = update.
			Remove(expression.Name("byStatusPK")).
			Remove(expression.Name("byStatusSK"))
	}
	if change.Review != nil {
		update = update.
			Set(expression.Name("reviewerId"), expression.Value(change.Review.ReviewerID)).
			Set(expression.Name("reviewedAt"), expression.Value(change.Review.ReviewedAt.Format(time.RFC3339Nano)))
		if change.Review.Reason != "" {
			update = update.Set(expression.Name("reviewReason"), expression.Value(change.Review.Reason))
		}
	}

	// The status precondition rides the same update call; concurrent
	// transitions race here and exactly one wins.
	cond := expression.Name("PK").AttributeExists().
		And(expression.Name("status").Equal(expression.Value(string(expect))))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update expression: %w", err)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       recordKey(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              ddbtypes.ReturnValueAllNew,
	})
	if err != nil {
		var condFailed *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			// Disambiguate: unknown record vs wrong status.
			if _, getErr := r.GetBook(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, openshelf.ErrStatusConflict
		}
		return nil, fmt.Errorf("failed to update book record: %w", err)
	}

	var rec record
	if err := attributevalue.UnmarshalMap(out.Attributes, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal updated record: %w", err)
	}
	return fromRecord(&rec)
}

func (r *Repository) DeleteBook(ctx context.Context, id uuid.UUID) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       recordKey(id),
	})
	if err != nil {
		return fmt.Errorf("failed to delete book record: %w", err)
	}
	return nil
}

func (r *Repository) ListPending(ctx context.Context, limit, offset int) ([]*openshelf.Book, error) {
	return r.queryIndex(ctx, byStatusIndex, "byStatusPK", pendingPartition, true, limit, offset)
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*openshelf.Book, error) {
	return r.queryIndex(ctx, byOwnerIndex, "byOwnerPK", ownerPKFor(ownerID), false, limit, offset)
}

// queryIndex pages through a GSI collecting offset+limit items, then slices.
// Offsets here are small (admin and owner listings), so client-side paging
// over the index keeps the API simple.
func (r *Repository) queryIndex(ctx context.Context, index, pkName, pkValue string, ascending bool, limit, offset int) ([]*openshelf.Book, error) {
	keyCond := expression.Key(pkName).Equal(expression.Value(pkValue))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	want := offset + limit
	var items []map[string]ddbtypes.AttributeValue
	var startKey map[string]ddbtypes.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.table),
			IndexName:                 aws.String(index),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(ascending),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query %s index: %w", index, err)
		}
		items = append(items, out.Items...)
		if out.LastEvaluatedKey == nil || len(items) >= want {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	if offset >= len(items) {
		return []*openshelf.Book{}, nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}

	books := make([]*openshelf.Book, 0, len(items))
	for _, item := range items {
		var rec record
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal book record: %w", err)
		}
		book, err := fromRecord(&rec)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

func recordKey(id uuid.UUID) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"PK": &ddbtypes.AttributeValueMemberS{Value: pkFor(id)},
		"SK": &ddbtypes.AttributeValueMemberS{Value: skMetadata},
	}
}

// pendingSortKey orders the moderation queue oldest-first.
func pendingSortKey(enteredAt time.Time, id uuid.UUID) string {
	return fmt.Sprintf("PENDING#%s#%s", enteredAt.Format(time.RFC3339Nano), id)
}

func toRecord(book *openshelf.Book) *record {
	rec := &record{
		PK:           pkFor(book.ID),
		SK:           skMetadata,
		BookID:       book.ID.String(),
		Title:        book.Title,
		Author:       book.Author,
		Description:  book.Description,
		OwnerID:      book.OwnerID,
		OwnerEmail:   book.OwnerEmail,
		Status:       string(book.Status),
		StorageKey:   book.StorageKey,
		FileName:     book.FileName,
		DeclaredSize: book.DeclaredSize,
		ByOwnerPK:    ownerPKFor(book.OwnerID),
		ByOwnerSK:    fmt.Sprintf("CREATED#%s#%s", book.CreatedAt.Format(time.RFC3339Nano), book.ID),
		CreatedAt:    book.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:    book.UpdatedAt.Format(time.RFC3339Nano),
	}
	if book.DetectedContentType != "" {
		rec.DetectedContentType = book.DetectedContentType
	}
	if book.ExpiresAt != nil {
		epoch := book.ExpiresAt.Unix()
		rec.TTL = &epoch
	}
	if book.Status == openshelf.StatusPending {
		rec.ByStatusPK = pendingPartition
		rec.ByStatusSK = pendingSortKey(book.UpdatedAt, book.ID)
	}
	if book.Review != nil {
		rec.ReviewerID = book.Review.ReviewerID
		rec.ReviewReason = book.Review.Reason
		rec.ReviewedAt = book.Review.ReviewedAt.Format(time.RFC3339Nano)
	}
	return rec
}

func fromRecord(rec *record) (*openshelf.Book, error) {
	id, err := uuid.Parse(rec.BookID)
	if err != nil {
		return nil, fmt.Errorf("record has malformed book id %q: %w", rec.BookID, err)
	}

	book := &openshelf.Book{
		ID:                  id,
		Title:               rec.Title,
		Author:              rec.Author,
		Description:         rec.Description,
		OwnerID:             rec.OwnerID,
		OwnerEmail:          rec.OwnerEmail,
		Status:              openshelf.BookStatus(rec.Status),
		StorageKey:          rec.StorageKey,
		FileName:            rec.FileName,
		DeclaredSize:        rec.DeclaredSize,
		DetectedContentType: rec.DetectedContentType,
	}
	if rec.TTL != nil {
		expiry := time.Unix(*rec.TTL, 0).UTC()
		book.ExpiresAt = &expiry
	}
	if rec.ReviewerID != "" {
		reviewedAt, err := time.Parse(time.RFC3339Nano, rec.ReviewedAt)
		if err != nil {
			return nil, fmt.Errorf("record has malformed review timestamp %q: %w", rec.ReviewedAt, err)
		}
		book.Review = &openshelf.ReviewOutcome{
			ReviewerID: rec.ReviewerID,
			Reason:     rec.ReviewReason,
			ReviewedAt: reviewedAt,
		}
	}
	if book.CreatedAt, err = time.Parse(time.RFC3339Nano, rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("record has malformed createdAt %q: %w", rec.CreatedAt, err)
	}
	if book.UpdatedAt, err = time.Parse(time.RFC3339Nano, rec.UpdatedAt); err != nil {
		return nil, fmt.Errorf("record has malformed updatedAt %q: %w", rec.UpdatedAt, err)
	}
	return book, nil
}

var _ openshelf.Repository = (*Repository)(nil)
