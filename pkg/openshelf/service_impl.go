package openshelf

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SniffPrefixSize is how many leading bytes classification reads. Magic-number
// detection never needs more.
const SniffPrefixSize = 4096

// Limits bound what an upload slot will accept and how long issued
// credentials live.
type Limits struct {
	MaxUploadBytes    int64
	AllowedExtensions []string
	UploadURLTTL      time.Duration
	DraftTTL          time.Duration
	ReadURLTTL        time.Duration
}

// DefaultLimits mirrors the production defaults: 50 MiB uploads, PDF/EPUB
// only, 15 minute write credentials, 72 hour draft expiry, 1 hour read URLs.
func DefaultLimits() Limits {
	return Limits{
		MaxUploadBytes:    50 * 1024 * 1024,
		AllowedExtensions: []string{".pdf", ".epub"},
		UploadURLTTL:      15 * time.Minute,
		DraftTTL:          72 * time.Hour,
		ReadURLTTL:        time.Hour,
	}
}

// service implements the Service interface.
type service struct {
	repository Repository
	blobStore  BlobStore
	relocator  *Relocator
	sniffer    Sniffer
	signer     AccessSigner
	limits     Limits
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the service.
type Option func(*service)

// WithRepository sets the metadata store access layer.
func WithRepository(repo Repository) Option {
	return func(s *service) { s.repository = repo }
}

// WithBlobStore sets the object store.
func WithBlobStore(store BlobStore) Option {
	return func(s *service) { s.blobStore = store }
}

// WithSniffer sets the content classifier.
func WithSniffer(sniffer Sniffer) Option {
	return func(s *service) { s.sniffer = sniffer }
}

// WithAccessSigner sets the signed read-URL issuer.
func WithAccessSigner(signer AccessSigner) Option {
	return func(s *service) { s.signer = signer }
}

// WithLimits overrides the default limits.
func WithLimits(limits Limits) Option {
	return func(s *service) { s.limits = limits }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

// WithClock overrides the time source. Tests use this for deterministic
// expiry and review stamps.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// New creates a lifecycle service. A repository, blob store and sniffer are
// required; the access signer may be omitted, in which case GetReadAccess
// fails with ErrSignerNotConfigured.
func New(options ...Option) (Service, error) {
	s := &service{
		limits: DefaultLimits(),
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if s.sniffer == nil {
		return nil, fmt.Errorf("sniffer is required")
	}
	s.relocator = NewRelocator(s.blobStore, s.logger)
	return s, nil
}

func (s *service) CreateUploadSlot(ctx context.Context, req CreateUploadSlotRequest) (*UploadSlot, error) {
	if err := s.validateSlotRequest(req); err != nil {
		return nil, err
	}

	now := s.now()
	expiry := now.Add(s.limits.DraftTTL)
	book := &Book{
		ID:           uuid.New(),
		Title:        req.Title,
		Author:       req.Author,
		Description:  req.Description,
		OwnerID:      req.Owner.ID,
		OwnerEmail:   req.Owner.Email,
		Status:       StatusUploading,
		FileName:     req.FileName,
		DeclaredSize: req.FileSize,
		ExpiresAt:    &expiry,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	book.StorageKey = BuildKey(ZoneIntake, book.ID, req.FileName)

	if err := s.repository.CreateBook(ctx, book); err != nil {
		return nil, &BookError{BookID: book.ID, Op: "create_slot", Err: err}
	}

	uploadURL, err := s.blobStore.PresignPut(ctx, book.StorageKey, s.limits.UploadURLTTL)
	if err != nil {
		return nil, &StorageError{Key: book.StorageKey, Op: "presign_put", Err: err}
	}

	s.logger.Info("upload slot created",
		"book_id", book.ID, "owner_id", book.OwnerID, "key", book.StorageKey)

	return &UploadSlot{
		BookID:    book.ID,
		UploadURL: uploadURL,
		ExpiresIn: s.limits.UploadURLTTL,
	}, nil
}

func (s *service) OnContentUploaded(ctx context.Context, bookID uuid.UUID) (*Book, error) {
	book, err := s.repository.GetBook(ctx, bookID)
	if err != nil {
		return nil, &BookError{BookID: bookID, Op: "classify", Err: err}
	}

	switch book.Status {
	case StatusUploading:
		// fall through to classification
	case StatusPending, StatusRejected:
		// A retry after the metadata commit already landed. Nothing to do.
		return book, nil
	default:
		return nil, &BookError{BookID: bookID, Op: "classify", Err: ErrStatusConflict}
	}

	prefix, err := s.blobStore.ReadPrefix(ctx, book.StorageKey, SniffPrefixSize)
	if err != nil {
		return nil, &StorageError{Key: book.StorageKey, Op: "read_prefix", Err: err}
	}

	c := s.sniffer.Detect(prefix, book.FileName)
	if !c.Allowed {
		return s.rejectAtIntake(ctx, book, c)
	}

	reviewKey, err := RezoneKey(book.StorageKey, ZoneReview)
	if err != nil {
		return nil, &BookError{BookID: bookID, Op: "classify", Err: err}
	}

	// Blob first, metadata second. If the move fails the record stays
	// UPLOADING and the trigger retry repeats the whole transition.
	if err := s.relocator.Move(ctx, book.StorageKey, reviewKey); err != nil {
		return nil, err
	}

	updated, err := s.repository.ApplyStatusChange(ctx, bookID, StatusUploading,
		ChangeToPending(reviewKey, c.MediaType))
	if err != nil {
		return nil, &BookError{BookID: bookID, Op: "classify", Err: err}
	}

	s.logger.Info("book classified as allowed",
		"book_id", bookID, "media_type", c.MediaType, "key", reviewKey)
	return updated, nil
}

// rejectAtIntake handles a disallowed classification: the blob is deleted
// outright since the content will never be reviewed, and the record is
// rejected in place.
func (s *service) rejectAtIntake(ctx context.Context, book *Book, c Classification) (*Book, error) {
	if err := s.relocator.Delete(ctx, book.StorageKey); err != nil {
		return nil, err
	}

	reason := fmt.Sprintf("invalid type: %s", c.MediaType)
	updated, err := s.repository.ApplyStatusChange(ctx, book.ID, StatusUploading,
		ChangeToRejectedAtIntake(c.MediaType, reason, s.now()))
	if err != nil {
		return nil, &BookError{BookID: book.ID, Op: "classify", Err: err}
	}

	s.logger.Info("book rejected at intake",
		"book_id", book.ID, "media_type", c.MediaType)
	return updated, nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	return s.repository.GetBook(ctx, id)
}

func (s *service) ListPending(ctx context.Context, req ListRequest) ([]*Book, error) {
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}
	return s.repository.ListPending(ctx, req.Limit, req.Offset)
}

func (s *service) Approve(ctx context.Context, req ModerationRequest) (*Book, error) {
	return s.moderate(ctx, req, true)
}

func (s *service) Reject(ctx context.Context, req ModerationRequest) (*Book, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrInvalidRequest)
	}
	return s.moderate(ctx, req, false)
}

func (s *service) moderate(ctx context.Context, req ModerationRequest, approve bool) (*Book, error) {
	op := "reject"
	if approve {
		op = "approve"
	}

	book, err := s.repository.GetBook(ctx, req.BookID)
	if err != nil {
		return nil, &BookError{BookID: req.BookID, Op: op, Err: err}
	}

	// Checked up front so a decision on the wrong state never touches the
	// blob; the conditional update enforces it again at commit time, which is
	// what settles concurrent moderator races.
	if book.Status != StatusPending {
		return nil, &BookError{BookID: req.BookID, Op: op, Err: ErrStatusConflict}
	}

	var change StatusChange
	var dstKey string
	if approve {
		dstKey, err = RezoneKey(book.StorageKey, ZonePublic)
		if err == nil {
			change = ChangeToApproved(dstKey, req.Reviewer.ID, s.now())
		}
	} else {
		dstKey, err = RezoneKey(book.StorageKey, ZoneQuarantine)
		if err == nil {
			change = ChangeToRejected(dstKey, req.Reviewer.ID, req.Reason, s.now())
		}
	}
	if err != nil {
		return nil, &BookError{BookID: req.BookID, Op: op, Err: err}
	}

	if err := s.relocator.Move(ctx, book.StorageKey, dstKey); err != nil {
		return nil, err
	}

	updated, err := s.repository.ApplyStatusChange(ctx, req.BookID, StatusPending, change)
	if err != nil {
		return nil, &BookError{BookID: req.BookID, Op: op, Err: err}
	}

	s.logger.Info("moderation decision applied",
		"book_id", req.BookID, "decision", op, "reviewer", req.Reviewer.ID, "key", dstKey)
	return updated, nil
}

func (s *service) GetReadAccess(ctx context.Context, bookID uuid.UUID) (*ReadAccess, error) {
	book, err := s.repository.GetBook(ctx, bookID)
	if err != nil {
		return nil, &BookError{BookID: bookID, Op: "read_access", Err: err}
	}
	if book.Status != StatusApproved {
		return nil, &BookError{BookID: bookID, Op: "read_access", Err: ErrNotApproved}
	}
	if s.signer == nil {
		return nil, &BookError{BookID: bookID, Op: "read_access", Err: ErrSignerNotConfigured}
	}

	access, err := s.signer.SignRead(book.StorageKey, book.FileName, s.limits.ReadURLTTL)
	if err != nil {
		return nil, &BookError{BookID: bookID, Op: "read_access", Err: err}
	}
	return access, nil
}

func (s *service) ListMine(ctx context.Context, ownerID string, req ListRequest) ([]*Book, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", ErrInvalidRequest)
	}
	req, err := req.normalize()
	if err != nil {
		return nil, err
	}
	return s.repository.ListByOwner(ctx, ownerID, req.Limit, req.Offset)
}

func (s *service) Delete(ctx context.Context, bookID uuid.UUID, actor Actor) error {
	book, err := s.repository.GetBook(ctx, bookID)
	if err != nil {
		return &BookError{BookID: bookID, Op: "delete", Err: err}
	}

	if !actor.Moderator && actor.ID != book.OwnerID {
		return &BookError{BookID: bookID, Op: "delete", Err: ErrNotEntitled}
	}

	// Best-effort blob cleanup across every zone the key could be in, then
	// unconditional record deletion.
	s.relocator.DeleteAllZones(ctx, book.StorageKey)

	if err := s.repository.DeleteBook(ctx, bookID); err != nil {
		return &BookError{BookID: bookID, Op: "delete", Err: err}
	}

	s.logger.Info("book deleted", "book_id", bookID, "actor", actor.ID)
	return nil
}

func (s *service) validateSlotRequest(req CreateUploadSlotRequest) error {
	if req.Owner.ID == "" {
		return fmt.Errorf("%w: owner identity is required", ErrInvalidRequest)
	}
	if req.FileName == "" {
		return fmt.Errorf("%w: fileName must not be empty", ErrInvalidRequest)
	}
	if req.Title == "" || req.Author == "" {
		return fmt.Errorf("%w: title and author are required", ErrInvalidRequest)
	}
	if req.FileSize <= 0 {
		return fmt.Errorf("%w: fileSize must be positive", ErrInvalidRequest)
	}
	if req.FileSize > s.limits.MaxUploadBytes {
		return ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(req.FileName))
	for _, allowed := range s.limits.AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return ErrExtensionNotAllowed
}
