// Package api exposes the book publishing workflow over HTTP. Every response
// uses the same envelope; callers are authenticated by JWT except the
// object-created hook, which is reached only from inside the deployment.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/openshelf/openshelf/pkg/openshelf"
)

// BooksHandler handles HTTP requests for the book workflow.
type BooksHandler struct {
	service openshelf.Service
}

// NewBooksHandler creates a books handler.
func NewBooksHandler(service openshelf.Service) *BooksHandler {
	return &BooksHandler{service: service}
}

// Routes mounts the authenticated book routes. Admin routes additionally
// require moderator group membership.
func (h *BooksHandler) Routes(tokenAuth *jwtauth.JWTAuth, moderatorGroup string) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(WithActor(moderatorGroup))

		r.Post("/books/uploads", h.CreateUploadSlot)
		r.Get("/books/mine", h.ListMine)
		r.Get("/books/{bookID}", h.GetBook)
		r.Get("/books/{bookID}/read-url", h.GetReadAccess)
		r.Delete("/books/{bookID}", h.DeleteBook)

		r.Group(func(r chi.Router) {
			r.Use(RequireModerator)
			r.Get("/admin/books/pending", h.ListPending)
			r.Post("/admin/books/{bookID}/approve", h.Approve)
			r.Post("/admin/books/{bookID}/reject", h.Reject)
		})
	})

	return r
}

// InternalRoutes mounts the object-created hook. These are not JWT-protected;
// keep them off the public listener.
func (h *BooksHandler) InternalRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/events/object-created", h.ObjectCreated)
	return r
}

// CreateUploadSlotRequest is the request body for opening an upload slot.
type CreateUploadSlotRequest struct {
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description,omitempty"`
}

// UploadSlotResponse is the response body for an opened upload slot.
type UploadSlotResponse struct {
	BookID    string `json:"bookId"`
	UploadURL string `json:"uploadUrl"`
	ExpiresIn int64  `json:"expiresIn"`
}

// BookResponse is the response body for a book record.
type BookResponse struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	Author              string     `json:"author"`
	Description         string     `json:"description,omitempty"`
	OwnerID             string     `json:"ownerId"`
	Status              string     `json:"status"`
	FileName            string     `json:"fileName"`
	DetectedContentType string     `json:"detectedContentType,omitempty"`
	RejectReason        string     `json:"rejectReason,omitempty"`
	ExpiresAt           *time.Time `json:"expiresAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// ReadAccessResponse is the response body for a signed read URL.
type ReadAccessResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ObjectCreatedEvent is the payload of the object-created hook.
type ObjectCreatedEvent struct {
	BookID string `json:"bookId"`
}

func (h *BooksHandler) CreateUploadSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondErrorCode(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid token")
		return
	}

	var req CreateUploadSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorCode(w, r, http.StatusBadRequest, CodeInvalidRequest, "malformed request body")
		return
	}

	slot, err := h.service.CreateUploadSlot(r.Context(), openshelf.CreateUploadSlotRequest{
		Owner:       actor,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
		Title:       req.Title,
		Author:      req.Author,
		Description: req.Description,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, UploadSlotResponse{
		BookID:    slot.BookID.String(),
		UploadURL: slot.UploadURL,
		ExpiresIn: int64(slot.ExpiresIn.Seconds()),
	})
}

func (h *BooksHandler) ObjectCreated(w http.ResponseWriter, r *http.Request) {
	var event ObjectCreatedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		respondErrorCode(w, r, http.StatusBadRequest, CodeInvalidRequest, "malformed request body")
		return
	}
	bookID, err := uuid.Parse(event.BookID)
	if err != nil {
		respondErrorCode(w, r, http.StatusBadRequest, CodeInvalidRequest, "malformed book id")
		return
	}

	book, err := h.service.OnContentUploaded(r.Context(), bookID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, toBookResponse(book))
}

func (h *BooksHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	actor, bookID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	book, err := h.service.GetBook(r.Context(), bookID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if book.OwnerID != actor.ID && !actor.Moderator {
		respondErrorCode(w, r, http.StatusForbidden, CodeForbidden, "not allowed to act on this book")
		return
	}
	respond(w, r, http.StatusOK, toBookResponse(book))
}

func (h *BooksHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondErrorCode(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid token")
		return
	}

	books, err := h.service.ListMine(r.Context(), actor.ID, listRequest(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, toBookResponses(books))
}

func (h *BooksHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListPending(r.Context(), listRequest(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, toBookResponses(books))
}

func (h *BooksHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, bookID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	book, err := h.service.Approve(r.Context(), openshelf.ModerationRequest{
		BookID:   bookID,
		Reviewer: actor,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, toBookResponse(book))
}

// RejectRequest is the request body for rejecting a pending book.
type RejectRequest struct {
	Reason string `json:"reason"`
}

func (h *BooksHandler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, bookID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorCode(w, r, http.StatusBadRequest, CodeInvalidRequest, "malformed request body")
		return
	}

	book, err := h.service.Reject(r.Context(), openshelf.ModerationRequest{
		BookID:   bookID,
		Reviewer: actor,
		Reason:   req.Reason,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, toBookResponse(book))
}

func (h *BooksHandler) GetReadAccess(w http.ResponseWriter, r *http.Request) {
	_, bookID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	access, err := h.service.GetReadAccess(r.Context(), bookID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, ReadAccessResponse{
		URL:       access.URL,
		ExpiresAt: access.ExpiresAt,
	})
}

func (h *BooksHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	actor, bookID, ok := h.actorAndID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), bookID, actor); err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *BooksHandler) actorAndID(w http.ResponseWriter, r *http.Request) (openshelf.Actor, uuid.UUID, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		respondErrorCode(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid token")
		return openshelf.Actor{}, uuid.Nil, false
	}
	bookID, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		respondErrorCode(w, r, http.StatusBadRequest, CodeInvalidRequest, "malformed book id")
		return openshelf.Actor{}, uuid.Nil, false
	}
	return actor, bookID, true
}

func listRequest(r *http.Request) openshelf.ListRequest {
	var req openshelf.ListRequest
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.Limit = n
		} else {
			req.Limit = -1 // surfaces as InvalidRequest
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.Offset = n
		} else {
			req.Offset = -1
		}
	}
	return req
}

func toBookResponse(book *openshelf.Book) BookResponse {
	resp := BookResponse{
		ID:                  book.ID.String(),
		Title:               book.Title,
		Author:              book.Author,
		Description:         book.Description,
		OwnerID:             book.OwnerID,
		Status:              string(book.Status),
		FileName:            book.FileName,
		DetectedContentType: book.DetectedContentType,
		ExpiresAt:           book.ExpiresAt,
		CreatedAt:           book.CreatedAt,
		UpdatedAt:           book.UpdatedAt,
	}
	if book.Review != nil && book.Status == openshelf.StatusRejected {
		resp.RejectReason = book.Review.Reason
	}
	return resp
}

func toBookResponses(books []*openshelf.Book) []BookResponse {
	out := make([]BookResponse, 0, len(books))
	for _, book := range books {
		out = append(out, toBookResponse(book))
	}
	return out
}
