package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/bookman/internal/library"
	"github.com/hitoshi/bookman/internal/middleware"
	"github.com/hitoshi/bookman/internal/model"
)

// LibraryServiceInterface は読書リストハンドラーが必要とするサービスインターフェース。
type LibraryServiceInterface interface {
	ListEntries(ctx context.Context, userID string) ([]library.EntryInfo, error)
	AddBook(ctx context.Context, userID, bookID string, rating *int) (*model.LibraryEntry, error)
	Rate(ctx context.Context, userID, bookID string, rating int) error
	RemoveRating(ctx context.Context, userID, bookID string) error
	ToggleFavorite(ctx context.Context, userID, bookID string) (bool, error)
	Remove(ctx context.Context, userID, bookID string) error
}

// LibraryHandler は読書リストのHTTPハンドラー。
type LibraryHandler struct {
	service LibraryServiceInterface
}

// NewLibraryHandler はLibraryHandlerを生成する。
func NewLibraryHandler(service LibraryServiceInterface) *LibraryHandler {
	return &LibraryHandler{
		service: service,
	}
}

// addBookRequest は読書リスト追加リクエストのボディ。
type addBookRequest struct {
	Rating *int `json:"rating"`
}

// rateRequest は評価設定リクエストのボディ。
type rateRequest struct {
	Rating int `json:"rating"`
}

// entryResponse は読書リスト項目のAPIレスポンス。
type entryResponse struct {
	ID                string    `json:"id"`
	BookID            string    `json:"book_id"`
	BookTitle         string    `json:"book_title"`
	BookAuthor        string    `json:"book_author"`
	BookGenre         string    `json:"book_genre"`
	BookAverageRating float64   `json:"book_average_rating"`
	BookCoverImageURL string    `json:"book_cover_image_url,omitempty"`
	Rating            *int      `json:"rating"`
	IsFavorite        bool      `json:"is_favorite"`
	ReadAt            time.Time `json:"read_at"`
}

// favoriteResponse はお気に入り切り替えのAPIレスポンス。
type favoriteResponse struct {
	BookID     string `json:"book_id"`
	IsFavorite bool   `json:"is_favorite"`
}

// ListEntries はユーザーの読書リストを取得する。
// GET /api/users/books
func (h *LibraryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	entries, err := h.service.ListEntries(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]entryResponse, len(entries))
	for i, e := range entries {
		results[i] = toEntryResponse(e)
	}

	writeJSON(w, http.StatusOK, map[string][]entryResponse{"entries": results})
}

// AddBook は書籍を読書リストに追加する。初回評価をボディで指定できる。
// POST /api/users/books/:bookId
func (h *LibraryHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	bookID := chi.URLParam(r, "bookId")

	// ボディは省略可能（評価なしで追加）
	var req addBookRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
			return
		}
	}

	entry, err := h.service.AddBook(r.Context(), userID, bookID, req.Rating)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          entry.ID,
		"book_id":     entry.BookID,
		"rating":      entry.Rating,
		"is_favorite": entry.IsFavorite,
		"read_at":     entry.ReadAt,
	})
}

// Rate は読書リスト項目の評価を設定・変更する。
// POST /api/users/books/:bookId/rate
func (h *LibraryHandler) Rate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	bookID := chi.URLParam(r, "bookId")

	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました。"))
		return
	}

	if err := h.service.Rate(r.Context(), userID, bookID, req.Rating); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveRating は読書リスト項目の評価を取り消す。
// DELETE /api/users/books/:bookId/rate
func (h *LibraryHandler) RemoveRating(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	bookID := chi.URLParam(r, "bookId")

	if err := h.service.RemoveRating(r.Context(), userID, bookID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ToggleFavorite はお気に入りフラグを切り替える。
// POST /api/users/books/:bookId/favorite
func (h *LibraryHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	bookID := chi.URLParam(r, "bookId")

	isFavorite, err := h.service.ToggleFavorite(r.Context(), userID, bookID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, favoriteResponse{
		BookID:     bookID,
		IsFavorite: isFavorite,
	})
}

// Remove は書籍を読書リストから削除する。
// DELETE /api/users/books/:bookId
func (h *LibraryHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, unauthorizedError())
		return
	}

	bookID := chi.URLParam(r, "bookId")

	if err := h.service.Remove(r.Context(), userID, bookID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toEntryResponse はドメインのEntryInfoをAPIレスポンスに変換する。
func toEntryResponse(e library.EntryInfo) entryResponse {
	return entryResponse{
		ID:                e.ID,
		BookID:            e.BookID,
		BookTitle:         e.BookTitle,
		BookAuthor:        e.BookAuthor,
		BookGenre:         e.BookGenre,
		BookAverageRating: e.BookAverageRating,
		BookCoverImageURL: e.BookCoverImageURL,
		Rating:            e.Rating,
		IsFavorite:        e.IsFavorite,
		ReadAt:            e.ReadAt,
	}
}
