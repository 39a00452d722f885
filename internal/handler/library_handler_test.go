package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/bookman/internal/library"
	"github.com/hitoshi/bookman/internal/middleware"
	"github.com/hitoshi/bookman/internal/model"
)

// mockLibraryService はLibraryServiceInterfaceのテスト用モック。
type mockLibraryService struct {
	listEntriesFn    func(ctx context.Context, userID string) ([]library.EntryInfo, error)
	addBookFn        func(ctx context.Context, userID, bookID string, rating *int) (*model.LibraryEntry, error)
	rateFn           func(ctx context.Context, userID, bookID string, rating int) error
	removeRatingFn   func(ctx context.Context, userID, bookID string) error
	toggleFavoriteFn func(ctx context.Context, userID, bookID string) (bool, error)
	removeFn         func(ctx context.Context, userID, bookID string) error
}

func (m *mockLibraryService) ListEntries(ctx context.Context, userID string) ([]library.EntryInfo, error) {
	if m.listEntriesFn != nil {
		return m.listEntriesFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockLibraryService) AddBook(ctx context.Context, userID, bookID string, rating *int) (*model.LibraryEntry, error) {
	if m.addBookFn != nil {
		return m.addBookFn(ctx, userID, bookID, rating)
	}
	return nil, nil
}

func (m *mockLibraryService) Rate(ctx context.Context, userID, bookID string, rating int) error {
	if m.rateFn != nil {
		return m.rateFn(ctx, userID, bookID, rating)
	}
	return nil
}

func (m *mockLibraryService) RemoveRating(ctx context.Context, userID, bookID string) error {
	if m.removeRatingFn != nil {
		return m.removeRatingFn(ctx, userID, bookID)
	}
	return nil
}

func (m *mockLibraryService) ToggleFavorite(ctx context.Context, userID, bookID string) (bool, error) {
	if m.toggleFavoriteFn != nil {
		return m.toggleFavoriteFn(ctx, userID, bookID)
	}
	return false, nil
}

func (m *mockLibraryService) Remove(ctx context.Context, userID, bookID string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, userID, bookID)
	}
	return nil
}

var _ LibraryServiceInterface = (*mockLibraryService)(nil)

// authedRequest は認証済みユーザーのコンテキストを持つリクエストを作る。
func authedRequest(method, target, body, userID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

func TestLibraryHandler_ListEntries(t *testing.T) {
	ratingVal := 5
	svc := &mockLibraryService{
		listEntriesFn: func(ctx context.Context, userID string) ([]library.EntryInfo, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			return []library.EntryInfo{
				{
					ID:                "entry-1",
					BookID:            "book-1",
					BookTitle:         "Sult",
					BookAuthor:        "Knut Hamsun",
					BookGenre:         "Fiction",
					BookAverageRating: 4.2,
					Rating:            &ratingVal,
					IsFavorite:        true,
					ReadAt:            time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
				},
			}, nil
		},
	}
	h := NewLibraryHandler(svc)

	req := authedRequest(http.MethodGet, "/api/users/books", "", "user-1")
	rec := httptest.NewRecorder()

	h.ListEntries(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string][]entryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	entries := resp["entries"]
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.BookTitle != "Sult" || !e.IsFavorite || e.Rating == nil || *e.Rating != 5 {
		t.Errorf("entry = %+v", e)
	}
}

func TestLibraryHandler_ListEntries_Unauthorized(t *testing.T) {
	h := NewLibraryHandler(&mockLibraryService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/books", nil)
	rec := httptest.NewRecorder()

	h.ListEntries(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLibraryHandler_AddBook_WithRating(t *testing.T) {
	svc := &mockLibraryService{
		addBookFn: func(ctx context.Context, userID, bookID string, rating *int) (*model.LibraryEntry, error) {
			if bookID != "book-1" {
				t.Errorf("bookID = %q, want %q", bookID, "book-1")
			}
			if rating == nil || *rating != 4 {
				t.Errorf("rating = %v, want 4", rating)
			}
			return &model.LibraryEntry{
				ID:     "entry-1",
				UserID: userID,
				BookID: bookID,
				Rating: rating,
				ReadAt: time.Now(),
			}, nil
		},
	}
	h := NewLibraryHandler(svc)

	req := withURLParam(authedRequest(http.MethodPost, "/api/users/books/book-1", `{"rating":4}`, "user-1"), "bookId", "book-1")
	rec := httptest.NewRecorder()

	h.AddBook(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if resp["book_id"] != "book-1" {
		t.Errorf("book_id = %v", resp["book_id"])
	}
}

func TestLibraryHandler_AddBook_EmptyBody(t *testing.T) {
	svc := &mockLibraryService{
		addBookFn: func(ctx context.Context, userID, bookID string, rating *int) (*model.LibraryEntry, error) {
			if rating != nil {
				t.Errorf("rating = %v, want nil", rating)
			}
			return &model.LibraryEntry{ID: "entry-1", UserID: userID, BookID: bookID, ReadAt: time.Now()}, nil
		},
	}
	h := NewLibraryHandler(svc)

	req := withURLParam(authedRequest(http.MethodPost, "/api/users/books/book-1", "", "user-1"), "bookId", "book-1")
	rec := httptest.NewRecorder()

	h.AddBook(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
}

func TestLibraryHandler_AddBook_BookNotFound(t *testing.T) {
	svc := &mockLibraryService{
		addBookFn: func(ctx context.Context, userID, bookID string, rating *int) (*model.LibraryEntry, error) {
			return nil, model.NewBookNotFoundError(bookID)
		},
	}
	h := NewLibraryHandler(svc)

	req := withURLParam(authedRequest(http.MethodPost, "/api/users/books/missing", "", "user-1"), "bookId", "missing")
	rec := httptest.NewRecorder()

	h.AddBook(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestLibraryHandler_AddBook_Duplicate(t *testing.T) {
	svc := &mockLibraryService{
		addBookFn: func(ctx context.Context, userID, bookID string, rating *int) (*model.LibraryEntry, error) {
			return nil, model.NewDuplicateLibraryEntryError()
		},
	}
	h := NewLibraryHandler(svc)

	req := withURLParam(authedRequest(http.MethodPost, "/api/users/books/book-1", "", "user-1"), "bookId", "book-1")
	rec := httptest.NewRecorder()

	h.AddBook(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestLibraryHandler_Rate(t *testing.T) {
	var gotRating int
	svc := &mockLibraryService{
		rateFn: func(ctx context.Context, userID, bookID string, rating int) error {
			gotRating = rating
			return nil
		},
	}
	h := NewLibraryHandler(svc)

	req := withURLParam(authedRequest(http.MethodPost, "/api/users/books/book-1/rate", `{"rating":3}`, "user-1"), "bookId", "book-1")
	rec := httptest.NewRecorder()

	h.Rate(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if gotRating != 3 {
		t.Errorf("rating = %d, want 3", gotRating)
	}
}

func TestLibraryHandler_Rate_InvalidRating(t *testing.T) {
	svc := &mockLibraryService{
		rateFn: func(ctx context.Context, userID, bookID string, rating int) error {
			return model.NewInvalidRatingError(rating)
		},
	}
	h := NewLibraryHandler(svc)

	req := withURLParam(authedRequest(http.MethodPost, "/api/users/books/book-1/rate", `{"rating":6}`, "user-1"), "bookId", "book-1")
	rec := httptest.NewRecorder()

	h.Rate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if resp.Code != model.ErrCodeInvalidRating {
		t.Errorf("error code = %q, want %q", resp.Code, model.ErrCodeInvalidRating)
	}
}

func TestLibraryHandler_Rate_EntryNotFound(t *testing.T) {
	svc := &mockLibraryService{
		rateFn: func(ctx context.Context, userID, bookID string, rating int) error {
			return model.NewLibraryEntryNotFoundError(bookID)
		},
	}
	h := NewLibraryHandler(svc)

	req := withURLParam(authedRequest(http.MethodPost, "/api/users/books/book-9/rate", `{"rating":3}`, "user-1"), "bookId", "book-9")
	rec := httptest.NewRecorder()

	h.Rate(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestLibraryHandler_RemoveRating(t *testing.T) {
	called := false
	svc := &mockLibraryService{
		removeRatingFn: func(ctx context.Context, userID, bookID string) error {
			called = true
			return nil
		},
	}
	h := NewLibraryHandler(svc)

	req := withURLParam(authedRequest(http.MethodDelete, "/api/users/books/book-1/rate", "", "user-1"), "bookId", "book-1")
	rec := httptest.NewRecorder()

	h.RemoveRating(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if !called {
		t.Error("RemoveRating が呼ばれていない")
	}
}

func TestLibraryHandler_ToggleFavorite(t *testing.T) {
	svc := &mockLibraryService{
		toggleFavoriteFn: func(ctx context.Context, userID, bookID string) (bool, error) {
			return true, nil
		},
	}
	h := NewLibraryHandler(svc)

	req := withURLParam(authedRequest(http.MethodPost, "/api/users/books/book-1/favorite", "", "user-1"), "bookId", "book-1")
	rec := httptest.NewRecorder()

	h.ToggleFavorite(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp favoriteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスの解析に失敗: %v", err)
	}
	if resp.BookID != "book-1" || !resp.IsFavorite {
		t.Errorf("response = %+v", resp)
	}
}

func TestLibraryHandler_Remove(t *testing.T) {
	svc := &mockLibraryService{
		removeFn: func(ctx context.Context, userID, bookID string) error {
			if bookID != "book-1" {
				t.Errorf("bookID = %q, want %q", bookID, "book-1")
			}
			return nil
		},
	}
	h := NewLibraryHandler(svc)

	req := withURLParam(authedRequest(http.MethodDelete, "/api/users/books/book-1", "", "user-1"), "bookId", "book-1")
	rec := httptest.NewRecorder()

	h.Remove(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestLibraryHandler_Unauthorized(t *testing.T) {
	h := NewLibraryHandler(&mockLibraryService{})

	tests := []struct {
		name    string
		handler http.HandlerFunc
		method  string
		target  string
	}{
		{"追加", h.AddBook, http.MethodPost, "/api/users/books/book-1"},
		{"評価", h.Rate, http.MethodPost, "/api/users/books/book-1/rate"},
		{"評価取消", h.RemoveRating, http.MethodDelete, "/api/users/books/book-1/rate"},
		{"お気に入り", h.ToggleFavorite, http.MethodPost, "/api/users/books/book-1/favorite"},
		{"削除", h.Remove, http.MethodDelete, "/api/users/books/book-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withURLParam(httptest.NewRequest(tt.method, tt.target, nil), "bookId", "book-1")
			rec := httptest.NewRecorder()

			tt.handler(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}
