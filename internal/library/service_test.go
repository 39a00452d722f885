package library

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// --- モック定義 ---

type mockLibraryRepo struct {
	findByUserAndBookFn    func(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error)
	listByUserIDWithBookFn func(ctx context.Context, userID string) ([]repository.LibraryEntryWithBook, error)
	createFn               func(ctx context.Context, entry *model.LibraryEntry) error
	updateRatingFn         func(ctx context.Context, id string, rating *int) error
	updateFavoriteFn       func(ctx context.Context, id string, isFavorite bool) error
	deleteFn               func(ctx context.Context, id string) error
}

func (m *mockLibraryRepo) FindByUserAndBook(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error) {
	if m.findByUserAndBookFn != nil {
		return m.findByUserAndBookFn(ctx, userID, bookID)
	}
	return nil, nil
}

func (m *mockLibraryRepo) ListByUserIDWithBook(ctx context.Context, userID string) ([]repository.LibraryEntryWithBook, error) {
	if m.listByUserIDWithBookFn != nil {
		return m.listByUserIDWithBookFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockLibraryRepo) Create(ctx context.Context, entry *model.LibraryEntry) error {
	if m.createFn != nil {
		return m.createFn(ctx, entry)
	}
	return nil
}

func (m *mockLibraryRepo) UpdateRating(ctx context.Context, id string, rating *int) error {
	if m.updateRatingFn != nil {
		return m.updateRatingFn(ctx, id, rating)
	}
	return nil
}

func (m *mockLibraryRepo) UpdateFavorite(ctx context.Context, id string, isFavorite bool) error {
	if m.updateFavoriteFn != nil {
		return m.updateFavoriteFn(ctx, id, isFavorite)
	}
	return nil
}

func (m *mockLibraryRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockLibraryRepo) ListByUserID(_ context.Context, _ string) ([]*model.LibraryEntry, error) {
	return nil, nil
}
func (m *mockLibraryRepo) ListByBookID(_ context.Context, _ string) ([]*model.LibraryEntry, error) {
	return nil, nil
}
func (m *mockLibraryRepo) ListReviewsByBookID(_ context.Context, _ string) ([]repository.Review, error) {
	return nil, nil
}
func (m *mockLibraryRepo) CountFavoritesByBookID(_ context.Context, _ string) (int, error) {
	return 0, nil
}
func (m *mockLibraryRepo) DeleteByUserID(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

type mockBookRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Book, error)
}

func (m *mockBookRepo) FindByID(ctx context.Context, id string) (*model.Book, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockBookRepo) FindByIDs(_ context.Context, _ []string) ([]*model.Book, error) {
	return nil, nil
}
func (m *mockBookRepo) List(_ context.Context, _, _ int) ([]*model.Book, int, error) {
	return nil, 0, nil
}
func (m *mockBookRepo) Search(_ context.Context, _ string, _, _ int) ([]*model.Book, int, error) {
	return nil, 0, nil
}
func (m *mockBookRepo) ListByGenres(_ context.Context, _ []string) ([]*model.Book, error) {
	return nil, nil
}
func (m *mockBookRepo) ListByAuthors(_ context.Context, _ []string) ([]*model.Book, error) {
	return nil, nil
}
func (m *mockBookRepo) ListAll(_ context.Context) ([]*model.Book, error) { return nil, nil }
func (m *mockBookRepo) Create(_ context.Context, _ *model.Book) error    { return nil }
func (m *mockBookRepo) Update(_ context.Context, _ *model.Book) error    { return nil }
func (m *mockBookRepo) Delete(_ context.Context, _ string) error         { return nil }
func (m *mockBookRepo) UpdateAverageRating(_ context.Context, _ string, _ float64) error {
	return nil
}
func (m *mockBookRepo) UpdateCover(_ context.Context, _ string, _ []byte, _ string) error {
	return nil
}
func (m *mockBookRepo) ListMissingCover(_ context.Context, _ int) ([]*model.Book, error) {
	return nil, nil
}
func (m *mockBookRepo) ExistsByISBN(_ context.Context, _ string) (bool, error) { return false, nil }
func (m *mockBookRepo) ExistsByTitleAndAuthor(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

type mockAggregator struct {
	recomputeFn func(ctx context.Context, bookID string) (float64, error)
	calls       []string
}

func (m *mockAggregator) RecomputeAverageRating(ctx context.Context, bookID string) (float64, error) {
	m.calls = append(m.calls, bookID)
	if m.recomputeFn != nil {
		return m.recomputeFn(ctx, bookID)
	}
	return 0, nil
}

// --- compile-time interface checks ---
var _ repository.LibraryRepository = (*mockLibraryRepo)(nil)
var _ repository.BookRepository = (*mockBookRepo)(nil)
var _ Aggregator = (*mockAggregator)(nil)

func intPtr(v int) *int {
	return &v
}

func existingBookRepo() *mockBookRepo {
	return &mockBookRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Book, error) {
			return &model.Book{ID: id, Title: "Sult"}, nil
		},
	}
}

// --- ListEntries ---

func TestListEntries_ReturnsEntriesWithBookInfo(t *testing.T) {
	readAt := time.Now()
	repo := &mockLibraryRepo{
		listByUserIDWithBookFn: func(ctx context.Context, userID string) ([]repository.LibraryEntryWithBook, error) {
			return []repository.LibraryEntryWithBook{
				{
					LibraryEntry: model.LibraryEntry{
						ID:         "entry-1",
						UserID:     userID,
						BookID:     "book-1",
						Rating:     intPtr(5),
						IsFavorite: true,
						ReadAt:     readAt,
					},
					BookTitle:         "Sult",
					BookAuthor:        "Knut Hamsun",
					BookGenre:         "Fiction",
					BookAverageRating: 4.5,
				},
			}, nil
		},
	}
	svc := NewService(repo, existingBookRepo(), &mockAggregator{})

	entries, err := svc.ListEntries(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.BookTitle != "Sult" || e.BookAuthor != "Knut Hamsun" {
		t.Errorf("book info = %q/%q, want Sult/Knut Hamsun", e.BookTitle, e.BookAuthor)
	}
	if e.Rating == nil || *e.Rating != 5 {
		t.Errorf("rating = %v, want 5", e.Rating)
	}
	if !e.IsFavorite {
		t.Error("IsFavorite = false, want true")
	}
}

// --- AddBook ---

func TestAddBook_Unrated_NoAggregation(t *testing.T) {
	var created *model.LibraryEntry
	repo := &mockLibraryRepo{
		createFn: func(ctx context.Context, entry *model.LibraryEntry) error {
			created = entry
			return nil
		},
	}
	agg := &mockAggregator{}
	svc := NewService(repo, existingBookRepo(), agg)

	entry, err := svc.AddBook(context.Background(), "user-1", "book-1", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if entry.Rating != nil {
		t.Errorf("rating = %v, want nil", entry.Rating)
	}
	if created == nil {
		t.Fatal("expected Create to be called")
	}
	if len(agg.calls) != 0 {
		t.Errorf("aggregation calls = %v, want none for unrated add", agg.calls)
	}
}

func TestAddBook_WithRating_TriggersAggregation(t *testing.T) {
	repo := &mockLibraryRepo{}
	agg := &mockAggregator{}
	svc := NewService(repo, existingBookRepo(), agg)

	entry, err := svc.AddBook(context.Background(), "user-1", "book-1", intPtr(4))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if entry.Rating == nil || *entry.Rating != 4 {
		t.Errorf("rating = %v, want 4", entry.Rating)
	}
	if len(agg.calls) != 1 || agg.calls[0] != "book-1" {
		t.Errorf("aggregation calls = %v, want [book-1]", agg.calls)
	}
}

func TestAddBook_InvalidRating_ReturnsError(t *testing.T) {
	svc := NewService(&mockLibraryRepo{}, existingBookRepo(), &mockAggregator{})

	for _, rating := range []int{0, 6, -1, 100} {
		_, err := svc.AddBook(context.Background(), "user-1", "book-1", intPtr(rating))
		if err == nil {
			t.Errorf("AddBook(rating=%d) should have returned error", rating)
			continue
		}
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidRating {
			t.Errorf("AddBook(rating=%d): code = %v, want %q", rating, err, model.ErrCodeInvalidRating)
		}
	}
}

func TestAddBook_BookNotFound_ReturnsError(t *testing.T) {
	bookRepo := &mockBookRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Book, error) {
			return nil, nil
		},
	}
	svc := NewService(&mockLibraryRepo{}, bookRepo, &mockAggregator{})

	_, err := svc.AddBook(context.Background(), "user-1", "missing-book", nil)
	if err == nil {
		t.Fatal("expected error for missing book")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeBookNotFound {
		t.Errorf("error = %v, want code %q", err, model.ErrCodeBookNotFound)
	}
}

func TestAddBook_Duplicate_ReturnsError(t *testing.T) {
	repo := &mockLibraryRepo{
		findByUserAndBookFn: func(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error) {
			return &model.LibraryEntry{ID: "existing-entry", UserID: userID, BookID: bookID}, nil
		},
	}
	svc := NewService(repo, existingBookRepo(), &mockAggregator{})

	_, err := svc.AddBook(context.Background(), "user-1", "book-1", nil)
	if err == nil {
		t.Fatal("expected error for duplicate entry")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDuplicateLibraryEntry {
		t.Errorf("error = %v, want code %q", err, model.ErrCodeDuplicateLibraryEntry)
	}
}

// --- Rate ---

func TestRate_UpdatesRatingAndAggregates(t *testing.T) {
	var updatedID string
	var updatedRating *int
	repo := &mockLibraryRepo{
		findByUserAndBookFn: func(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error) {
			return &model.LibraryEntry{ID: "entry-1", UserID: userID, BookID: bookID}, nil
		},
		updateRatingFn: func(ctx context.Context, id string, rating *int) error {
			updatedID = id
			updatedRating = rating
			return nil
		},
	}
	agg := &mockAggregator{}
	svc := NewService(repo, existingBookRepo(), agg)

	if err := svc.Rate(context.Background(), "user-1", "book-1", 3); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if updatedID != "entry-1" {
		t.Errorf("updated entry ID = %q, want entry-1", updatedID)
	}
	if updatedRating == nil || *updatedRating != 3 {
		t.Errorf("updated rating = %v, want 3", updatedRating)
	}
	if len(agg.calls) != 1 || agg.calls[0] != "book-1" {
		t.Errorf("aggregation calls = %v, want [book-1]", agg.calls)
	}
}

func TestRate_InvalidRating_ReturnsError(t *testing.T) {
	agg := &mockAggregator{}
	svc := NewService(&mockLibraryRepo{}, existingBookRepo(), agg)

	err := svc.Rate(context.Background(), "user-1", "book-1", 0)
	if err == nil {
		t.Fatal("expected error for rating 0")
	}
	if len(agg.calls) != 0 {
		t.Error("aggregation must not run for invalid rating")
	}
}

func TestRate_EntryNotFound_ReturnsError(t *testing.T) {
	svc := NewService(&mockLibraryRepo{}, existingBookRepo(), &mockAggregator{})

	err := svc.Rate(context.Background(), "user-1", "book-1", 3)
	if err == nil {
		t.Fatal("expected error for missing entry")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeLibraryEntryNotFound {
		t.Errorf("error = %v, want code %q", err, model.ErrCodeLibraryEntryNotFound)
	}
}

// --- RemoveRating ---

func TestRemoveRating_ClearsRatingAndAggregates(t *testing.T) {
	var updatedRating *int = intPtr(99)
	repo := &mockLibraryRepo{
		findByUserAndBookFn: func(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error) {
			return &model.LibraryEntry{ID: "entry-1", UserID: userID, BookID: bookID, Rating: intPtr(5)}, nil
		},
		updateRatingFn: func(ctx context.Context, id string, rating *int) error {
			updatedRating = rating
			return nil
		},
	}
	agg := &mockAggregator{}
	svc := NewService(repo, existingBookRepo(), agg)

	if err := svc.RemoveRating(context.Background(), "user-1", "book-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if updatedRating != nil {
		t.Errorf("updated rating = %v, want nil", updatedRating)
	}
	if len(agg.calls) != 1 {
		t.Errorf("aggregation calls = %d, want 1", len(agg.calls))
	}
}

// --- ToggleFavorite ---

func TestToggleFavorite_FlipsFlagWithoutAggregation(t *testing.T) {
	var updatedValue bool
	repo := &mockLibraryRepo{
		findByUserAndBookFn: func(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error) {
			return &model.LibraryEntry{ID: "entry-1", UserID: userID, BookID: bookID, IsFavorite: false}, nil
		},
		updateFavoriteFn: func(ctx context.Context, id string, isFavorite bool) error {
			updatedValue = isFavorite
			return nil
		},
	}
	agg := &mockAggregator{}
	svc := NewService(repo, existingBookRepo(), agg)

	got, err := svc.ToggleFavorite(context.Background(), "user-1", "book-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !got || !updatedValue {
		t.Errorf("toggled value = %v/%v, want true/true", got, updatedValue)
	}
	// お気に入りは評価シグナルではないため再計算しない
	if len(agg.calls) != 0 {
		t.Errorf("aggregation calls = %v, want none for favorite toggle", agg.calls)
	}
}

func TestToggleFavorite_TrueToFalse(t *testing.T) {
	repo := &mockLibraryRepo{
		findByUserAndBookFn: func(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error) {
			return &model.LibraryEntry{ID: "entry-1", IsFavorite: true}, nil
		},
	}
	svc := NewService(repo, existingBookRepo(), &mockAggregator{})

	got, err := svc.ToggleFavorite(context.Background(), "user-1", "book-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got {
		t.Error("toggled value = true, want false")
	}
}

// --- Remove ---

func TestRemove_DeletesEntryAndAggregates(t *testing.T) {
	var deletedID string
	repo := &mockLibraryRepo{
		findByUserAndBookFn: func(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error) {
			return &model.LibraryEntry{ID: "entry-1", UserID: userID, BookID: bookID, Rating: intPtr(4)}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deletedID = id
			return nil
		},
	}
	agg := &mockAggregator{}
	svc := NewService(repo, existingBookRepo(), agg)

	if err := svc.Remove(context.Background(), "user-1", "book-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if deletedID != "entry-1" {
		t.Errorf("deleted entry ID = %q, want entry-1", deletedID)
	}
	if len(agg.calls) != 1 || agg.calls[0] != "book-1" {
		t.Errorf("aggregation calls = %v, want [book-1]", agg.calls)
	}
}

func TestRemove_EntryNotFound_ReturnsError(t *testing.T) {
	svc := NewService(&mockLibraryRepo{}, existingBookRepo(), &mockAggregator{})

	err := svc.Remove(context.Background(), "user-1", "book-1")
	if err == nil {
		t.Fatal("expected error for missing entry")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeLibraryEntryNotFound {
		t.Errorf("error = %v, want code %q", err, model.ErrCodeLibraryEntryNotFound)
	}
}

func TestRemove_AggregatorError_Propagates(t *testing.T) {
	repo := &mockLibraryRepo{
		findByUserAndBookFn: func(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error) {
			return &model.LibraryEntry{ID: "entry-1"}, nil
		},
	}
	agg := &mockAggregator{
		recomputeFn: func(ctx context.Context, bookID string) (float64, error) {
			return 0, errors.New("aggregation failed")
		},
	}
	svc := NewService(repo, existingBookRepo(), agg)

	if err := svc.Remove(context.Background(), "user-1", "book-1"); err == nil {
		t.Fatal("expected error")
	}
}
