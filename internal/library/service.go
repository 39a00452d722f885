// Package library は読書リスト管理のドメインロジックを提供する。
package library

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// EntryInfo は読書リスト項目と書籍情報を結合したドメインオブジェクト。
type EntryInfo struct {
	ID                string
	BookID            string
	BookTitle         string
	BookAuthor        string
	BookGenre         string
	BookAverageRating float64
	BookCoverImageURL string
	Rating            *int
	IsFavorite        bool
	ReadAt            time.Time
}

// Aggregator は評価変動後の平均評価の再計算に必要なインターフェース。
// rating.Serviceの部分集合として定義する。
type Aggregator interface {
	RecomputeAverageRating(ctx context.Context, bookID string) (float64, error)
}

// Service は読書リスト管理のサービス層。
// 書籍の追加・評価・お気に入り・削除のビジネスロジックを提供する。
// 評価に影響する操作の後は必ず対象書籍の平均評価を再計算する。
type Service struct {
	libraryRepo repository.LibraryRepository
	bookRepo    repository.BookRepository
	aggregator  Aggregator
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	libraryRepo repository.LibraryRepository,
	bookRepo repository.BookRepository,
	aggregator Aggregator,
) *Service {
	return &Service{
		libraryRepo: libraryRepo,
		bookRepo:    bookRepo,
		aggregator:  aggregator,
	}
}

// ListEntries はユーザーの読書リストを書籍情報付きで返す。
func (s *Service) ListEntries(ctx context.Context, userID string) ([]EntryInfo, error) {
	rows, err := s.libraryRepo.ListByUserIDWithBook(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("読書リストの取得に失敗しました: %w", err)
	}

	results := make([]EntryInfo, len(rows))
	for i, row := range rows {
		results[i] = EntryInfo{
			ID:                row.ID,
			BookID:            row.BookID,
			BookTitle:         row.BookTitle,
			BookAuthor:        row.BookAuthor,
			BookGenre:         row.BookGenre,
			BookAverageRating: row.BookAverageRating,
			BookCoverImageURL: row.BookCoverImageURL,
			Rating:            row.Rating,
			IsFavorite:        row.IsFavorite,
			ReadAt:            row.ReadAt,
		}
	}

	return results, nil
}

// AddBook は書籍を読書リストに追加する。
// ratingがnilの場合は未評価として追加する。
// 評価付きで追加された場合は対象書籍の平均評価を再計算する。
func (s *Service) AddBook(ctx context.Context, userID, bookID string, rating *int) (*model.LibraryEntry, error) {
	if rating != nil && !model.IsValidRating(*rating) {
		return nil, model.NewInvalidRatingError(*rating)
	}

	book, err := s.bookRepo.FindByID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("書籍の取得に失敗しました: %w", err)
	}
	if book == nil {
		return nil, model.NewBookNotFoundError(bookID)
	}

	existing, err := s.libraryRepo.FindByUserAndBook(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("読書リスト項目の取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateLibraryEntryError()
	}

	now := time.Now()
	entry := &model.LibraryEntry{
		ID:         uuid.New().String(),
		UserID:     userID,
		BookID:     bookID,
		Rating:     rating,
		IsFavorite: false,
		ReadAt:     now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.libraryRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("読書リスト項目の作成に失敗しました: %w", err)
	}

	// 評価付きで追加された場合のみ平均評価が変動する
	if rating != nil {
		if _, err := s.aggregator.RecomputeAverageRating(ctx, bookID); err != nil {
			return nil, fmt.Errorf("平均評価の再計算に失敗しました: %w", err)
		}
	}

	slog.Info("book added to library",
		slog.String("user_id", userID),
		slog.String("book_id", bookID),
		slog.Bool("rated", rating != nil),
	)

	return entry, nil
}

// Rate は読書リスト項目の評価を設定または変更し、平均評価を再計算する。
func (s *Service) Rate(ctx context.Context, userID, bookID string, rating int) error {
	if !model.IsValidRating(rating) {
		return model.NewInvalidRatingError(rating)
	}

	entry, err := s.findOwnedEntry(ctx, userID, bookID)
	if err != nil {
		return err
	}

	if err := s.libraryRepo.UpdateRating(ctx, entry.ID, &rating); err != nil {
		return fmt.Errorf("評価の更新に失敗しました: %w", err)
	}

	if _, err := s.aggregator.RecomputeAverageRating(ctx, bookID); err != nil {
		return fmt.Errorf("平均評価の再計算に失敗しました: %w", err)
	}

	return nil
}

// RemoveRating は読書リスト項目の評価を取り消し、平均評価を再計算する。
// 項目自体は読書リストに残る。
func (s *Service) RemoveRating(ctx context.Context, userID, bookID string) error {
	entry, err := s.findOwnedEntry(ctx, userID, bookID)
	if err != nil {
		return err
	}

	if err := s.libraryRepo.UpdateRating(ctx, entry.ID, nil); err != nil {
		return fmt.Errorf("評価の取り消しに失敗しました: %w", err)
	}

	if _, err := s.aggregator.RecomputeAverageRating(ctx, bookID); err != nil {
		return fmt.Errorf("平均評価の再計算に失敗しました: %w", err)
	}

	return nil
}

// ToggleFavorite は読書リスト項目のお気に入りフラグを反転し、
// 反転後の値を返す。お気に入りは評価に影響しないため再計算は行わない。
func (s *Service) ToggleFavorite(ctx context.Context, userID, bookID string) (bool, error) {
	entry, err := s.findOwnedEntry(ctx, userID, bookID)
	if err != nil {
		return false, err
	}

	newValue := !entry.IsFavorite
	if err := s.libraryRepo.UpdateFavorite(ctx, entry.ID, newValue); err != nil {
		return false, fmt.Errorf("お気に入りの更新に失敗しました: %w", err)
	}

	return newValue, nil
}

// Remove は書籍を読書リストから削除する。
// 削除された項目が評価付きだった可能性があるため、常に平均評価を再計算する。
func (s *Service) Remove(ctx context.Context, userID, bookID string) error {
	entry, err := s.findOwnedEntry(ctx, userID, bookID)
	if err != nil {
		return err
	}

	if err := s.libraryRepo.Delete(ctx, entry.ID); err != nil {
		return fmt.Errorf("読書リスト項目の削除に失敗しました: %w", err)
	}

	if _, err := s.aggregator.RecomputeAverageRating(ctx, bookID); err != nil {
		return fmt.Errorf("平均評価の再計算に失敗しました: %w", err)
	}

	slog.Info("book removed from library",
		slog.String("user_id", userID),
		slog.String("book_id", bookID),
	)

	return nil
}

// findOwnedEntry はユーザー自身の読書リスト項目を取得する。
// 存在しない場合はLIBRARY_ENTRY_NOT_FOUNDエラーを返す。
func (s *Service) findOwnedEntry(ctx context.Context, userID, bookID string) (*model.LibraryEntry, error) {
	entry, err := s.libraryRepo.FindByUserAndBook(ctx, userID, bookID)
	if err != nil {
		return nil, fmt.Errorf("読書リスト項目の取得に失敗しました: %w", err)
	}
	if entry == nil {
		return nil, model.NewLibraryEntryNotFoundError(bookID)
	}
	return entry, nil
}
