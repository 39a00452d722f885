package rating

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// Collector は集計実行の記録に必要なインターフェース。
// metrics.MetricsCollectorの部分集合として定義する。
type Collector interface {
	RecordRatingAggregation(bookID string)
}

// Service は書籍の平均評価の再計算を提供する。
// 同一書籍に対する再計算は書籍IDごとのミューテックスで直列化され、
// 同時実行時も最後に完了した計算が最新の項目集合を反映する。
type Service struct {
	bookRepo    repository.BookRepository
	libraryRepo repository.LibraryRepository
	collector   Collector

	mu      sync.RWMutex
	bookMus map[string]*sync.Mutex
}

// NewService はServiceを生成する。
// collectorはnil可（テストやワーカー外での利用）。
func NewService(bookRepo repository.BookRepository, libraryRepo repository.LibraryRepository, collector Collector) *Service {
	return &Service{
		bookRepo:    bookRepo,
		libraryRepo: libraryRepo,
		collector:   collector,
		bookMus:     make(map[string]*sync.Mutex),
	}
}

// RecomputeAverageRating は指定書籍の平均評価を再計算して永続化し、
// 新しい平均値を返す。
// 書籍が存在しない場合はBOOK_NOT_FOUNDエラーを返し、何も書き込まない。
// 評価付きの読書リスト項目が1件もない場合は平均を0.0にリセットする。
func (s *Service) RecomputeAverageRating(ctx context.Context, bookID string) (float64, error) {
	mu := s.bookMutex(bookID)
	mu.Lock()
	defer mu.Unlock()

	// 対象書籍の存在は再計算の前提条件。欠落は上流の整合性バグを示す。
	book, err := s.bookRepo.FindByID(ctx, bookID)
	if err != nil {
		return 0, fmt.Errorf("failed to find book: %w", err)
	}
	if book == nil {
		return 0, model.NewBookNotFoundError(bookID)
	}

	// 常に最新の項目集合を取得して計算する
	entries, err := s.libraryRepo.ListByBookID(ctx, bookID)
	if err != nil {
		return 0, fmt.Errorf("failed to list library entries: %w", err)
	}

	avg := Average(entries)

	if err := s.bookRepo.UpdateAverageRating(ctx, bookID, avg); err != nil {
		return 0, fmt.Errorf("failed to update average rating: %w", err)
	}

	if s.collector != nil {
		s.collector.RecordRatingAggregation(bookID)
	}

	slog.Info("average rating recomputed",
		slog.String("book_id", bookID),
		slog.Float64("average_rating", avg),
		slog.Int("entry_count", len(entries)),
	)

	return avg, nil
}

// bookMutex は書籍IDごとのミューテックスを取得または作成する。
func (s *Service) bookMutex(bookID string) *sync.Mutex {
	s.mu.RLock()
	mu, exists := s.bookMus[bookID]
	s.mu.RUnlock()

	if exists {
		return mu
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ダブルチェック
	if mu, exists := s.bookMus[bookID]; exists {
		return mu
	}

	mu = &sync.Mutex{}
	s.bookMus[bookID] = mu
	return mu
}
