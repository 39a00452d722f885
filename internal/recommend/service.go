package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// Collector はレコメンデーションの計測に必要なインターフェース。
// metrics.MetricsCollectorの部分集合として定義する。
type Collector interface {
	RecordRecommendationRequest()
	RecordRecommendationLatency(duration time.Duration)
}

// Service はユーザーごとの書籍レコメンデーションを生成する。
// 状態を持たず、毎回最新の読書リストとカタログから計算する。
type Service struct {
	bookRepo    repository.BookRepository
	libraryRepo repository.LibraryRepository
	collector   Collector
}

// NewService はServiceを生成する。collectorはnil可。
func NewService(bookRepo repository.BookRepository, libraryRepo repository.LibraryRepository, collector Collector) *Service {
	return &Service{
		bookRepo:    bookRepo,
		libraryRepo: libraryRepo,
		collector:   collector,
	}
}

// GetRecommendations はユーザーへのおすすめ書籍を最大10件返す。
//
// 手順:
//  1. 読書リストから嗜好プロファイル（高評価書籍のジャンル・著者）を抽出
//  2. 嗜好ジャンル・嗜好著者に一致する候補書籍を収集。
//     嗜好が完全に空の場合（コールドスタート）のみ全カタログを候補とする
//  3. 読書リスト登録済みの書籍を除外し、スコア順に上位10件を返す
//
// 読書リストが空のユーザーにはカタログの平均評価上位がそのまま返る。
func (s *Service) GetRecommendations(ctx context.Context, userID string) ([]*model.Book, error) {
	start := time.Now()
	if s.collector != nil {
		s.collector.RecordRecommendationRequest()
		defer func() {
			s.collector.RecordRecommendationLatency(time.Since(start))
		}()
	}

	entries, err := s.libraryRepo.ListByUserIDWithBook(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list library entries: %w", err)
	}

	prefs := ExtractPreferences(entries)

	candidates, err := s.collectCandidates(ctx, prefs)
	if err != nil {
		return nil, err
	}

	readBookIDs := make(map[string]bool, len(entries))
	for _, entry := range entries {
		readBookIDs[entry.BookID] = true
	}

	ranked := Rank(candidates, prefs, readBookIDs, RecommendationLimit)

	slog.Info("recommendations generated",
		slog.String("user_id", userID),
		slog.Int("preference_genres", len(prefs.Genres)),
		slog.Int("preference_authors", len(prefs.Authors)),
		slog.Int("candidate_count", len(candidates)),
		slog.Int("result_count", len(ranked)),
	)

	return ranked, nil
}

// collectCandidates は嗜好に基づいて候補書籍を収集する。
// 全カタログフォールバックの判定は嗜好集合の空判定で行う。
// 嗜好はあるが一致候補がゼロの場合はフォールバックせず空の候補を返す。
func (s *Service) collectCandidates(ctx context.Context, prefs Preferences) ([]*model.Book, error) {
	if prefs.IsEmpty() {
		books, err := s.bookRepo.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list all books: %w", err)
		}
		return books, nil
	}

	byGenre, err := s.bookRepo.ListByGenres(ctx, prefs.Genres)
	if err != nil {
		return nil, fmt.Errorf("failed to list books by genres: %w", err)
	}

	byAuthor, err := s.bookRepo.ListByAuthors(ctx, prefs.Authors)
	if err != nil {
		return nil, fmt.Errorf("failed to list books by authors: %w", err)
	}

	// 両方に一致する書籍は2回現れるが、重複はランキング時に除去される
	candidates := make([]*model.Book, 0, len(byGenre)+len(byAuthor))
	candidates = append(candidates, byGenre...)
	candidates = append(candidates, byAuthor...)
	return candidates, nil
}
