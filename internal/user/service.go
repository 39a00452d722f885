// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// EntryDeleter は読書リスト項目の一括削除インターフェース。
// 削除された項目が参照していた書籍IDの一覧を返す。
type EntryDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) ([]string, error)
}

// Aggregator は平均評価の再計算インターフェース。
type Aggregator interface {
	RecomputeAverageRating(ctx context.Context, bookID string) (float64, error)
}

// Service はユーザー管理のサービス層。
// プロフィール取得と退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo     repository.UserRepository
	entryDeleter EntryDeleter
	aggregator   Aggregator
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	entryDeleter EntryDeleter,
	aggregator Aggregator,
) *Service {
	return &Service{
		userRepo:     userRepo,
		entryDeleter: entryDeleter,
		aggregator:   aggregator,
	}
}

// GetProfile はユーザーのプロフィールを取得する。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: 読書リスト項目 → ユーザー。
// 退会ユーザーの評価が消えるため、影響を受けた書籍の平均評価を再計算する。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 読書リスト項目を削除
	affectedBookIDs, err := s.entryDeleter.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("読書リストの削除に失敗しました: %w", err)
	}

	// 2. 影響を受けた書籍の平均評価を再計算
	if s.aggregator != nil {
		for _, bookID := range affectedBookIDs {
			if _, err := s.aggregator.RecomputeAverageRating(ctx, bookID); err != nil {
				return fmt.Errorf("平均評価の再計算に失敗しました: %w", err)
			}
		}
	}

	// 3. ユーザーを削除
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
		slog.Int("affected_books", len(affectedBookIDs)),
	)

	return nil
}
