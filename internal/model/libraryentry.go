// Package model はドメインモデルを定義する。
package model

import "time"

// 評価値の有効範囲と嗜好判定の閾値。
const (
	// RatingMin は評価の最小値。
	RatingMin = 1
	// RatingMax は評価の最大値。
	RatingMax = 5
	// HighRatingThreshold は書籍のジャンル・著者をユーザーの嗜好として
	// カウントする最小評価値。
	HighRatingThreshold = 4
)

// LibraryEntry はユーザーと書籍の関係（読書リストの1項目）を表す。
// (user_id, book_id) の組み合わせは一意。
type LibraryEntry struct {
	ID         string
	UserID     string
	BookID     string
	Rating     *int // nilは未評価を表す
	IsFavorite bool
	ReadAt     time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsValidRating は評価値が有効範囲（1〜5）に収まるかを検証する。
func IsValidRating(rating int) bool {
	return rating >= RatingMin && rating <= RatingMax
}
