// Package model はドメインモデルを定義する。
package model

import "time"

// Book はカタログ上の書籍を表す。
// AverageRatingは全ユーザーの有効な評価の平均値で、
// 評価集計サービスのみが更新する派生フィールド（評価が1件もない場合は0）。
type Book struct {
	ID            string
	Title         string
	Author        string
	ISBN          string
	Genre         string
	Description   string // サニタイズ済みHTML
	CoverImageURL string
	CoverData     []byte
	CoverMime     string
	PublishYear   *int
	AverageRating float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
