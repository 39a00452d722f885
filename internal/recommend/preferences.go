// Package recommend は読書履歴に基づく書籍レコメンデーションを提供する。
package recommend

import (
	"github.com/hitoshi/bookman/internal/model"
	"github.com/hitoshi/bookman/internal/repository"
)

// Preferences はユーザーの嗜好プロファイルを表す。
// 高評価（4以上）を付けた書籍のジャンルと著者の重複なし集合。
type Preferences struct {
	Genres  []string
	Authors []string
}

// IsEmpty はジャンル・著者の両方が空かを返す。
// 両方が空の場合のみ全カタログフォールバックが適用される。
func (p Preferences) IsEmpty() bool {
	return len(p.Genres) == 0 && len(p.Authors) == 0
}

// HasGenre は指定ジャンルが嗜好に含まれるかを返す。
func (p Preferences) HasGenre(genre string) bool {
	for _, g := range p.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// HasAuthor は指定著者が嗜好に含まれるかを返す。
func (p Preferences) HasAuthor(author string) bool {
	for _, a := range p.Authors {
		if a == author {
			return true
		}
	}
	return false
}

// ExtractPreferences は読書リストから嗜好プロファイルを抽出する。
// 評価が4以上の項目の書籍ジャンル・著者を重複なしで収集する。
// 未評価（Rating == nil）や低評価の項目、お気に入りフラグは嗜好に影響しない。
// 結果の順序は初出順で決定的。
func ExtractPreferences(entries []repository.LibraryEntryWithBook) Preferences {
	var prefs Preferences
	seenGenres := make(map[string]bool)
	seenAuthors := make(map[string]bool)

	for _, entry := range entries {
		if entry.Rating == nil || *entry.Rating < model.HighRatingThreshold {
			continue
		}
		if entry.BookGenre != "" && !seenGenres[entry.BookGenre] {
			seenGenres[entry.BookGenre] = true
			prefs.Genres = append(prefs.Genres, entry.BookGenre)
		}
		if entry.BookAuthor != "" && !seenAuthors[entry.BookAuthor] {
			seenAuthors[entry.BookAuthor] = true
			prefs.Authors = append(prefs.Authors, entry.BookAuthor)
		}
	}

	return prefs
}
