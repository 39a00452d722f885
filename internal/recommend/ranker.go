package recommend

import (
	"sort"

	"github.com/hitoshi/bookman/internal/model"
)

// RecommendationLimit は1回のレコメンデーションで返す書籍の最大数。
const RecommendationLimit = 10

// ジャンル一致・著者一致それぞれに加算される重み。
const matchWeight = 2.0

// Score は候補書籍のレコメンデーションスコアを計算する。
// スコア = ジャンル一致(2.0) + 著者一致(2.0) + 書籍の平均評価。
// 一致判定はそれぞれ1回のみ加算される（嗜好内の複数一致で二重加算しない）。
func Score(book *model.Book, prefs Preferences) float64 {
	score := book.AverageRating
	if prefs.HasGenre(book.Genre) {
		score += matchWeight
	}
	if prefs.HasAuthor(book.Author) {
		score += matchWeight
	}
	return score
}

// Rank は候補書籍をスコア順に並べ、上位limit件を返す。
//   - 重複する書籍ID（ジャンル・著者の両方で候補に入った書籍）は1回だけ扱う
//   - readBookIDsに含まれる書籍（読書リスト登録済み）は除外する
//   - スコア降順、同点は書籍ID昇順で決定的に並べる
func Rank(candidates []*model.Book, prefs Preferences, readBookIDs map[string]bool, limit int) []*model.Book {
	seen := make(map[string]bool, len(candidates))
	unique := make([]*model.Book, 0, len(candidates))

	for _, book := range candidates {
		if book == nil || seen[book.ID] {
			continue
		}
		seen[book.ID] = true
		if readBookIDs[book.ID] {
			continue
		}
		unique = append(unique, book)
	}

	scores := make(map[string]float64, len(unique))
	for _, book := range unique {
		scores[book.ID] = Score(book, prefs)
	}

	sort.Slice(unique, func(i, j int) bool {
		si, sj := scores[unique[i].ID], scores[unique[j].ID]
		if si != sj {
			return si > sj
		}
		return unique[i].ID < unique[j].ID
	})

	if limit > 0 && len(unique) > limit {
		unique = unique[:limit]
	}
	return unique
}
