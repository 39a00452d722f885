// Package rating は書籍の平均評価の集計を提供する。
//
// 平均評価は読書リスト項目の評価値から都度再計算される。
// 差分更新は行わず、常に最新の項目集合から算出することで、
// 同一入力に対して同一結果となる冪等性を保証する。
package rating

import "github.com/hitoshi/bookman/internal/model"

// Average は読書リスト項目の評価値の算術平均を計算する。
// 評価が設定されていない項目（Rating == nil）は分子・分母の両方から除外する。
// 評価付きの項目が1件もない場合は0.0を返す。
func Average(entries []*model.LibraryEntry) float64 {
	var sum, count int
	for _, entry := range entries {
		if entry == nil || entry.Rating == nil {
			continue
		}
		sum += *entry.Rating
		count++
	}
	if count == 0 {
		return 0.0
	}
	return float64(sum) / float64(count)
}
