// Package listing は出品一覧の検索・絞り込み・並び替えと、
// ブラウジングセッションごとの評価の逐次化を提供する。
package listing

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/hitoshi/campusmart/internal/model"
)

// Evaluate は商品コレクションにFilterSpecを適用し、表示順に並んだ部分集合を返す。
//
// 処理順序（各段は前段の出力を入力とし、並び替えるのは最後の段のみ）:
//
//	検索 → カテゴリ → 価格帯 → ソート
//
// itemsとspecは変更しない。戻り値は常に新しいnilでないスライス。
// 下限と上限がともに指定され下限が上限を上回る場合は、他の条件に関わらず空を返す。
func Evaluate(items []model.Item, spec model.FilterSpec) []model.Item {
	if spec.MinPrice != nil && spec.MaxPrice != nil && *spec.MinPrice > *spec.MaxPrice {
		return []model.Item{}
	}

	result := make([]model.Item, 0, len(items))
	result = append(result, items...)

	result = filterBySearch(result, spec.Search)
	result = filterByCategory(result, spec.Category)
	result = filterByPrice(result, spec.MinPrice, spec.MaxPrice)
	sortItems(result, spec.EffectiveSort())

	return result
}

// filterBySearch はタイトルに検索語を含む商品のみを残す。
// 大文字小文字の区別はUnicodeのケースフォールディングで吸収する。
func filterBySearch(items []model.Item, term string) []model.Item {
	if term == "" {
		return items
	}

	// cases.Caserは状態を持つため呼び出しごとに生成する
	folder := cases.Fold()
	needle := folder.String(term)

	kept := items[:0]
	for _, item := range items {
		if strings.Contains(folder.String(item.Title), needle) {
			kept = append(kept, item)
		}
	}
	return kept
}

// filterByCategory はカテゴリが一致する商品のみを残す。空は「すべて」。
func filterByCategory(items []model.Item, category model.Category) []model.Item {
	if category == "" {
		return items
	}

	kept := items[:0]
	for _, item := range items {
		if item.Category == category {
			kept = append(kept, item)
		}
	}
	return kept
}

// filterByPrice は価格が [min, max] に収まる商品のみを残す。nilの境界は無制限。
func filterByPrice(items []model.Item, minPrice, maxPrice *int64) []model.Item {
	if minPrice == nil && maxPrice == nil {
		return items
	}

	kept := items[:0]
	for _, item := range items {
		if minPrice != nil && item.Price < *minPrice {
			continue
		}
		if maxPrice != nil && item.Price > *maxPrice {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

// sortItems はソートキーに従って安定ソートする。同値の要素は入力順を保つ。
func sortItems(items []model.Item, key model.SortKey) {
	var compare func(a, b model.Item) int

	switch key {
	case model.SortOldest:
		compare = func(a, b model.Item) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case model.SortPriceLow:
		compare = func(a, b model.Item) int { return cmp.Compare(a.Price, b.Price) }
	case model.SortPriceHigh:
		compare = func(a, b model.Item) int { return cmp.Compare(b.Price, a.Price) }
	default:
		compare = func(a, b model.Item) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}

	slices.SortStableFunc(items, compare)
}
