package listing

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/campusmart/internal/model"
)

// クエリパラメータ名
const (
	ParamSearch   = "search"
	ParamCategory = "category"
	ParamMinPrice = "min_price"
	ParamMaxPrice = "max_price"
	ParamSort     = "sort"
)

// ParseFilterSpec はクエリパラメータからFilterSpecを組み立てる。
// 数値として解釈できない価格や負の価格は「未設定」として扱い、エラーにはしない。
// 未知のカテゴリは「すべて」、未知のソートキーはnewestとして扱う。
func ParseFilterSpec(values url.Values) model.FilterSpec {
	return model.FilterSpec{
		Search:   values.Get(ParamSearch),
		Category: ParseCategory(values.Get(ParamCategory)),
		MinPrice: ParsePrice(values.Get(ParamMinPrice)),
		MaxPrice: ParsePrice(values.Get(ParamMaxPrice)),
		SortBy:   ParseSortKey(values.Get(ParamSort)),
	}
}

// ParsePrice は価格文字列を解釈する。空・不正値・負値はnil（未設定）を返す。
func ParsePrice(raw string) *int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

// ParseCategory はカテゴリ文字列を解釈する。未知の値は空（すべて）を返す。
func ParseCategory(raw string) model.Category {
	c := model.Category(raw)
	if c.Valid() {
		return c
	}
	return ""
}

// ParseSortKey はソートキー文字列を解釈する。未知の値はnewestを返す。
func ParseSortKey(raw string) model.SortKey {
	k := model.SortKey(raw)
	if k.Valid() {
		return k
	}
	return model.SortNewest
}

// FilterPatch はFilterSpecの部分更新を表す。
// nilのフィールドは変更しない。価格の境界はClearMinPrice/ClearMaxPriceで未設定に戻せる。
type FilterPatch struct {
	Search        *string
	Category      *string
	MinPrice      *string
	MaxPrice      *string
	SortBy        *string
	ClearMinPrice bool
	ClearMaxPrice bool
}

// IsEmpty は変更対象のフィールドが1つもないかを返す。
func (p FilterPatch) IsEmpty() bool {
	return p.Search == nil &&
		p.Category == nil &&
		p.MinPrice == nil &&
		p.MaxPrice == nil &&
		p.SortBy == nil &&
		!p.ClearMinPrice &&
		!p.ClearMaxPrice
}

// ApplyTo はspecに部分更新を適用した新しいFilterSpecを返す。specは変更しない。
// 価格は文字列で受け取り、ParsePriceと同じ規則で解釈する。
func (p FilterPatch) ApplyTo(spec model.FilterSpec) model.FilterSpec {
	next := spec.Clone()

	if p.Search != nil {
		next.Search = *p.Search
	}
	if p.Category != nil {
		next.Category = ParseCategory(*p.Category)
	}
	if p.MinPrice != nil {
		next.MinPrice = ParsePrice(*p.MinPrice)
	}
	if p.ClearMinPrice {
		next.MinPrice = nil
	}
	if p.MaxPrice != nil {
		next.MaxPrice = ParsePrice(*p.MaxPrice)
	}
	if p.ClearMaxPrice {
		next.MaxPrice = nil
	}
	if p.SortBy != nil {
		next.SortBy = ParseSortKey(*p.SortBy)
	}

	return next
}
