package model

// SortKey は出品一覧の並び順を表す。
type SortKey string

const (
	// SortNewest は作成日時の新しい順。
	SortNewest SortKey = "newest"
	// SortOldest は作成日時の古い順。
	SortOldest SortKey = "oldest"
	// SortPriceLow は価格の安い順。
	SortPriceLow SortKey = "price-low"
	// SortPriceHigh は価格の高い順。
	SortPriceHigh SortKey = "price-high"
)

// SortKeys は全ソートキーを表示順で返す。
func SortKeys() []SortKey {
	return []SortKey{SortNewest, SortOldest, SortPriceLow, SortPriceHigh}
}

var sortLabels = map[SortKey]string{
	SortNewest:    "Newest First",
	SortOldest:    "Oldest First",
	SortPriceLow:  "Price: Low to High",
	SortPriceHigh: "Price: High to Low",
}

// Valid はソートキーが既知の値かを返す。
func (k SortKey) Valid() bool {
	_, ok := sortLabels[k]
	return ok
}

// Label はソートキーの表示ラベルを返す。
func (k SortKey) Label() string {
	return sortLabels[k]
}

// FilterSpec は出品一覧に適用する検索・絞り込み・並び替え条件。
// ブラウジングセッションの間だけ存在し、永続化されない。
type FilterSpec struct {
	Search   string   // 空文字列は検索なし
	Category Category // 空文字列は「すべて」
	MinPrice *int64   // nilは下限なし
	MaxPrice *int64   // nilは上限なし
	SortBy   SortKey  // 空または未知の値はSortNewestとして扱う
}

// EffectiveSort は実際に適用されるソートキーを返す。
func (s FilterSpec) EffectiveSort() SortKey {
	if s.SortBy.Valid() {
		return s.SortBy
	}
	return SortNewest
}

// Clone はポインタフィールドを複製したディープコピーを返す。
func (s FilterSpec) Clone() FilterSpec {
	c := s
	if s.MinPrice != nil {
		v := *s.MinPrice
		c.MinPrice = &v
	}
	if s.MaxPrice != nil {
		v := *s.MaxPrice
		c.MaxPrice = &v
	}
	return c
}

// IsEmpty は何も条件が設定されていない（ソートは既定値）かを返す。
func (s FilterSpec) IsEmpty() bool {
	return s.Search == "" &&
		s.Category == "" &&
		s.MinPrice == nil &&
		s.MaxPrice == nil &&
		s.EffectiveSort() == SortNewest
}
