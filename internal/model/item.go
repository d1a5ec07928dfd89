// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// Category は出品カテゴリを表す。固定の列挙値のみを取る。
type Category string

const (
	// CategoryBooks は教科書・ノート類。
	CategoryBooks Category = "Books"
	// CategoryElectronics は電子機器。
	CategoryElectronics Category = "Electronics"
	// CategoryBicycles は自転車。
	CategoryBicycles Category = "Bicycles"
	// CategoryHostel は寮生活用品。
	CategoryHostel Category = "Hostel"
	// CategoryOther はその他。
	CategoryOther Category = "Other"
)

// Categories は全カテゴリを表示順で返す。
func Categories() []Category {
	return []Category{
		CategoryBooks,
		CategoryElectronics,
		CategoryBicycles,
		CategoryHostel,
		CategoryOther,
	}
}

// categoryLabels はカテゴリの表示ラベル。
var categoryLabels = map[Category]string{
	CategoryBooks:       "Books & Notes",
	CategoryElectronics: "Electronics",
	CategoryBicycles:    "Bicycles",
	CategoryHostel:      "Hostel Items",
	CategoryOther:       "Other",
}

// Valid はカテゴリが固定集合に含まれるかを返す。
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label はカテゴリの表示ラベルを返す。未知のカテゴリには値そのものを返す。
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

const (
	// MinImagesPerItem は1出品あたりの最小画像数。
	MinImagesPerItem = 1
	// MaxImagesPerItem は1出品あたりの最大画像数。
	MaxImagesPerItem = 5
)

// Item は出品された1件の商品を表す。
type Item struct {
	ID           string
	Title        string
	Description  string
	Price        int64    // 通貨の最小単位を持たない整数価格
	Category     Category
	Images       []string // 画像URI（1〜5件、順序あり）
	SellerID     string   // 出品者への不透明な参照
	ViewCount    int
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate は商品の不変条件を検証する。
// 画像が1〜5件、カテゴリが固定集合内、価格が0以上であること。
func (i *Item) Validate() error {
	if i.Price < 0 {
		return fmt.Errorf("price must be non-negative: %d", i.Price)
	}
	if !i.Category.Valid() {
		return fmt.Errorf("unknown category: %q", i.Category)
	}
	if n := len(i.Images); n < MinImagesPerItem || n > MaxImagesPerItem {
		return fmt.Errorf("image count must be between %d and %d: %d", MinImagesPerItem, MaxImagesPerItem, n)
	}
	return nil
}
