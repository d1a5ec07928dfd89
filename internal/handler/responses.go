package handler

import (
	"time"

	"github.com/hitoshi/campusmart/internal/listing"
	"github.com/hitoshi/campusmart/internal/model"
)

// listingResponse は出品1件のレスポンス形式。
type listingResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        int64     `json:"price"`
	Category     string    `json:"category"`
	Images       []string  `json:"images"`
	SellerID     string    `json:"seller_id"`
	ViewCount    int       `json:"view_count"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// listingListResponse は出品一覧のレスポンス形式。
type listingListResponse struct {
	Items []listingResponse `json:"items"`
	Count int               `json:"count"`
}

// filterSpecResponse は絞り込み条件のレスポンス形式。
type filterSpecResponse struct {
	Search   string `json:"search"`
	Category string `json:"category"`
	MinPrice *int64 `json:"min_price"`
	MaxPrice *int64 `json:"max_price"`
	SortBy   string `json:"sort"`
}

// filterUpdateResponse は条件の更新・クリアのレスポンス形式。
// seqはGET /api/session/listings の結果と突き合わせるために返す。
type filterUpdateResponse struct {
	Seq     uint64             `json:"seq"`
	Filters filterSpecResponse `json:"filters"`
}

// sessionListingsResponse はセッションの評価結果のレスポンス形式。
type sessionListingsResponse struct {
	Status  string             `json:"status"` // loading, ready, error
	Seq     uint64             `json:"seq"`
	Count   int                `json:"count"`
	Items   []listingResponse  `json:"items"`
	Filters filterSpecResponse `json:"filters"`
}

// セッション評価結果のステータス
const (
	sessionStatusLoading = "loading"
	sessionStatusReady   = "ready"
	sessionStatusError   = "error"
)

// sellerStatsResponse は出品者ダッシュボードの集計値のレスポンス形式。
type sellerStatsResponse struct {
	TotalItems    int   `json:"total_items"`
	TotalViews    int   `json:"total_views"`
	TotalMessages int   `json:"total_messages"`
	TotalValue    int64 `json:"total_value"`
}

// sellerDashboardResponse は出品者ダッシュボードのレスポンス形式。
type sellerDashboardResponse struct {
	SellerID string              `json:"seller_id"`
	Items    []listingResponse   `json:"items"`
	Stats    sellerStatsResponse `json:"stats"`
}

// optionResponse は選択肢のレスポンス形式。
type optionResponse struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// categoriesResponse はカテゴリとソートキーの選択肢のレスポンス形式。
type categoriesResponse struct {
	Categories  []optionResponse `json:"categories"`
	SortOptions []optionResponse `json:"sort_options"`
}

// toListingResponse はmodel.Itemをレスポンス形式に変換する。
func toListingResponse(item model.Item) listingResponse {
	images := item.Images
	if images == nil {
		images = []string{}
	}
	return listingResponse{
		ID:           item.ID,
		Title:        item.Title,
		Description:  item.Description,
		Price:        item.Price,
		Category:     string(item.Category),
		Images:       images,
		SellerID:     item.SellerID,
		ViewCount:    item.ViewCount,
		MessageCount: item.MessageCount,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

// toListingResponses は出品スライスをレスポンス形式に変換する。nilでも空スライスを返す。
func toListingResponses(items []model.Item) []listingResponse {
	results := make([]listingResponse, len(items))
	for i, item := range items {
		results[i] = toListingResponse(item)
	}
	return results
}

// toFilterSpecResponse はFilterSpecをレスポンス形式に変換する。
// ソートキーは実際に適用される値を返す。
func toFilterSpecResponse(spec model.FilterSpec) filterSpecResponse {
	c := spec.Clone()
	return filterSpecResponse{
		Search:   c.Search,
		Category: string(c.Category),
		MinPrice: c.MinPrice,
		MaxPrice: c.MaxPrice,
		SortBy:   string(c.EffectiveSort()),
	}
}

// toSessionListingsResponse はセッションのスナップショットをレスポンス形式に変換する。
func toSessionListingsResponse(snap listing.Snapshot) sessionListingsResponse {
	status := sessionStatusReady
	switch {
	case snap.Loading:
		status = sessionStatusLoading
	case snap.Err != nil:
		status = sessionStatusError
	}

	items := toListingResponses(snap.Items)
	return sessionListingsResponse{
		Status:  status,
		Seq:     snap.Seq,
		Count:   len(items),
		Items:   items,
		Filters: toFilterSpecResponse(snap.Spec),
	}
}

// toOptionResponses は選択肢をレスポンス形式に変換する。
func toOptionResponses(opts []listing.Option) []optionResponse {
	results := make([]optionResponse, len(opts))
	for i, o := range opts {
		results[i] = optionResponse{Value: o.Value, Label: o.Label}
	}
	return results
}
