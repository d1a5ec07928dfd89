package handler

import (
	"context"

	"github.com/hitoshi/campusmart/internal/listing"
	"github.com/hitoshi/campusmart/internal/model"
)

// ListingServiceAdapter は listing.Service を ListingServiceInterface と
// SessionServiceInterface に適合させるアダプタ。
type ListingServiceAdapter struct {
	svc *listing.Service
}

// NewListingServiceAdapter はListingServiceAdapterを生成する。
func NewListingServiceAdapter(svc *listing.Service) *ListingServiceAdapter {
	return &ListingServiceAdapter{svc: svc}
}

// Query は条件を適用した出品一覧をhandlerレスポンス型で返す。
func (a *ListingServiceAdapter) Query(ctx context.Context, spec model.FilterSpec) (*listingListResponse, error) {
	items, err := a.svc.Query(ctx, spec)
	if err != nil {
		return nil, err
	}
	return toListingListResponse(items), nil
}

// QuerySequenced はseq付きの評価結果をhandlerレスポンス型で返す。
func (a *ListingServiceAdapter) QuerySequenced(ctx context.Context, sessionID string, seq uint64, spec model.FilterSpec) (*listingListResponse, bool, error) {
	items, stale, err := a.svc.QuerySequenced(ctx, sessionID, seq, spec)
	if err != nil || stale {
		return nil, stale, err
	}
	return toListingListResponse(items), false, nil
}

// GetItem は出品詳細をhandlerレスポンス型で返す。
func (a *ListingServiceAdapter) GetItem(ctx context.Context, id string) (*listingResponse, error) {
	item, err := a.svc.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toListingResponse(*item)
	return &resp, nil
}

// RecordContact は問い合わせ数を1増やす。
func (a *ListingServiceAdapter) RecordContact(ctx context.Context, id string) error {
	return a.svc.RecordContact(ctx, id)
}

// CreateItem は出品を作成しhandlerレスポンス型で返す。
func (a *ListingServiceAdapter) CreateItem(ctx context.Context, input listing.CreateItemInput) (*listingResponse, error) {
	item, err := a.svc.CreateItem(ctx, input)
	if err != nil {
		return nil, err
	}
	resp := toListingResponse(*item)
	return &resp, nil
}

// SellerListings は出品者ダッシュボードをhandlerレスポンス型で返す。
func (a *ListingServiceAdapter) SellerListings(ctx context.Context, sellerID string) (*sellerDashboardResponse, error) {
	dash, err := a.svc.SellerListings(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	return &sellerDashboardResponse{
		SellerID: sellerID,
		Items:    toListingResponses(dash.Items),
		Stats: sellerStatsResponse{
			TotalItems:    dash.Stats.TotalItems,
			TotalViews:    dash.Stats.TotalViews,
			TotalMessages: dash.Stats.TotalMessages,
			TotalValue:    dash.Stats.TotalValue,
		},
	}, nil
}

// SessionFilters はセッションの現在の条件をhandlerレスポンス型で返す。
func (a *ListingServiceAdapter) SessionFilters(sessionID string) filterSpecResponse {
	return toFilterSpecResponse(a.svc.SessionFilters(sessionID))
}

// UpdateSessionFilters は条件を部分更新し、発行したseqとともに返す。
func (a *ListingServiceAdapter) UpdateSessionFilters(ctx context.Context, sessionID string, patch listing.FilterPatch) filterUpdateResponse {
	spec, seq := a.svc.UpdateSessionFilters(ctx, sessionID, patch)
	return filterUpdateResponse{Seq: seq, Filters: toFilterSpecResponse(spec)}
}

// ClearSessionFilters は条件を空に戻し、発行したseqとともに返す。
func (a *ListingServiceAdapter) ClearSessionFilters(ctx context.Context, sessionID string) filterUpdateResponse {
	spec, seq := a.svc.ClearSessionFilters(ctx, sessionID)
	return filterUpdateResponse{Seq: seq, Filters: toFilterSpecResponse(spec)}
}

// SessionListings はセッションの評価結果をhandlerレスポンス型で返す。
// 一度も評価していないセッションでは評価を開始してloadingを返す。
func (a *ListingServiceAdapter) SessionListings(ctx context.Context, sessionID string) sessionListingsResponse {
	return toSessionListingsResponse(a.svc.EnsureSessionResult(ctx, sessionID))
}

// toListingListResponse は出品スライスを一覧レスポンスに変換する。
func toListingListResponse(items []model.Item) *listingListResponse {
	results := toListingResponses(items)
	return &listingListResponse{Items: results, Count: len(results)}
}
