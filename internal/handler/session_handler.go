package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/campusmart/internal/listing"
	"github.com/hitoshi/campusmart/internal/middleware"
)

// maxFilterPatchBodyBytes は条件更新リクエストボディの上限サイズ。
const maxFilterPatchBodyBytes = 8 << 10

// SessionServiceInterface はブラウジングセッションの条件管理に必要なサービスインターフェース。
type SessionServiceInterface interface {
	// SessionFilters はセッションの現在の条件を返す。
	SessionFilters(sessionID string) filterSpecResponse
	// UpdateSessionFilters は条件を部分更新し、再評価を開始する。
	UpdateSessionFilters(ctx context.Context, sessionID string, patch listing.FilterPatch) filterUpdateResponse
	// ClearSessionFilters は条件を空に戻し、再評価を開始する。
	ClearSessionFilters(ctx context.Context, sessionID string) filterUpdateResponse
	// SessionListings はセッションに適用済みの評価結果を返す。
	SessionListings(ctx context.Context, sessionID string) sessionListingsResponse
}

// SessionHandler はブラウジングセッションの条件と評価結果のHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

// optionalPrice はPATCHで受け取る価格の境界。
// 未指定・null・値ありの3状態を区別する。値は文字列でも数値でもよい。
type optionalPrice struct {
	Set   bool
	Value *string
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (p *optionalPrice) UnmarshalJSON(data []byte) error {
	p.Set = true

	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		p.Value = nil
		return nil
	}

	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		// 数値などはそのまま文字列として扱い、解釈はParsePriceに任せる
		s = string(data)
	}
	p.Value = &s
	return nil
}

// filterPatchRequest はPATCH /api/session/filters のリクエストボディ。
type filterPatchRequest struct {
	Search   *string       `json:"search"`
	Category *string       `json:"category"`
	MinPrice optionalPrice `json:"min_price"`
	MaxPrice optionalPrice `json:"max_price"`
	SortBy   *string       `json:"sort"`
}

// toPatch はリクエストをFilterPatchに変換する。価格のnullは境界の解除として扱う。
func (req filterPatchRequest) toPatch() listing.FilterPatch {
	patch := listing.FilterPatch{
		Search:   req.Search,
		Category: req.Category,
		SortBy:   req.SortBy,
	}
	if req.MinPrice.Set {
		if req.MinPrice.Value == nil {
			patch.ClearMinPrice = true
		} else {
			patch.MinPrice = req.MinPrice.Value
		}
	}
	if req.MaxPrice.Set {
		if req.MaxPrice.Value == nil {
			patch.ClearMaxPrice = true
		} else {
			patch.MaxPrice = req.MaxPrice.Value
		}
	}
	return patch
}

// GetFilters はセッションの現在の条件を返す。
// GET /api/session/filters
func (h *SessionHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSessionID(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.service.SessionFilters(sessionID))
}

// UpdateFilters は条件をフィールド単位で更新する。
// PATCH /api/session/filters
//
// 評価はバックグラウンドで行い、202と発行したseqを返す。
// 結果は GET /api/session/listings で取得する。
func (h *SessionHandler) UpdateFilters(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSessionID(w, r)
	if !ok {
		return
	}

	var req filterPatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFilterPatchBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	patch := req.toPatch()
	if patch.IsEmpty() {
		writeInvalidRequest(w, "at least one filter field is required")
		return
	}

	writeJSON(w, http.StatusAccepted, h.service.UpdateSessionFilters(r.Context(), sessionID, patch))
}

// ClearFilters は条件を空に戻す。
// DELETE /api/session/filters
func (h *SessionHandler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSessionID(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusAccepted, h.service.ClearSessionFilters(r.Context(), sessionID))
}

// GetListings はセッションの条件で評価した出品一覧を返す。
// GET /api/session/listings
//
// 最新の評価が未適用の間はstatusがloadingになり、直前の結果があればitemsに含める。
func (h *SessionHandler) GetListings(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := requireSessionID(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.service.SessionListings(r.Context(), sessionID))
}

// requireSessionID はコンテキストからブラウジングセッションIDを取得する。
// 取得できない場合は400を書き込んでfalseを返す。
func requireSessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		writeInvalidRequest(w, "browsing session is required")
		return "", false
	}
	return sessionID, true
}
