package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/campusmart/internal/listing"
	"github.com/hitoshi/campusmart/internal/middleware"
	"github.com/hitoshi/campusmart/internal/model"
	"github.com/hitoshi/campusmart/internal/schema"
)

// maxCreateListingBodyBytes は出品作成リクエストボディの上限サイズ。
const maxCreateListingBodyBytes = 64 << 10

// staleHeader は結果が新しい評価に追い越されたことを示すレスポンスヘッダー。
const staleHeader = "X-Listing-Stale"

// ListingServiceInterface は出品ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	// Query は条件を適用した出品一覧を返す。
	Query(ctx context.Context, spec model.FilterSpec) (*listingListResponse, error)
	// QuerySequenced はseq付きで評価し、追い越された場合はstale=trueを返す。
	QuerySequenced(ctx context.Context, sessionID string, seq uint64, spec model.FilterSpec) (*listingListResponse, bool, error)
	// GetItem は出品詳細を返し、閲覧数を1増やす。
	GetItem(ctx context.Context, id string) (*listingResponse, error)
	// RecordContact は問い合わせ数を1増やす。
	RecordContact(ctx context.Context, id string) error
	// CreateItem は出品を作成する。
	CreateItem(ctx context.Context, input listing.CreateItemInput) (*listingResponse, error)
	// SellerListings は出品者の出品一覧と集計値を返す。
	SellerListings(ctx context.Context, sellerID string) (*sellerDashboardResponse, error)
}

// ListingHandler は出品のHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface) *ListingHandler {
	return &ListingHandler{service: service}
}

// createListingRequest はPOST /api/listings のリクエストボディ。
type createListingRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Images      []string `json:"images"`
	SellerID    string   `json:"seller_id"`
}

// ListListings は条件を適用した出品一覧を返す。
// GET /api/listings?search=&category=&min_price=&max_price=&sort=&seq=
//
// seqを指定した場合、同じブラウジングセッションでより新しいseqのリクエストが
// 届いていれば結果を返さず 204 と X-Listing-Stale: true を返す。
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	spec := listing.ParseFilterSpec(values)

	rawSeq := values.Get("seq")
	if rawSeq == "" {
		result, err := h.service.Query(r.Context(), spec)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	seq, err := strconv.ParseUint(rawSeq, 10, 64)
	if err != nil || seq == 0 {
		writeInvalidRequest(w, "seq must be a positive integer")
		return
	}

	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		writeInvalidRequest(w, "browsing session is required when seq is given")
		return
	}

	result, stale, err := h.service.QuerySequenced(r.Context(), sessionID, seq, spec)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if stale {
		w.Header().Set(staleHeader, "true")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// CreateListing は新規出品を作成する。
// POST /api/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCreateListingBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeInvalidRequest(w, "request body too large")
			return
		}
		writeInvalidRequest(w, "failed to read request body")
		return
	}

	if err := schema.ValidateCreateItem(body); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	var req createListingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	result, err := h.service.CreateItem(r.Context(), listing.CreateItemInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Images:      req.Images,
		SellerID:    req.SellerID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/listings/"+result.ID)
	writeJSON(w, http.StatusCreated, result)
}

// GetListing は出品詳細を返す。閲覧数を1増やす。
// GET /api/listings/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ContactSeller は出品者への問い合わせを記録する。
// POST /api/listings/{id}/contact
func (h *ListingHandler) ContactSeller(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.RecordContact(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SellerListings は出品者ダッシュボードを返す。
// GET /api/sellers/{id}/listings
func (h *ListingHandler) SellerListings(w http.ResponseWriter, r *http.Request) {
	sellerID := chi.URLParam(r, "id")

	result, err := h.service.SellerListings(r.Context(), sellerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
