package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/campusmart/internal/listing"
)

// healthCheckTimeout はヘルスチェックで取得元に問い合わせる際のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker は取得元の疎通確認を行うインターフェース。
// *sql.DBとrepository.MemoryItemRepoが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// healthResponse はGET /health のレスポンス形式。
type healthResponse struct {
	Status string `json:"status"`
}

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()

			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}

		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ListCategories はカテゴリとソートキーの選択肢を返す。
// GET /api/categories
func ListCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, categoriesResponse{
		Categories:  toOptionResponses(listing.Categories()),
		SortOptions: toOptionResponses(listing.SortOptions()),
	})
}
