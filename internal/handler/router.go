package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/campusmart/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	BrowseSession     middleware.BrowseSessionConfig
	RateLimiter       *middleware.RateLimiter
	Metrics           middleware.HTTPStatusRecorder

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 出品
	ListingService ListingServiceInterface

	// ブラウジングセッション
	SessionService SessionServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → HTTPMetrics
//	  /api/*: BrowseSession → Logging → CSRF → RateLimit(General)
//
// /health と /metrics はブラウジングセッションとレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Metrics != nil {
		r.Use(middleware.NewHTTPMetricsMiddleware(deps.Metrics))
	}

	listingHandler := NewListingHandler(deps.ListingService)
	sessionHandler := NewSessionHandler(deps.SessionService)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- API ---
	// ミドルウェアスタック: BrowseSession → Logging → CSRF → RateLimit(General)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewBrowseSessionMiddleware(deps.BrowseSession))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
		r.Get("/categories", ListCategories)

		// 出品
		r.Route("/listings", func(r chi.Router) {
			r.Get("/", listingHandler.ListListings)
			// POST /api/listings - 出品作成（作成専用レート制限を追加）
			r.With(deps.RateLimiter.ItemPostMiddleware()).Post("/", listingHandler.CreateListing)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listingHandler.GetListing)
				r.Post("/contact", listingHandler.ContactSeller)
			})
		})

		// 出品者ダッシュボード
		r.Get("/sellers/{id}/listings", listingHandler.SellerListings)

		// ブラウジングセッションの条件と評価結果
		r.Route("/session", func(r chi.Router) {
			r.Get("/filters", sessionHandler.GetFilters)
			r.Patch("/filters", sessionHandler.UpdateFilters)
			r.Delete("/filters", sessionHandler.ClearFilters)
			r.Get("/listings", sessionHandler.GetListings)
		})
	})

	return r
}
