package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/bookman/internal/middleware"
)

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 運用エンドポイント
	HealthChecker   HealthChecker
	MetricsHandler  http.Handler
	StatusCollector middleware.StatusCollector

	// 認証
	AuthService AuthServiceInterface

	// 書籍カタログ
	BookService BookServiceInterface

	// 読書リスト
	LibraryService LibraryServiceInterface

	// レコメンデーション
	RecommendationService RecommendationServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (Metrics) → AuthMiddleware → RateLimit(General)
//
// 認証ルート（/api/auth/*）は認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.StatusCollector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusCollector))
	}

	authHandler := NewAuthHandler(deps.AuthService)
	bookHandler := NewBookHandler(deps.BookService)
	libraryHandler := NewLibraryHandler(deps.LibraryService)
	recommendationHandler := NewRecommendationHandler(deps.RecommendationService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	// ヘルスチェック（DB疎通込み）
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheusメトリクス
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 書籍カタログ
		r.Route("/api/books", func(r chi.Router) {
			r.Get("/", bookHandler.ListBooks)
			r.Get("/search", bookHandler.SearchBooks)

			// カタログ書き込みには専用レート制限を追加
			r.With(deps.RateLimiter.CatalogWriteMiddleware()).Post("/", bookHandler.CreateBook)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", bookHandler.GetBook)
				r.With(deps.RateLimiter.CatalogWriteMiddleware()).Put("/", bookHandler.UpdateBook)
				r.With(deps.RateLimiter.CatalogWriteMiddleware()).Delete("/", bookHandler.DeleteBook)
			})
		})

		// ユーザー管理と読書リスト
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/profile", userHandler.GetProfile)
			r.Delete("/me", userHandler.Withdraw)

			r.Route("/books", func(r chi.Router) {
				r.Get("/", libraryHandler.ListEntries)

				r.Route("/{bookId}", func(r chi.Router) {
					r.Post("/", libraryHandler.AddBook)
					r.Delete("/", libraryHandler.Remove)
					r.Post("/rate", libraryHandler.Rate)
					r.Delete("/rate", libraryHandler.RemoveRating)
					r.Post("/favorite", libraryHandler.ToggleFavorite)
				})
			})
		})

		// レコメンデーション
		r.Get("/api/recommendations", recommendationHandler.GetRecommendations)
	})

	return r
}
