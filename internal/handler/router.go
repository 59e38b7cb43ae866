package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/noteit/internal/metrics"
	"github.com/hitoshi/noteit/internal/middleware"
)

// HealthChecker は依存コンポーネントの死活確認を提供する。
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenValidator    middleware.TokenValidator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	MetricsRecorder   middleware.HTTPMetricsRecorder
	MetricsGatherer   prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメインサービス
	NoteService   NoteServiceInterface
	FolderService FolderServiceInterface
	TagService    TagServiceInterface
	UserService   UserServiceInterface

	// 死活確認（nil可）
	DBChecker    HealthChecker
	RedisChecker HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → CORS → SecurityHeaders → Logging → Metrics
//	→ (認証グループ: Auth → RateLimit(General))
//
// 認証エンドポイント（/api/auth/register, login, verify-email）には
// IPアドレスベースの専用レート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.MetricsRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.MetricsRecorder))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	noteHandler := NewNoteHandler(deps.NoteService)
	folderHandler := NewFolderHandler(deps.FolderService)
	tagHandler := NewTagHandler(deps.TagService, deps.NoteService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.DBChecker, deps.RedisChecker))

	if deps.MetricsGatherer != nil {
		r.Mount("/metrics", metrics.SetupMetricsRoute(deps.MetricsGatherer))
	}

	// 認証エンドポイント（IPベースのレート制限を適用）
	r.Route("/api/auth", func(r chi.Router) {
		authLimited := r
		if deps.RateLimiter != nil {
			authLimited = r.With(deps.RateLimiter.AuthMiddleware())
		}
		authLimited.Post("/register", authHandler.Register)
		authLimited.Post("/login", authHandler.Login)
		r.Get("/verify-email", authHandler.VerifyEmail)
		r.Post("/verify-email", authHandler.VerifyEmail)
		r.Post("/logout", authHandler.Logout)

		// プロフィール管理（認証必須）
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenValidator))
			r.Get("/profile", userHandler.GetProfile)
			r.Put("/profile", userHandler.UpdateProfile)
			r.Patch("/password", userHandler.ChangePassword)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenValidator))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// ノート管理
		r.Route("/api/notes", func(r chi.Router) {
			r.Get("/", noteHandler.ListNotes)
			r.Post("/", noteHandler.CreateNote)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", noteHandler.GetNote)
				r.Patch("/", noteHandler.UpdateNote)
				r.Delete("/", noteHandler.DeleteNote)

				r.Post("/pin", noteHandler.TogglePin)
				r.Post("/favorite", noteHandler.ToggleFavorite)
				r.Post("/archive", noteHandler.ToggleArchive)
				r.Post("/duplicate", noteHandler.DuplicateNote)
				r.Get("/download", noteHandler.DownloadNote)

				r.Get("/versions", noteHandler.ListVersions)
				r.Get("/versions/{version}", noteHandler.GetVersion)
				r.Post("/versions/{version}/restore", noteHandler.RestoreVersion)
			})
		})

		// フォルダ管理
		r.Route("/api/folders", func(r chi.Router) {
			r.Get("/", folderHandler.ListFolders)
			r.Post("/", folderHandler.CreateFolder)
			r.Put("/reorder", folderHandler.ReorderFolders)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", folderHandler.GetFolder)
				r.Put("/", folderHandler.UpdateFolder)
				r.Delete("/", folderHandler.DeleteFolder)
			})
		})

		// タグ管理
		r.Route("/api/tags", func(r chi.Router) {
			r.Get("/", tagHandler.ListTags)
			r.Post("/", tagHandler.CreateTag)
			r.Get("/autocomplete/{query}", tagHandler.Autocomplete)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", tagHandler.GetTag)
				r.Patch("/", tagHandler.UpdateTag)
				r.Delete("/", tagHandler.DeleteTag)
				r.Get("/notes", tagHandler.ListNotesByTag)
			})
		})
	})

	return r
}

// healthHandler は依存コンポーネントの状態を含むヘルスチェックレスポンスを返す。
// 一時ストアの停止は縮退動作のため、ステータスには影響しない。
func healthHandler(db, redis HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		components := map[string]string{}

		if db != nil {
			if err := db.Healthcheck(r.Context()); err != nil {
				components["database"] = "down"
				status = http.StatusServiceUnavailable
			} else {
				components["database"] = "up"
			}
		}
		if redis != nil {
			if err := redis.Healthcheck(r.Context()); err != nil {
				components["redis"] = "down"
			} else {
				components["redis"] = "up"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		body := "ok"
		if status != http.StatusOK {
			body = "unavailable"
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":     body,
			"components": components,
		})
	}
}
