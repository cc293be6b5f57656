package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/skillmarket/internal/metrics"
	"github.com/hitoshi/skillmarket/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DB を受け付けることができる。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenValidator    middleware.TokenValidator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// サービス
	AccountService   AccountServiceInterface
	SessionService   SessionServiceInterface
	UserService      UserServiceInterface
	FormationService FormationServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → [Auth → RateLimit(General)]
//
// 登録・ログインなどの未認証ルートはAuthミドルウェアの外に配置し、
// IPベースのレート制限のみ適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	authHandler := NewAuthHandler(deps.AccountService, deps.SessionService)
	userHandler := NewUserHandler(deps.UserService)
	formationHandler := NewFormationHandler(deps.FormationService)

	// --- 運用エンドポイント ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.Ping(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証不要のルート ---

	r.Route("/api/auth", func(r chi.Router) {
		// 登録・ログインはIPベースのレート制限を適用
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/register/apprenant", authHandler.RegisterApprenant)
			r.Post("/register/expert", authHandler.RegisterExpert)
			r.Post("/login", authHandler.Login)
			r.Post("/password-reset/request", authHandler.RequestPasswordReset)
		})

		r.Get("/verify", authHandler.Verify)
		r.Post("/resend-verification", authHandler.ResendVerification)
		r.Post("/logout", authHandler.Logout)
		r.Get("/password-reset/validate", authHandler.ValidateResetToken)
		r.Post("/password-reset/confirm", authHandler.ResetPassword)
	})

	// 公開の研修カタログ
	r.Get("/api/formations", formationHandler.ListApproved)
	r.Get("/api/formations/{id}", formationHandler.Get)
	r.Get("/api/formations/{id}/avis", formationHandler.ListReviews)
	r.Get("/api/experts", userHandler.ListActiveExperts)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenValidator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// プロフィール管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Put("/me", userHandler.UpdateProfile)
		})

		// 研修ライフサイクル
		// 公開の研修カタログ（GET /api/formations など）と同じツリーを共有するため、
		// サブルーターをマウントせずメソッド単位で登録する。
		r.Post("/api/formations", formationHandler.Create)
		r.Get("/api/formations/mine", formationHandler.ListMine)
		r.Get("/api/formations/enrollments", formationHandler.ListMyEnrollments)
		r.Put("/api/formations/{id}", formationHandler.Update)
		r.Delete("/api/formations/{id}", formationHandler.Delete)
		r.Post("/api/formations/{id}/start", formationHandler.Start)
		r.Post("/api/formations/{id}/finish", formationHandler.Finish)
		r.Post("/api/formations/{id}/enroll", formationHandler.Enroll)
		r.Post("/api/formations/{id}/avis", formationHandler.AddReview)

		// 管理者専用ルート
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.NewAdminMiddleware())

			r.Get("/experts", userHandler.ListVerifiedExperts)
			r.Get("/experts/pending", userHandler.ListPendingExperts)
			r.Post("/experts/{id}/validate", userHandler.ValidateExpert)

			r.Get("/formations/pending", formationHandler.ListPending)
			r.Post("/formations/{id}/approve", formationHandler.Approve)
			r.Post("/formations/{id}/reject", formationHandler.Reject)
		})
	})

	return r
}
