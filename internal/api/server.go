// ABOUTME: HTTP server struct, constructor, and handler wiring for DutyLeak.
// ABOUTME: Holds store, config, permission table, and domain engines used by handlers.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/time/rate"

	"github.com/Milo6x/dutyleak/internal/authz"
	"github.com/Milo6x/dutyleak/internal/classify"
	"github.com/Milo6x/dutyleak/internal/config"
	"github.com/Milo6x/dutyleak/internal/customs"
	"github.com/Milo6x/dutyleak/internal/recommend"
	"github.com/Milo6x/dutyleak/internal/store"
)

// Server holds the dependencies for the HTTP layer.
type Server struct {
	store        *store.Store
	cfg          *config.Config
	permTable    *authz.Table
	argon2Sem    chan struct{}
	rateLimiter  *ipRateLimiter
	ghOAuth      *oauth2.Config // nil when GitHub OAuth is not configured
	ghAPIBaseURL string         // GitHub REST API base URL; overridable in tests
	classifier   *classify.Engine
	tariff       *customs.Client
	recommender  *recommend.Engine
}

// NewServer creates a Server with the default permission table and domain
// engines built from cfg.
func NewServer(s *store.Store, cfg *config.Config) (*Server, error) {
	sem := make(chan struct{}, cfg.Argon2MaxConcurrent)
	evictTTL := cfg.RateLimitEvictTTL
	if evictTTL == 0 {
		evictTTL = 15 * time.Minute
	}
	// 10 requests per minute, burst of 10.
	rl := newIPRateLimiter(rate.Limit(10.0/60), 10, evictTTL)

	primary := classify.NewProvider(nil, cfg.ClassifierBaseURL, cfg.ClassifierAPIKey, cfg.ClassifierModel)
	var fallback *classify.Provider
	if cfg.FallbackBaseURL != "" {
		fallback = classify.NewProvider(nil, cfg.FallbackBaseURL, cfg.FallbackAPIKey, cfg.FallbackModel)
	}
	classifier := classify.NewEngine(primary, fallback, cfg.ClassifierMinConfidence)

	tariff := customs.New(nil, cfg.TariffAPIBaseURL, cfg.TariffAPIKey)

	srv := &Server{
		store:        s,
		cfg:          cfg,
		permTable:    authz.DefaultTable(),
		argon2Sem:    sem,
		rateLimiter:  rl,
		ghAPIBaseURL: "https://api.github.com",
		classifier:   classifier,
		tariff:       tariff,
		recommender:  recommend.NewEngine(s, tariff, cfg.DutyRateTTL),
	}

	// ── GitHub OAuth (optional) ───────────────────────────────────────────────
	if cfg.GitHubClientID != "" {
		srv.ghOAuth = &oauth2.Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.ExternalURL + "/api/v1/auth/oauth/github/callback",
			Endpoint:     github.Endpoint,
			Scopes:       []string{"user:email"},
		}
	}

	return srv, nil
}

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	var db *pgxpool.Pool
	if srv.store != nil {
		db = srv.store.Pool()
	}
	r := chi.NewRouter()

	// ── Security headers ──────────────────────────────────────────────────────
	// Must be first so they appear on every response including errors.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	})

	// ── Standard chi middleware ───────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// 1 MB global body limit — protects against OOM from large request bodies.
	// CSV imports fit comfortably: ~10k rows of typical product data.
	r.Use(middleware.RequestSize(1 << 20))
	r.Use(middleware.Recoverer)

	// ── Infrastructure endpoints ──────────────────────────────────────────────
	r.Get("/healthz", healthzHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	// ── API v1 sub-router with huma (OpenAPI 3.1) ────────────────────────────
	apiRouter := chi.NewRouter()
	apiRouter.Use(csrfProtect)
	humaConfig := huma.DefaultConfig("DutyLeak API", "0.1.0")
	humaConfig.Info.Description = "Import duty optimization and landed cost API"
	api := humachi.New(apiRouter, humaConfig)
	registerAuthRoutes(api, srv)
	registerProductRoutes(api, srv)
	registerClassificationRoutes(api, srv)
	registerRecommendationRoutes(api, srv)

	// ── OAuth routes (chi, not huma — these are redirects, not JSON API calls) ─
	apiRouter.Get("/auth/oauth/github", srv.githubInitHandler)
	apiRouter.Get("/auth/oauth/github/callback", srv.githubCallbackHandler)

	// ── Workspace management routes (chi, not huma, for per-route role middleware) ─
	apiRouter.Route("/workspaces", func(r chi.Router) {
		r.Use(srv.RequireAuthenticated())
		r.Post("/", srv.createWorkspaceHandler)
		r.Get("/", srv.listWorkspacesHandler)

		r.Route("/{workspace_id}", func(r chi.Router) {
			r.Use(srv.RequireWorkspaceRole(authz.RoleViewer))
			r.Get("/", srv.getWorkspaceHandler)
			r.With(srv.RequireWorkspaceRole(authz.RoleAdmin)).Patch("/", srv.updateWorkspaceHandler)
			r.With(srv.RequireWorkspaceRole(authz.RoleOwner)).Delete("/", srv.deleteWorkspaceHandler)

			// Member management
			r.Route("/members", func(r chi.Router) {
				r.Get("/", srv.listMembersHandler)
				r.With(srv.RequireWorkspaceRole(authz.RoleAdmin)).Patch("/{user_id}", srv.updateMemberRoleHandler)
				r.With(srv.RequireWorkspaceRole(authz.RoleAdmin)).Delete("/{user_id}", srv.removeMemberHandler)
			})

			// Invitation management
			r.Route("/invitations", func(r chi.Router) {
				r.With(srv.RequireWorkspaceRole(authz.RoleAdmin)).Post("/", srv.createInvitationHandler)
				r.With(srv.RequireWorkspaceRole(authz.RoleAdmin)).Get("/", srv.listInvitationsHandler)
				r.With(srv.RequireWorkspaceRole(authz.RoleAdmin)).Delete("/{id}", srv.cancelInvitationHandler)
			})

			// Webhook management
			r.Route("/webhooks", func(r chi.Router) {
				r.Use(srv.RequireWorkspaceRole(authz.RoleAdmin))
				r.Post("/", srv.createWebhookHandler)
				r.Get("/", srv.listWebhooksHandler)
				r.Post("/{id}/rotate", srv.rotateWebhookSecretHandler)
				r.Delete("/{id}", srv.deleteWebhookHandler)
			})

			// API key management
			r.Route("/api-keys", func(r chi.Router) {
				r.With(srv.RequireWorkspaceRole(authz.RoleMember)).Post("/", srv.createAPIKeyHandler)
				r.Get("/", srv.listAPIKeysHandler)
				r.With(srv.RequireWorkspaceRole(authz.RoleAdmin)).Delete("/{id}", srv.revokeAPIKeyHandler)
			})
		})
	})

	r.Mount("/api/v1", apiRouter)

	return r
}

// acquireArgon2 tries to acquire the argon2 semaphore. Returns false if all
// slots are in use — the caller should return 503 immediately (do NOT block).
func (srv *Server) acquireArgon2() bool {
	select {
	case srv.argon2Sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (srv *Server) releaseArgon2() { <-srv.argon2Sem }

// healthResponse is the JSON body for /healthz.
type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

// healthzHandler returns 200 {"status":"ok"} when the DB is reachable,
// or 503 {"status":"degraded","db":"unavailable"} when it is not.
func healthzHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		statusCode := http.StatusOK

		if db == nil {
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		} else if err := db.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "healthz: db ping failed", "error", err)
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.ErrorContext(r.Context(), "healthz: failed to encode response", "error", err)
		}
	}
}
