/*
Package handler provides the HTTP handlers and routing setup for the Schoolmaps server.

This file defines the main Router, applying necessary middleware like logging, CORS,
metrics and IP-based rate limiting before delegating requests to specific handlers
(API and WebSocket).
*/
package handler

import (
	"context"
	"net/http"

	"schoolmaps/internal/pkg/auth/jwt"
	"schoolmaps/internal/pkg/limiter"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/metrics"
	"schoolmaps/internal/pkg/resp"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

const (
	AuthRate     = 0.5
	AuthBurst    = 10
	ConnectRate  = 0.2
	ConnectBurst = 5
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// ctx bounds the lifetime of the rate limiters and of every websocket client.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(AuthRate), AuthBurst)
	connectLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin.
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-PoW-Token"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "Schoolmaps Server",
		}
		resp.RespondSuccess(w, r, data)
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	identity := jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret, deps.Identity)

	r.Route("/api", func(api chi.Router) {
		api.Use(identity)

		api.Route("/pow", func(p chi.Router) {
			p.Get("/challenge", HandlePowChallenge(deps))
			p.Post("/verify", HandlePowVerify(deps))
		})

		api.Route("/auth", func(auth chi.Router) {
			auth.Use(authLimiter.Middleware)

			auth.With(deps.Pow.Middleware).Post("/register", HandleRegister(deps))
			auth.Post("/login", HandleLogin(deps))
			auth.Post("/logout", HandleLogout(deps))
			auth.Get("/me", HandleMe(deps))
			auth.With(deps.Pow.Middleware).Post("/password-reset", HandlePasswordReset(deps))
			auth.Post("/password-reset/confirm", HandlePasswordResetConfirm(deps))
		})

		api.Group(func(private chi.Router) {
			private.Use(jwt.RequireIdentity)

			private.Route("/docs", func(docs chi.Router) {
				docs.Post("/get", HandleGetDocument(deps))
				docs.Post("/merge", HandleMergeDocument(deps))
				docs.Post("/create", HandleCreateDocument(deps))
				docs.Post("/update", HandleUpdateDocument(deps))
				docs.Post("/delete", HandleDeleteDocument(deps))
				docs.Post("/query", HandleQueryDocuments(deps))
				docs.Post("/batch", HandleBatch(deps))
			})

			private.Route("/blobs", func(blobs chi.Router) {
				blobs.Post("/upload", HandleUploadBlob(deps))
				blobs.Post("/delete", HandleDeleteBlob(deps))
				blobs.Get("/download", HandleDownloadBlob(deps))
			})
		})
	})

	r.With(identity).Get("/ws", HandleWebSocket(ctx, wsUpgrader, connectLimiter, deps))

	return r
}
