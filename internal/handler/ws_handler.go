package handler

import (
	"context"
	"net"
	"net/http"

	"schoolmaps/internal/app/realtime"
	"schoolmaps/internal/pkg/auth/jwt"
	"schoolmaps/internal/pkg/errs"
	"schoolmaps/internal/pkg/limiter"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/resp"

	"github.com/gorilla/websocket"
)

// HandleWebSocket upgrades an authenticated request to a live subscription connection.
// The token comes from the Authorization header or the token query parameter.
func HandleWebSocket(ctx context.Context, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			payload = queryTokenPayload(r, deps)
		}
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		logx.Info("WebSocket connection established", "user_id", payload.ID)

		client := realtime.NewClient(deps.Hub, conn, deps.Docs, deps.recorder(), payload.ID)
		client.Serve(ctx)
	}
}

func queryTokenPayload(r *http.Request, deps *AppDeps) *jwt.Payload {
	token := r.URL.Query().Get("token")
	if token == "" {
		return nil
	}

	payload, err := jwt.ParseToken(token, deps.Config.JWTSecret)
	if err != nil {
		return nil
	}

	revoked, err := deps.Identity.IsRevoked(r.Context(), payload.Id)
	if err != nil || revoked {
		return nil
	}
	return payload
}
