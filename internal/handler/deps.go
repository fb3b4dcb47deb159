package handler

import (
	"context"

	"schoolmaps/internal/app/realtime"
	"schoolmaps/internal/app/storage"
	"schoolmaps/internal/configs"
	"schoolmaps/internal/pkg/auth/jwt"
	"schoolmaps/internal/pkg/metrics"
	"schoolmaps/internal/pkg/pow"
	"schoolmaps/internal/pkg/wire"

	"github.com/prometheus/client_golang/prometheus"
)

// IdentityService is implemented by identity.Service.
type IdentityService interface {
	Register(ctx context.Context, email, password, displayName string) (wire.AuthResult, error)
	SignIn(ctx context.Context, email, password string) (wire.AuthResult, error)
	SignOut(ctx context.Context, payload *jwt.Payload) error
	CurrentUser(ctx context.Context, payload *jwt.Payload) (wire.Identity, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, password string) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// DocumentStore is implemented by docstore.Store.
type DocumentStore interface {
	realtime.Reader
	Merge(ctx context.Context, uid, collection, id string, data map[string]any) (wire.Document, error)
	Create(ctx context.Context, uid, collection string, data map[string]any) (wire.Document, error)
	Update(ctx context.Context, uid, collection, id string, data map[string]any) (wire.Document, error)
	Delete(ctx context.Context, uid, collection, id string) error
	Batch(ctx context.Context, uid string, ops []wire.Op) ([]string, error)
}

type AppDeps struct {
	Config   *configs.AppConfig
	Identity IdentityService
	Docs     DocumentStore
	Blobs    storage.BlobStore
	Hub      *realtime.Hub
	Pow      *pow.Manager

	// Metrics and Gatherer are optional.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
}

func (d *AppDeps) recorder() metrics.Recorder {
	if d.Metrics == nil {
		return metrics.Nop{}
	}
	return d.Metrics
}
