// Package repository provides GORM-backed persistence for the demo login
// schemes' user store. Grounded on the teacher's internal/repository
// package, trimmed to the two models the schemes actually need (users,
// oidc_providers) — the refresh-token and backup-product tables it also
// defined have no home in this core and were dropped.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/arkeep-io/webauthcore/internal/db"
)

// ErrNotFound is returned by any Get* method when no matching row exists.
var ErrNotFound = errors.New("repository: not found")

// ListOptions paginates List queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository persists db.User records for the Basic and OIDC schemes.
type UserRepository interface {
	Create(ctx context.Context, user *db.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	GetByOIDC(ctx context.Context, provider, sub string) (*db.User, error)
	Update(ctx context.Context, user *db.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, opts ListOptions) ([]db.User, int64, error)
}

// OIDCProviderRepository persists db.OIDCProvider configuration records.
type OIDCProviderRepository interface {
	Create(ctx context.Context, provider *db.OIDCProvider) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.OIDCProvider, error)
	GetEnabled(ctx context.Context) (*db.OIDCProvider, error)
	Update(ctx context.Context, provider *db.OIDCProvider) error
	Delete(ctx context.Context, id uuid.UUID) error
}
