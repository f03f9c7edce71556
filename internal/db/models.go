package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// base contains the common fields shared by all models.
// ID uses UUID v7 (time-ordered) for efficient B-tree indexing and natural
// chronological ordering without a separate created_at sort. CreatedAt and
// UpdatedAt are managed automatically by GORM.
type base struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a new UUID v7 if the ID is not already set.
// This ensures every record has a valid time-ordered ID before insertion.
func (b *base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	return nil
}

// -----------------------------------------------------------------------------
// Users & Auth
// -----------------------------------------------------------------------------

// User is a registered identity the demo login schemes authenticate against.
// Password is only set for Basic-scheme accounts — OIDC users authenticate
// via the provider and have an empty Password field. LastUsedScheme/
// LastLoginAt are stored columns only; authinfo.UserInfo.Schemes is built
// from the current login, not from them.
type User struct {
	base
	Email           string          `gorm:"uniqueIndex;not null"`
	Password        EncryptedString `gorm:"type:text"` // empty for OIDC-only users
	DisplayName     string          `gorm:"not null"`
	IsActive        bool            `gorm:"not null"`              // false = account disabled
	OIDCProvider    string          `gorm:"default:''"`             // provider ID if bound to OIDC
	OIDCSub         string          `gorm:"default:''"`             // subject claim from OIDC token
	LastUsedScheme  string          `gorm:"default:''"`
	LastLoginAt     *time.Time
}

// OIDCProvider stores the configuration for an external OIDC identity
// provider consumed by the demo OIDC login scheme. ClientSecret is
// encrypted at rest.
type OIDCProvider struct {
	base
	Name         string          `gorm:"not null"`
	Issuer       string          `gorm:"not null"`
	ClientID     string          `gorm:"not null"`
	ClientSecret EncryptedString `gorm:"type:text;not null"`
	RedirectURL  string          `gorm:"not null"`
	Scopes       string          `gorm:"not null;default:'openid email profile'"` // space-separated
	Enabled      bool            `gorm:"not null;default:false"`
}
