package repository

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arkeep-io/webauthcore/internal/db"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	if err := db.InitEncryption(make([]byte, 32)); err != nil {
		t.Fatalf("InitEncryption: %v", err)
	}
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&db.User{}, &db.OIDCProvider{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return gdb
}

func TestUserRepositoryCreateAndGet(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	u := &db.User{Email: "alice@example.com", DisplayName: "Alice"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("GetByEmail returned %v, want %v", got.ID, u.ID)
	}

	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByEmail missing = %v, want ErrNotFound", err)
	}
}

func TestUserRepositoryGetByOIDC(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	u := &db.User{Email: "bob@example.com", DisplayName: "Bob", OIDCProvider: "okta", OIDCSub: "sub-123"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByOIDC(ctx, "okta", "sub-123")
	if err != nil {
		t.Fatalf("GetByOIDC: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("GetByOIDC returned wrong user")
	}

	if _, err := repo.GetByOIDC(ctx, "okta", "sub-other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByOIDC mismatch = %v, want ErrNotFound", err)
	}
}

func TestUserRepositoryUpdateAndDelete(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	u := &db.User{Email: "carol@example.com", DisplayName: "Carol"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	u.DisplayName = "Carol Updated"
	if err := repo.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.DisplayName != "Carol Updated" {
		t.Fatalf("DisplayName = %q, want %q", got.DisplayName, "Carol Updated")
	}

	if err := repo.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID after delete = %v, want ErrNotFound", err)
	}
}

func TestUserRepositoryList(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		email := string(rune('a'+i)) + "@example.com"
		if err := repo.Create(ctx, &db.User{Email: email, DisplayName: email}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	users, total, err := repo.List(ctx, ListOptions{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if len(users) != 2 {
		t.Fatalf("len(users) = %d, want 2", len(users))
	}
}

func TestOIDCProviderRepositoryGetEnabled(t *testing.T) {
	repo := NewOIDCProviderRepository(testDB(t))
	ctx := context.Background()

	disabled := &db.OIDCProvider{Name: "okta", Issuer: "https://okta.example.com", ClientID: "id", ClientSecret: "secret", RedirectURL: "https://app/callback", Enabled: false}
	enabled := &db.OIDCProvider{Name: "google", Issuer: "https://accounts.google.com", ClientID: "id2", ClientSecret: "secret2", RedirectURL: "https://app/callback", Enabled: true}
	if err := repo.Create(ctx, disabled); err != nil {
		t.Fatalf("Create disabled: %v", err)
	}
	if err := repo.Create(ctx, enabled); err != nil {
		t.Fatalf("Create enabled: %v", err)
	}

	got, err := repo.GetEnabled(ctx)
	if err != nil {
		t.Fatalf("GetEnabled: %v", err)
	}
	if got.ID != enabled.ID {
		t.Fatalf("GetEnabled returned %v, want %v", got.ID, enabled.ID)
	}
}

func TestOIDCProviderRepositoryClientSecretRoundtrips(t *testing.T) {
	repo := NewOIDCProviderRepository(testDB(t))
	ctx := context.Background()

	p := &db.OIDCProvider{Name: "okta", Issuer: "https://okta.example.com", ClientID: "id", ClientSecret: "super-secret", RedirectURL: "https://app/callback"}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ClientSecret != "super-secret" {
		t.Fatalf("ClientSecret = %q, want round-tripped plaintext", got.ClientSecret)
	}
}
