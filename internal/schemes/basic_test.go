package schemes

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/arkeep-io/webauthcore/internal/db"
	"github.com/arkeep-io/webauthcore/internal/repository"
)

func testUserRepo(t *testing.T) repository.UserRepository {
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
	return repository.NewUserRepository(gdb)
}

func TestBasicLoginSucceedsWithCorrectPassword(t *testing.T) {
	users := testUserRepo(t)
	ctx := context.Background()

	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := users.Create(ctx, &db.User{Email: "alice@example.com", Password: db.EncryptedString(hash), DisplayName: "Alice", IsActive: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	b := New(users, clockwork.NewFakeClock())
	result, err := b.LoginFn("alice@example.com", "correct horse battery staple")(ctx, true)
	if err != nil {
		t.Fatalf("LoginFn: %v", err)
	}
	if !result.IsSuccess() {
		t.Fatalf("result.IsSuccess() = false, want true; failure=%d %q", result.LoginFailureCode, result.LoginFailureReason)
	}
	if result.UserInfo.UserName != "Alice" {
		t.Fatalf("UserName = %q, want Alice", result.UserInfo.UserName)
	}
}

func TestBasicLoginFailsWithWrongPassword(t *testing.T) {
	users := testUserRepo(t)
	ctx := context.Background()

	hash, _ := HashPassword("correct password")
	if err := users.Create(ctx, &db.User{Email: "bob@example.com", Password: db.EncryptedString(hash), DisplayName: "Bob", IsActive: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	b := New(users, clockwork.NewFakeClock())
	result, err := b.LoginFn("bob@example.com", "wrong password")(ctx, true)
	if err != nil {
		t.Fatalf("LoginFn: %v", err)
	}
	if result.IsSuccess() {
		t.Fatalf("result.IsSuccess() = true, want false")
	}
	if result.LoginFailureCode != FailureInvalidCredentials {
		t.Fatalf("LoginFailureCode = %d, want %d", result.LoginFailureCode, FailureInvalidCredentials)
	}
}

func TestBasicLoginFailsForUnknownEmail(t *testing.T) {
	users := testUserRepo(t)
	b := New(users, clockwork.NewFakeClock())

	result, err := b.LoginFn("nobody@example.com", "anything")(context.Background(), true)
	if err != nil {
		t.Fatalf("LoginFn: %v", err)
	}
	if result.IsSuccess() || result.LoginFailureCode != FailureInvalidCredentials {
		t.Fatalf("result = %+v, want invalid-credentials failure", result)
	}
}

func TestBasicLoginFailsForDisabledAccount(t *testing.T) {
	users := testUserRepo(t)
	ctx := context.Background()

	hash, _ := HashPassword("password")
	if err := users.Create(ctx, &db.User{Email: "carol@example.com", Password: db.EncryptedString(hash), DisplayName: "Carol", IsActive: false}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	b := New(users, clockwork.NewFakeClock())
	result, err := b.LoginFn("carol@example.com", "password")(ctx, true)
	if err != nil {
		t.Fatalf("LoginFn: %v", err)
	}
	if result.IsSuccess() || result.LoginFailureCode != FailureUserDisabled {
		t.Fatalf("result = %+v, want user-disabled failure", result)
	}
}
