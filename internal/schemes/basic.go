package schemes

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/argon2"

	"github.com/arkeep-io/webauthcore/internal/login"
	"github.com/arkeep-io/webauthcore/internal/repository"
)

// SchemeName is the CallingScheme value this backend's logins are recorded
// under.
const SchemeName = "Basic"

const (
	argon2Time    = 2
	argon2Memory  = 64 * 1024
	argon2Threads = 2
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// Failure codes returned via login.UserLoginResult.LoginFailureCode.
const (
	FailureInvalidCredentials = 1
	FailureUserDisabled       = 2
)

// Basic authenticates users by email and password against Argon2id hashes
// stored in db.User.Password. Grounded on internal/auth/local.go, trimmed of
// its JWT/refresh-token issuance — that responsibility now belongs entirely
// to the core's envelope/token protector.
type Basic struct {
	users repository.UserRepository
	clock clockwork.Clock
}

func New(users repository.UserRepository, clock clockwork.Clock) *Basic {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Basic{users: users, clock: clock}
}

// LoginFn returns a login.LoginFn closing over one attempt's credentials.
// Basic has no dry-run cost, so actualLogin is ignored — the lookup and
// password check run identically either way.
func (b *Basic) LoginFn(email, password string) login.LoginFn {
	return func(ctx context.Context, actualLogin bool) (login.UserLoginResult, error) {
		user, err := b.users.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Same failure as a wrong password — do not leak whether the
				// email is registered.
				return login.UserLoginResult{LoginFailureCode: FailureInvalidCredentials, LoginFailureReason: "invalid email or password"}, nil
			}
			return login.UserLoginResult{}, fmt.Errorf("schemes: basic: fetching user by email: %w", err)
		}

		if !user.IsActive {
			return login.UserLoginResult{LoginFailureCode: FailureUserDisabled, LoginFailureReason: "account disabled"}, nil
		}

		if !verifyPassword(password, string(user.Password)) {
			return login.UserLoginResult{LoginFailureCode: FailureInvalidCredentials, LoginFailureReason: "invalid email or password"}, nil
		}

		info := userInfoFromRecord(user.ID, user.DisplayName, SchemeName, b.clock.Now().UTC())
		return login.UserLoginResult{UserInfo: &info}, nil
	}
}

// HashPassword returns an Argon2id hash suitable for storing in db.User.Password.
// Format: saltHex:hashHex.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("schemes: basic: generating password salt: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(hash), nil
}

func verifyPassword(password, stored string) bool {
	saltHex, hashHex, ok := splitHash(stored)
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	expected, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}
	actual := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

func splitHash(s string) (salt, hash string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
