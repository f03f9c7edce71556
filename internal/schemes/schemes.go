// Package schemes provides the demo login backends wired into the module's
// example server: Basic (email/password, Argon2id) and OIDC (Authorization
// Code + PKCE). Both satisfy the core's login.LoginFn contract and are
// grounded on the teacher's internal/auth package, generalized from a
// JWT-issuing auth service into backends that hand their verdict to the
// stateless orchestrator instead of minting their own tokens.
package schemes

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"

	"github.com/arkeep-io/webauthcore/internal/authinfo"
)

// userIDFromUUID derives the int64 UserID the core's authinfo package uses
// from a repository-assigned UUID. authinfo treats 0 as the distinguished
// anonymous id, so a uuid hashing to exactly 0 (practically impossible) is
// nudged to 1.
func userIDFromUUID(id uuid.UUID) int64 {
	v := int64(binary.BigEndian.Uint64(id[:8]) & 0x7fffffffffffffff)
	if v == 0 {
		return 1
	}
	return v
}

// userInfoFromRecord builds a UserInfo for a successful login, recording
// this attempt as a use of scheme so it shows up in authinfo.UserInfo.Schemes.
func userInfoFromRecord(id uuid.UUID, displayName, scheme string, now time.Time) authinfo.UserInfo {
	return authinfo.NewUser(userIDFromUUID(id), displayName, nil).WithSchemeUse(scheme, now)
}
