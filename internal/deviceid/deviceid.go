// Package deviceid mints the per-browser stable identifier carried in the
// long-term cookie and propagated through every subsequent
// AuthenticationInfo for that browser.
package deviceid

import (
	"encoding/base64"

	"github.com/google/uuid"
)

// New returns a fresh device id: a UUID v4, URL-safe base64 encoded with
// padding stripped, as specified by §6.
func New() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(id[:]), nil
}
