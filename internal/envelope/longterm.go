package envelope

import (
	"encoding/json"
	"fmt"
	"time"
)

// LongTermPayload is the plaintext JSON carried inside the long-term cookie
// (§3/§6). Unlike the session/bearer envelope it is never AEAD-protected at
// all; its content is identity+device state the resolver uses only to
// synthesize a fresh, Unsafe-level AuthenticationInfo; it never carries
// expiry or critical-level state of its own.
type LongTermPayload struct {
	UserID   int64            `json:"userId,omitempty"`
	UserName string           `json:"userName,omitempty"`
	Schemes  []LongTermScheme `json:"schemes,omitempty"`
	DeviceID string           `json:"deviceId,omitempty"`
}

// LongTermScheme is a single entry of LongTermPayload's schemes array.
type LongTermScheme struct {
	Name     string    `json:"name"`
	LastUsed time.Time `json:"lastUsed"`
}

// EncodeLongTerm marshals a LongTermPayload to JSON bytes.
func EncodeLongTerm(p LongTermPayload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("envelope: encoding long-term payload: %w", err)
	}
	return b, nil
}

// DecodeLongTerm reverses EncodeLongTerm.
func DecodeLongTerm(data []byte) (LongTermPayload, error) {
	var p LongTermPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return LongTermPayload{}, fmt.Errorf("envelope: decoding long-term payload: %w", err)
	}
	return p, nil
}
