// Package protector implements purpose-scoped authenticated encryption for
// the authentication envelope. It follows the same AES-256-GCM recipe the
// rest of this codebase uses for encryption at rest (see internal/db's
// EncryptedString), but derives one sub-key per purpose from a single root
// key via HKDF so that a cookie-purpose ciphertext can never be replayed as
// a bearer-token-purpose ciphertext or vice versa.
package protector

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrUnprotect is returned by Unprotect whenever the input cannot be
// authenticated as a value this Protector produced — corrupt, tampered, or
// encrypted under a different purpose/key entirely. Callers must treat this
// as "no envelope present", never as an authentication failure to report to
// the caller (see spec §4.1 / §7): log it and fall through.
var ErrUnprotect = errors.New("protector: unable to authenticate value")

// Purpose names the intended use of a derived key. The version suffix lets
// the wire format change without colliding with previously issued envelopes.
type Purpose string

const (
	PurposeCookie Purpose = "Cookiev1"
	PurposeToken  Purpose = "Tokenv1"
	PurposeExtra  Purpose = "Extrav1"
)

// Protector authenticates and encrypts arbitrary byte payloads into a
// URL-safe string, and reverses the operation.
type Protector interface {
	Protect(plaintext []byte) (string, error)
	Unprotect(s string) ([]byte, error)
}

// aeadProtector is the AES-256-GCM backed Protector implementation.
type aeadProtector struct {
	aead cipher.AEAD
}

// newAEADProtector derives a 32-byte key from root scoped to purpose via
// HKDF-SHA256 and builds an AES-256-GCM AEAD from it.
func newAEADProtector(root []byte, purpose Purpose) (*aeadProtector, error) {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, root, nil, []byte(purpose))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("protector: deriving key for purpose %q: %w", purpose, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("protector: creating AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("protector: creating GCM: %w", err)
	}
	return &aeadProtector{aead: aead}, nil
}

// Protect seals plaintext and returns a URL-safe, unpadded base64 string of
// nonce||ciphertext||tag.
func (p *aeadProtector) Protect(plaintext []byte) (string, error) {
	nonce := make([]byte, p.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("protector: generating nonce: %w", err)
	}
	sealed := p.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Unprotect reverses Protect. Any failure — malformed base64, short input,
// or authentication tag mismatch — is reported as ErrUnprotect so callers
// can treat it uniformly as "no envelope present".
func (p *aeadProtector) Unprotect(s string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprotect, err)
	}
	nonceSize := p.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than nonce", ErrUnprotect)
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := p.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnprotect, err)
	}
	return plaintext, nil
}

// Set holds the three purpose-scoped protectors used throughout the
// authentication core: Cookie (session cookie envelopes), Token (bearer
// envelopes), and Extra (cross-redirect extra-data bags).
type Set struct {
	Cookie Protector
	Token  Protector
	Extra  Protector
}

// NewSet derives the Cookie/Token/Extra protectors from a single root key.
// root should be a high-entropy secret of at least 32 bytes, managed
// externally (e.g. loaded from a secret store) and never logged.
func NewSet(root []byte) (*Set, error) {
	if len(root) < 32 {
		return nil, fmt.Errorf("protector: root key must be at least 32 bytes, got %d", len(root))
	}

	cookie, err := newAEADProtector(root, PurposeCookie)
	if err != nil {
		return nil, err
	}
	token, err := newAEADProtector(root, PurposeToken)
	if err != nil {
		return nil, err
	}
	extra, err := newAEADProtector(root, PurposeExtra)
	if err != nil {
		return nil, err
	}

	return &Set{Cookie: cookie, Token: token, Extra: extra}, nil
}
