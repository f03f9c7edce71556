package reqauth

import (
	"context"
	"sync"

	"github.com/arkeep-io/webauthcore/internal/authinfo"
)

// Slot is the request-scoped, single-writer cache described by §4.2's
// "Caching" paragraph and §5's "Request-scoped cache" rule. The first caller
// to invoke Resolve on a given request runs the resolution function; every
// later call on the same Slot — even from an unrelated handler further down
// the chain — observes the same cached result without re-decoding anything.
type Slot struct {
	once              sync.Once
	info              authinfo.FrontAuthenticationInfo
	writeCookie       bool
	err               error
	mu                sync.Mutex
	writeCookieForced bool
}

type contextKey struct{}

// WithSlot attaches a fresh, empty Slot to ctx. Call once per incoming
// request, before any handler can reach C2.
func WithSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, &Slot{})
}

// SlotFrom retrieves the Slot attached by WithSlot. It panics if none is
// present, matching the teacher's claimsFromCtx "must be wired by middleware"
// convention — a missing slot is a wiring bug, not a runtime condition to
// recover from.
func SlotFrom(ctx context.Context) *Slot {
	s, ok := ctx.Value(contextKey{}).(*Slot)
	if !ok {
		panic("reqauth: no Slot in context; is the resolver middleware installed?")
	}
	return s
}

// Resolve returns the cached FrontAuthenticationInfo, running resolve exactly
// once for the lifetime of the slot. resolve reports whether a cookie write
// should be scheduled as a side effect of this resolution (the synthesize and
// sliding-renewal paths of §4.2).
func (s *Slot) Resolve(resolve func() (authinfo.FrontAuthenticationInfo, bool, error)) (authinfo.FrontAuthenticationInfo, error) {
	s.once.Do(func() {
		info, writeCookie, err := resolve()
		s.mu.Lock()
		s.info, s.writeCookie, s.err = info, writeCookie, err
		s.mu.Unlock()
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, s.err
}

// Replace overwrites the cached info outside the normal resolve path — used
// by the login orchestrator (C4) after a successful or failed login commits
// a new FrontAuthenticationInfo to the request slot.
func (s *Slot) Replace(info authinfo.FrontAuthenticationInfo, writeCookie bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
	s.writeCookieForced = writeCookie
}

// ShouldWriteCookie reports whether any resolution or replacement on this
// slot requested a cookie write.
func (s *Slot) ShouldWriteCookie() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCookie || s.writeCookieForced
}

// Current returns whatever is currently cached without triggering
// resolution. Used by code that runs after Resolve has definitely already
// been called (e.g. response writing at the end of the request).
func (s *Slot) Current() authinfo.FrontAuthenticationInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}
