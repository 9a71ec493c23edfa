package handlers

import (
	"net/http"

	"github.com/marmos91/ldapauth/internal/logger"
	"github.com/marmos91/ldapauth/pkg/authprovider"
)

// CacheController gives access to cached profiles. *authprovider.Provider
// implements it.
type CacheController interface {
	CachedProfile(identity, secret string) (*authprovider.Profile, bool)
	Invalidate(identity, secret string)
}

// CacheHandler handles cache management endpoints.
type CacheHandler struct {
	cache CacheController
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(cache CacheController) *CacheHandler {
	return &CacheHandler{cache: cache}
}

// Invalidate handles POST /api/v1/invalidate.
// Drops the cached profile for the presented credentials so the next
// authentication reaches the directory. Clients call it after a password
// change or on logout. The response is 204 whether or not an entry existed,
// so it cannot be used to test passwords.
func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	creds, ok := readCredentials(w, r)
	if !ok {
		return
	}
	if creds.Username == "" || creds.Password == "" {
		unauthorized(w, "Username and password are required")
		return
	}

	if profile, cached := h.cache.CachedProfile(creds.Username, creds.Password); cached {
		h.cache.Invalidate(creds.Username, creds.Password)
		logger.InfoCtx(r.Context(), "Cached profile invalidated",
			logger.KeyIdentity, creds.Username,
			logger.KeyPrincipal, profile.PrincipalID,
		)
	}

	w.WriteHeader(http.StatusNoContent)
}
