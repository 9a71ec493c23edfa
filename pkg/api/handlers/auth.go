package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/marmos91/ldapauth/internal/logger"
	"github.com/marmos91/ldapauth/pkg/api/auth"
	"github.com/marmos91/ldapauth/pkg/api/middleware"
	"github.com/marmos91/ldapauth/pkg/authprovider"
)

// maxCredentialsBody caps the size of an authentication request body.
const maxCredentialsBody = 64 << 10

// basicRealm is advertised in WWW-Authenticate on 401 responses.
const basicRealm = `Basic realm="ldapauth", charset="UTF-8"`

// Authenticator verifies credentials. *authprovider.Provider implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, identity, secret string) (*authprovider.Profile, bool)
}

// AuthHandler handles authentication-related API endpoints.
type AuthHandler struct {
	authenticator Authenticator
	jwtService    *auth.JWTService
}

// NewAuthHandler creates a new AuthHandler. jwtService may be nil, in which
// case Token reports that token issuance is disabled.
func NewAuthHandler(authenticator Authenticator, jwtService *auth.JWTService) *AuthHandler {
	return &AuthHandler{
		authenticator: authenticator,
		jwtService:    jwtService,
	}
}

// CredentialsRequest is the JSON body accepted by the authenticate and token
// endpoints. HTTP Basic credentials are accepted instead.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ProfileResponse is the response body for POST /api/v1/authenticate.
type ProfileResponse struct {
	PrincipalID string            `json:"principal_id"`
	Attributes  map[string]string `json:"attributes"`
}

// TokenResponse is the response body for POST /api/v1/token.
type TokenResponse struct {
	auth.Token
	Profile ProfileResponse `json:"profile"`
}

// ClaimsResponse is the response body for GET /api/v1/me.
type ClaimsResponse struct {
	PrincipalID string            `json:"principal_id"`
	Username    string            `json:"username"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	TokenID     string            `json:"token_id"`
	IssuedAt    time.Time         `json:"issued_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// Authenticate handles POST /api/v1/authenticate.
// Returns the principal and its attributes, or 401 if the credentials could
// not be verified for any reason.
func (h *AuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	username, profile, ok := h.verify(w, r)
	if !ok {
		return
	}

	logger.InfoCtx(r.Context(), "Credentials verified",
		logger.KeyIdentity, username,
		logger.KeyPrincipal, profile.PrincipalID,
	)
	WriteJSONOK(w, profileToResponse(profile))
}

// Token handles POST /api/v1/token.
// Verifies the credentials and returns a signed JWT for the principal.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if h.jwtService == nil {
		NotFound(w, "Token issuance is not configured")
		return
	}

	username, profile, ok := h.verify(w, r)
	if !ok {
		return
	}

	token, err := h.jwtService.GenerateToken(username, profile)
	if err != nil {
		logger.ErrorCtx(r.Context(), "Failed to sign token", logger.KeyError, err.Error())
		InternalServerError(w, "Failed to generate token")
		return
	}

	logger.InfoCtx(r.Context(), "Token issued",
		logger.KeyIdentity, username,
		logger.KeyPrincipal, profile.PrincipalID,
	)
	WriteJSONOK(w, TokenResponse{
		Token:   *token,
		Profile: profileToResponse(profile),
	})
}

// Me handles GET /api/v1/me.
// Returns the claims of the Bearer token validated by middleware.JWTAuth.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		Unauthorized(w, "Authentication required")
		return
	}

	resp := ClaimsResponse{
		PrincipalID: claims.PrincipalID(),
		Username:    claims.Username,
		Attributes:  claims.Attributes,
		TokenID:     claims.ID,
	}
	if claims.IssuedAt != nil {
		resp.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	WriteJSONOK(w, resp)
}

// verify reads the credentials and authenticates them. On failure the
// response has been written and ok is false.
func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request) (string, *authprovider.Profile, bool) {
	creds, ok := readCredentials(w, r)
	if !ok {
		return "", nil, false
	}

	ctx := r.Context()
	if lc := logger.FromContext(ctx); lc != nil {
		ctx = logger.WithContext(ctx, lc.WithIdentity(creds.Username))
	}

	if creds.Username == "" || creds.Password == "" {
		unauthorized(w, "Username and password are required")
		return "", nil, false
	}

	profile, ok := h.authenticator.Authenticate(ctx, creds.Username, creds.Password)
	if !ok {
		logger.InfoCtx(ctx, "Credentials not verified", logger.KeyIdentity, creds.Username)
		unauthorized(w, "Invalid username or password")
		return "", nil, false
	}

	return creds.Username, profile, true
}

// readCredentials takes HTTP Basic credentials when present, otherwise a
// JSON body.
func readCredentials(w http.ResponseWriter, r *http.Request) (CredentialsRequest, bool) {
	if username, password, ok := r.BasicAuth(); ok {
		return CredentialsRequest{Username: username, Password: password}, true
	}

	var req CredentialsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCredentialsBody))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			unauthorized(w, "Credentials are required")
			return req, false
		}
		BadRequest(w, "Invalid request body")
		return req, false
	}
	return req, true
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", basicRealm)
	Unauthorized(w, detail)
}

func profileToResponse(p *authprovider.Profile) ProfileResponse {
	attrs := p.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	return ProfileResponse{
		PrincipalID: p.PrincipalID,
		Attributes:  attrs,
	}
}
