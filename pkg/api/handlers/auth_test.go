package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ldapauth/pkg/api/auth"
	"github.com/marmos91/ldapauth/pkg/api/middleware"
)

func newTestJWTService(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(auth.JWTConfig{
		Secret:        "test-secret-key-that-is-at-least-32-characters-long",
		Issuer:        "test",
		TokenDuration: time.Minute,
	})
	require.NoError(t, err)
	return svc
}

func jsonRequest(t *testing.T, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) Problem {
	t.Helper()
	assert.Equal(t, ContentTypeProblemJSON, w.Header().Get("Content-Type"))
	var p Problem
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	return p
}

func TestAuthenticate_JSON(t *testing.T) {
	provider := newMockProvider()
	handler := NewAuthHandler(provider, nil)
	w := httptest.NewRecorder()

	handler.Authenticate(w, jsonRequest(t, "/api/v1/authenticate", CredentialsRequest{
		Username: "professor",
		Password: "professor",
	}))

	require.Equal(t, http.StatusOK, w.Code)

	var resp ProfileResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "cn=Hubert J. Farnsworth,ou=people,dc=planetexpress,dc=com", resp.PrincipalID)
	assert.Equal(t, "professor@planetexpress.com", resp.Attributes["mail"])
	assert.Equal(t, 1, provider.callCount())
}

func TestAuthenticate_Basic(t *testing.T) {
	handler := NewAuthHandler(newMockProvider(), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/authenticate", nil)
	req.SetBasicAuth("fry", "fry")
	w := httptest.NewRecorder()

	handler.Authenticate(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ProfileResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "cn=Philip J. Fry,ou=people,dc=planetexpress,dc=com", resp.PrincipalID)
}

func TestAuthenticate_Failures(t *testing.T) {
	tests := []struct {
		name       string
		request    func() *http.Request
		wantStatus int
		wantCalls  int
	}{
		{
			name: "wrong password",
			request: func() *http.Request {
				return jsonRequest(t, "/", CredentialsRequest{Username: "professor", Password: "fry"})
			},
			wantStatus: http.StatusUnauthorized,
			wantCalls:  1,
		},
		{
			name: "unknown user",
			request: func() *http.Request {
				return jsonRequest(t, "/", CredentialsRequest{Username: "zapp", Password: "kif"})
			},
			wantStatus: http.StatusUnauthorized,
			wantCalls:  1,
		},
		{
			name: "empty password",
			request: func() *http.Request {
				return jsonRequest(t, "/", CredentialsRequest{Username: "professor"})
			},
			wantStatus: http.StatusUnauthorized,
			wantCalls:  0,
		},
		{
			name: "empty body",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/", nil)
			},
			wantStatus: http.StatusUnauthorized,
			wantCalls:  0,
		},
		{
			name: "malformed body",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
			},
			wantStatus: http.StatusBadRequest,
			wantCalls:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newMockProvider()
			handler := NewAuthHandler(provider, nil)
			w := httptest.NewRecorder()

			handler.Authenticate(w, tt.request())

			assert.Equal(t, tt.wantStatus, w.Code)
			p := decodeProblem(t, w)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, tt.wantCalls, provider.callCount())
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
			}
		})
	}
}

func TestAuthenticate_SameResponseForAllRejections(t *testing.T) {
	handler := NewAuthHandler(newMockProvider(), nil)

	wrongPassword := httptest.NewRecorder()
	handler.Authenticate(wrongPassword, jsonRequest(t, "/", CredentialsRequest{Username: "professor", Password: "x"}))

	unknownUser := httptest.NewRecorder()
	handler.Authenticate(unknownUser, jsonRequest(t, "/", CredentialsRequest{Username: "nobody", Password: "x"}))

	assert.Equal(t, wrongPassword.Code, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestToken_Disabled(t *testing.T) {
	provider := newMockProvider()
	handler := NewAuthHandler(provider, nil)
	w := httptest.NewRecorder()

	handler.Token(w, jsonRequest(t, "/api/v1/token", CredentialsRequest{Username: "fry", Password: "fry"}))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 0, provider.callCount())
}

func TestToken_IssuesValidToken(t *testing.T) {
	svc := newTestJWTService(t)
	handler := NewAuthHandler(newMockProvider(), svc)
	w := httptest.NewRecorder()

	handler.Token(w, jsonRequest(t, "/api/v1/token", CredentialsRequest{Username: "professor", Password: "professor"}))

	require.Equal(t, http.StatusOK, w.Code)

	var resp TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(60), resp.ExpiresIn)
	assert.Equal(t, "cn=Hubert J. Farnsworth,ou=people,dc=planetexpress,dc=com", resp.Profile.PrincipalID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "professor", claims.Username)
	assert.Equal(t, resp.Profile.PrincipalID, claims.Subject)
}

func TestToken_BadCredentials(t *testing.T) {
	handler := NewAuthHandler(newMockProvider(), newTestJWTService(t))
	w := httptest.NewRecorder()

	handler.Token(w, jsonRequest(t, "/api/v1/token", CredentialsRequest{Username: "professor", Password: "wrong"}))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "access_token")
}

func TestMe(t *testing.T) {
	svc := newTestJWTService(t)
	provider := newMockProvider()
	handler := NewAuthHandler(provider, svc)

	token, err := svc.GenerateToken("fry", provider.profiles["fry"])
	require.NoError(t, err)
	claims, err := svc.ValidateToken(token.AccessToken)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	w := httptest.NewRecorder()

	handler.Me(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ClaimsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "fry", resp.Username)
	assert.Equal(t, "cn=Philip J. Fry,ou=people,dc=planetexpress,dc=com", resp.PrincipalID)
	assert.Equal(t, "Philip J. Fry", resp.Attributes["cn"])
	assert.NotEmpty(t, resp.TokenID)
	assert.WithinDuration(t, time.Now().Add(time.Minute), resp.ExpiresAt, 5*time.Second)
}

func TestMe_NoClaims(t *testing.T) {
	handler := NewAuthHandler(newMockProvider(), newTestJWTService(t))
	w := httptest.NewRecorder()

	handler.Me(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
