package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "authn-test-secret"

func issueAndServe(t *testing.T, token string) (*AuthUser, int) {
	t.Helper()

	tokenAuth := jwtauth.New("HS256", []byte(testSecret), nil)

	var got *AuthUser
	handler := jwtauth.Verifier(tokenAuth)(Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return got, rec.Code
}

func TestMiddleware_ExtractsAuthUser(t *testing.T) {
	loginID := uuid.New()
	issuer := NewTokenIssuer(testSecret, "test-iss", "test-aud", time.Hour)

	token, err := issuer.IssueSessionToken(loginID, "dev-1")
	require.NoError(t, err)

	user, code := issueAndServe(t, token)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, user)

	assert.Equal(t, loginID, user.LoginID)
	assert.Equal(t, loginID.String(), user.LoginId)
	assert.Equal(t, "dev-1", user.DeviceId)
	assert.NotEmpty(t, user.JTI)
}

func TestMiddleware_RejectsMissingToken(t *testing.T) {
	user, code := issueAndServe(t, "")
	assert.Nil(t, user)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestMiddleware_RejectsTokenWithoutDeviceClaim(t *testing.T) {
	tokenAuth := jwtauth.New("HS256", []byte(testSecret), nil)
	_, token, err := tokenAuth.Encode(map[string]interface{}{
		ClaimLoginID: uuid.New().String(),
	})
	require.NoError(t, err)

	user, code := issueAndServe(t, token)
	assert.Nil(t, user)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestMiddleware_RejectsMalformedLoginID(t *testing.T) {
	tokenAuth := jwtauth.New("HS256", []byte(testSecret), nil)
	_, token, err := tokenAuth.Encode(map[string]interface{}{
		ClaimLoginID:  "not-a-uuid",
		ClaimDeviceID: "dev-1",
	})
	require.NoError(t, err)

	user, code := issueAndServe(t, token)
	assert.Nil(t, user)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, FromContext(req.Context()))
}
