package authn

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
)

// AuthUser is the authenticated principal extracted from the bearer token.
// DeviceID identifies the device the session was bound to at login time; it
// is how the registry decides which listed record is the current device.
type AuthUser struct {
	LoginId  string `json:"login_id,omitempty"`
	DeviceId string `json:"device_id,omitempty"`
	JTI      string `json:"jti,omitempty"`
	// LoginID as UUID for direct use (parsed from LoginId string)
	LoginID uuid.UUID
}

func (u AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("login", u.LoginId),
		slog.String("device", u.DeviceId),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "authn context value " + k.name
}

var (
	AuthUserKey = &contextKey{"AuthUser"}
)

// Claim names carried in the session token.
const (
	ClaimLoginID  = "login_id"
	ClaimDeviceID = "device_id"
)

// Middleware extracts the AuthUser from the verified JWT claims and stores it
// on the request context. It must run after jwtauth.Verifier/Authenticator.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			http.Error(w, fmt.Sprintf("missing or invalid JWT: %v", err), http.StatusUnauthorized)
			return
		}

		authUser := &AuthUser{}
		if v, ok := claims[ClaimLoginID].(string); ok {
			authUser.LoginId = v
		}
		if v, ok := claims[ClaimDeviceID].(string); ok {
			authUser.DeviceId = v
		}
		if v, ok := claims["jti"].(string); ok {
			authUser.JTI = v
		}

		if authUser.LoginId == "" {
			http.Error(w, "missing login ID in token", http.StatusUnauthorized)
			return
		}

		loginUUID, err := uuid.Parse(authUser.LoginId)
		if err != nil {
			slog.Warn("failed to parse login ID as UUID", "loginId", authUser.LoginId, "error", err)
			http.Error(w, "invalid login ID in token", http.StatusUnauthorized)
			return
		}
		authUser.LoginID = loginUUID

		if authUser.DeviceId == "" {
			http.Error(w, "missing device ID in token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(withAuthUser(r.Context(), authUser)))
	})
}

func withAuthUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, AuthUserKey, user)
}

// FromContext returns the AuthUser stored by Middleware, or nil.
func FromContext(ctx context.Context) *AuthUser {
	user, _ := ctx.Value(AuthUserKey).(*AuthUser)
	return user
}
