package admin

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// contextKey is a private type for context keys in the admin package.
type contextKey string

const adminUserKey contextKey = "admin_user"

// basicRealm is the challenge realm sent with 401 responses so browsers
// re-prompt for credentials.
const basicRealm = `Basic realm="Admin"`

// User holds information about the authenticated admin user.
type User struct {
	Username string
}

// GetUser returns the User from context, or nil if not set.
func GetUser(ctx context.Context) *User {
	u, _ := ctx.Value(adminUserKey).(*User)
	return u
}

// Authenticator validates admin credentials. A nil user with a nil error
// means the request carried no valid credential.
type Authenticator interface {
	Authenticate(r *http.Request) (*User, error)
}

// BasicAuthenticator validates HTTP Basic credentials against the single
// configured admin credential. The password may be a bcrypt hash or a plain
// value; plain comparison is constant-time so string lookup against
// attacker-controlled input leaks no timing signal.
type BasicAuthenticator struct {
	Username string
	Password string
}

// Authenticate checks the Authorization header for the admin credential.
func (a *BasicAuthenticator) Authenticate(r *http.Request) (*User, error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return nil, nil //nolint:nilnil // nil user with nil error means no credentials provided
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.Username)) == 1
	if !verifyPassword(a.Password, pass) || !userOK {
		return nil, nil //nolint:nilnil // nil user with nil error means invalid credentials
	}
	return &User{Username: user}, nil
}

// verifyPassword compares the presented password against the configured
// value, which may be a bcrypt hash.
func verifyPassword(configured, presented string) bool {
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

// RequireAdmin creates middleware that enforces admin authentication.
// Missing or invalid credentials produce 401 with a WWW-Authenticate
// challenge, so browsers show the Basic Auth prompt again.
func RequireAdmin(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.Authenticate(r)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "authentication error")
				return
			}
			if user == nil {
				w.Header().Set("WWW-Authenticate", basicRealm)
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), adminUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
