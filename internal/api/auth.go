package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// UserIDHeader carries the principal resolved by the authentication gateway.
const UserIDHeader = "X-User-ID"

type userKey struct{}

// WithUserID stores the requesting user in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserIDFrom returns the requesting user, or "" outside RequireUser.
func UserIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// RequireUser rejects requests without a principal. User ids are uuids in every
// backend, so anything else is refused as well.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if _, err := uuid.Parse(userID); err != nil {
			writeMessage(w, http.StatusUnauthorized, "Authentication required.")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}
