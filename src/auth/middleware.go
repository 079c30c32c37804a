package auth

import (
	"context"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/mcosolutions20/historical-stocks/src/model"
)

type userLoader interface {
	FindByID(ctx context.Context, userID uint) (*model.User, error)
}

// Middleware resolves the bearer token and stores the authenticated user
// in the request context under UserKey. Requests without a valid token
// are rejected with 401.
func Middleware(cfg Config, users userLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := ParseToken(cfg, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				logger.WithError(err).Debug("rejected bearer token")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := users.FindByID(r.Context(), claims.UserID)
			if err != nil || user == nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserKey, user)))
		})
	}
}
