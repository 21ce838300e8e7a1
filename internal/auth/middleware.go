package auth

import (
	"log/slog"
	"net/http"
	"strings"
)

// Middleware verifies "Authorization: Bearer <token>" and stores the subject
// on the request context. Requests without the header pass through
// unauthenticated; a bad token is rejected with 401.
func Middleware(secret string, onReject func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, tokenStr, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") {
				reject(w, r, onReject)
				return
			}

			userID, err := ParseToken(secret, strings.TrimSpace(tokenStr))
			if err != nil {
				slog.WarnContext(r.Context(), "Rejected bearer token", "error", err, "path", r.URL.Path)
				reject(w, r, onReject)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, onReject func(http.ResponseWriter, *http.Request)) {
	if onReject != nil {
		onReject(w, r)
		return
	}
	http.Error(w, "invalid or expired token", http.StatusUnauthorized)
}
