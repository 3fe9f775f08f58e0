package middleware

import "net/http"

// AuthCookie is set by the login handler once the password is accepted.
const AuthCookie = "authenticated"

// AuthMiddleware checks that the caller is logged in (cookie 'authenticated=true').
// An empty password disables authentication.
func AuthMiddleware(password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if password == "" || public(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie(AuthCookie)
			if err != nil || cookie.Value != "true" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// public lists paths reachable without logging in: the login endpoint and
// the metrics scrape target.
func public(path string) bool {
	return path == "/auth/login" || path == "/metrics"
}
