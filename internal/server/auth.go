package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

const (
	tokenCookieName = "ps_token"
	tokenCookieTTL  = 24 * time.Hour
)

// authMiddleware accepts the token as a Bearer header, a query param or a
// cookie. A valid query token is exchanged for a cookie and the request is
// redirected to the same URL without it.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, source := requestToken(r)
		if !s.validToken(token) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if source == "query" {
			s.setTokenCookie(w)
			http.Redirect(w, r, withoutToken(r), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestToken returns the presented token and where it came from. A Bearer
// header wins over a query param, which wins over the cookie.
func requestToken(r *http.Request) (token, source string) {
	if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return bearer, "header"
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q, "query"
	}
	if c, err := r.Cookie(tokenCookieName); err == nil {
		return c.Value, "cookie"
	}
	return "", ""
}

func (s *Server) setTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    s.token,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(tokenCookieTTL / time.Second),
		SameSite: http.SameSiteLaxMode,
	})
}

func withoutToken(r *http.Request) string {
	u := *r.URL
	q := u.Query()
	q.Del("token")
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Server) validToken(token string) bool {
	if token == "" || s.token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) == 1
}
