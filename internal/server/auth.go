package server

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

func (s *Server) ingestPasswordAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pw := r.Header.Get("X-Client-Password")
		if pw == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing X-Client-Password header"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.IngestPasswordHash), []byte(pw)); err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid password"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) adminBasicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(s.adminUser())) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="coresight"`)
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(pass)); err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid password"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) adminUser() string {
	if s.cfg.AdminUser == "" {
		return "admin"
	}
	return s.cfg.AdminUser
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
