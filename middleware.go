package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const agentContextKey contextKey = "agent"

func AgentFromContext(ctx context.Context) *Agent {
	if a, ok := ctx.Value(agentContextKey).(*Agent); ok {
		return a
	}
	return nil
}

// SessionKeyAuth authenticates API requests by bearer session key and puts
// the calling agent on the request context. The heartbeat bump happens out
// of band so a slow write never delays the request.
func SessionKeyAuth(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing or invalid authorization header"}`, http.StatusUnauthorized)
				return
			}
			sessionKey := strings.TrimPrefix(auth, "Bearer ")

			agent, err := GetAgentBySessionKey(r.Context(), db, sessionKey)
			if err != nil {
				http.Error(w, `{"error":"invalid session key"}`, http.StatusUnauthorized)
				return
			}

			go func() {
				db.Exec("UPDATE agents SET last_heartbeat = ? WHERE id = ?", millis(time.Now()), agent.ID)
			}()

			ctx := context.WithValue(r.Context(), agentContextKey, agent)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// checkAdminPassword compares the submitted password against the configured
// one. A configured value starting with "$2" is treated as a bcrypt hash.
func checkAdminPassword(configured, submitted string) bool {
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(submitted)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(submitted)) == 1
}

func AdminAuth(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Allow login page through
			if r.URL.Path == "/admin/login" {
				next.ServeHTTP(w, r)
				return
			}

			cookie, err := r.Cookie("admin_session")
			if err != nil || !validSession(cookie.Value, cfg.SessionSecret) {
				http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func CreateSessionToken(secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("admin-session"))
	return hex.EncodeToString(mac.Sum(nil))
}

func validSession(token, secret string) bool {
	expected := CreateSessionToken(secret)
	return hmac.Equal([]byte(token), []byte(expected))
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
