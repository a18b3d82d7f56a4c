package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const hostCookieName = "host_session"

// HostAuth guards the judge surface with a shared passcode. The
// passcode itself is only held as a bcrypt hash; a successful login
// mints an in-memory session cookie. Sessions do not survive a restart,
// which is fine: the judge stands next to the server.
type HostAuth struct {
	hash []byte

	mu       sync.Mutex
	sessions map[string]bool
}

func NewHostAuth(passcode string) (*HostAuth, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing host passcode: %w", err)
	}
	return &HostAuth{
		hash:     hash,
		sessions: make(map[string]bool),
	}, nil
}

type HostLoginRequest struct {
	Passcode string `json:"passcode"`
}

func (a *HostAuth) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HostLoginRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := bcrypt.CompareHashAndPassword(a.hash, []byte(req.Passcode)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid passcode")
			return
		}

		sessionID := uuid.NewString()
		a.mu.Lock()
		a.sessions[sessionID] = true
		a.mu.Unlock()

		http.SetCookie(w, &http.Cookie{
			Name:     hostCookieName,
			Value:    sessionID,
			Path:     "/",
			MaxAge:   int(12 * time.Hour / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Authenticated reports whether the request carries a valid host session.
func (a *HostAuth) Authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(hostCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[cookie.Value]
}

// Middleware rejects requests without a valid host session.
func (a *HostAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Authenticated(r) {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}
