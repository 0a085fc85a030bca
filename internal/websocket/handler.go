package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skillswap/exchange-api/internal/apperrors"
	"github.com/skillswap/exchange-api/internal/middleware"
	"github.com/skillswap/exchange-api/internal/utils"
)

// TokenValidator resolves a bearer token to an actor id.
type TokenValidator interface {
	ExtractUserID(token string) (string, error)
}

var _ TokenValidator = (*utils.JWTService)(nil)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler authenticates the handshake and upgrades it. The token comes
// from ?token= or the Authorization header; without a valid one the
// request is refused with 401 before any upgrade.
func (m *Manager) Handler(tokens TokenValidator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token, _ = middleware.BearerToken(r.Header.Get("Authorization"))
		}
		if token == "" {
			writeAuthError(w, "Missing token")
			return
		}
		userID, err := tokens.ExtractUserID(token)
		if err != nil {
			writeAuthError(w, "Invalid or expired token")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			m.log.Warn("websocket upgrade failed", "actor_id", userID, "error", err)
			return
		}
		NewClient(userID, conn, m).Start()
	})
}

// NewServer serves the gateway at /ws on addr.
func NewServer(addr string, m *Manager, tokens TokenValidator) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/ws", m.Handler(tokens))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  apperrors.Code(apperrors.ErrAuthRequired),
	})
}
