package relay

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/landviz/collab-api/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated websocket connections and attaches them to
// the hub
type Handler struct {
	Hub       *Hub
	JWTSecret []byte
}

// ServeWS validates the join ticket and hands the connection to the hub.
// Browsers cannot set headers on websocket dials, so the ticket rides in the
// query string.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, userName, err := h.parseTicket(r.URL.Query().Get("ticket"))
	if err != nil {
		config.ErrorStatus("invalid join ticket", http.StatusUnauthorized, w, err)
		return
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		config.ErrorStatus("missing sessionId", http.StatusBadRequest, w, fmt.Errorf("sessionId query parameter is required"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("websocket upgrade failed", "error", err, "identity", identity)
		return
	}

	client := &Client{
		hub:       h.Hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		userName:  userName,
		deviceID:  r.URL.Query().Get("deviceId"),
		sessionID: sessionID,
	}
	h.Hub.register <- client
	go client.writePump()
	client.readPump()
}

// parseTicket verifies the HS256 join ticket and extracts the identity claims
func (h *Handler) parseTicket(ticket string) (identity, userName string, err error) {
	if ticket == "" {
		return "", "", fmt.Errorf("ticket query parameter is required")
	}
	token, err := jwt.Parse(ticket, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return h.JWTSecret, nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid ticket claims")
	}
	identity, _ = claims["sub"].(string)
	userName, _ = claims["name"].(string)
	if identity == "" {
		return "", "", fmt.Errorf("ticket is missing a subject")
	}
	if userName == "" {
		userName = identity
	}
	return identity, userName, nil
}
