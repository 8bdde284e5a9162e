package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/landviz/collab-api/config"
)

// ticketTTL bounds how long a minted join ticket stays redeemable
const ticketTTL = time.Hour

// Ticket mints signed join tickets for the websocket relay. Browsers cannot
// set headers on websocket dials, so the relay validates this ticket from the
// query string instead of reusing the REST bearer token.
type Ticket struct {
	JWTSecret []byte
}

type ticketRequest struct {
	UserName string `json:"userName"`
}

type ticketResponse struct {
	Ticket    string `json:"ticket"`
	UserID    string `json:"userId"`
	ExpiresAt int64  `json:"expiresAt"`
}

// CreateTicketHandler mints a short-lived HS256 ticket for one join
func (t Ticket) CreateTicketHandler(w http.ResponseWriter, r *http.Request) {
	var req ticketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.UserName == "" {
		config.ErrorStatus("userName is required", http.StatusBadRequest, w, fmt.Errorf("missing userName"))
		return
	}

	userID := uuid.New().String()
	expiresAt := time.Now().Add(ticketTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"name": req.UserName,
		"iat":  time.Now().Unix(),
		"exp":  expiresAt.Unix(),
	})
	signed, err := token.SignedString(t.JWTSecret)
	if err != nil {
		config.ErrorStatus("failed to sign ticket", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Debugw("minted join ticket", "userId", userID, "userName", req.UserName)

	b, err := json.Marshal(ticketResponse{
		Ticket:    signed,
		UserID:    userID,
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}
