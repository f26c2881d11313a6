package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"bancora/internal/domain/link"
)

// LinkHandler exposes the bank-connection flow over HTTP
type LinkHandler struct {
	linkService *link.Service
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(linkService *link.Service) *LinkHandler {
	return &LinkHandler{linkService: linkService}
}

// HTTP request/response types (transport layer concerns)
type ExchangeRequest struct {
	PublicToken     string `json:"publicToken"`
	InstitutionID   string `json:"institutionId"`
	InstitutionName string `json:"institutionName"`
}

type LinkTokenResponse struct {
	LinkToken  string `json:"linkToken"`
	Expiration string `json:"expiration,omitempty"`
}

// HandleCreateLinkToken issues a provider link token for the caller
func (h *LinkHandler) HandleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token, err := h.linkService.CreateLinkToken(r.Context(), requestMeta(r))
	if err != nil {
		writeLinkError(w, err)
		return
	}

	resp := LinkTokenResponse{LinkToken: token.Token}
	if token.Expiration != nil {
		resp.Expiration = token.Expiration.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleExchange swaps the public token for a persisted connection
func (h *LinkHandler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PublicToken == "" {
		http.Error(w, "publicToken is required", http.StatusBadRequest)
		return
	}

	it, err := h.linkService.ExchangePublicToken(r.Context(), requestMeta(r), req.PublicToken, req.InstitutionID, req.InstitutionName)
	if err != nil {
		writeLinkError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(it)
}

// requestMeta extracts the caller's credential and attribution. The token
// query parameter covers popup-window flows that cannot carry the
// Authorization header; the service substitutes it as the bearer credential.
func requestMeta(r *http.Request) link.RequestMeta {
	return link.RequestMeta{
		Authorization: r.Header.Get("Authorization"),
		OverrideToken: r.URL.Query().Get("token"),
		IPAddress:     clientIP(r),
		UserAgent:     r.UserAgent(),
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeLinkError maps flow results to status codes. Provider internals stay
// in the logs; callers get sanitized, actionable messages.
func writeLinkError(w http.ResponseWriter, err error) {
	var throttled *link.ThrottledError
	var quota *link.QuotaExceededError
	var linkErr *link.LinkTokenError
	var exchErr *link.ExchangeError

	switch {
	case errors.Is(err, link.ErrUnauthenticated):
		http.Error(w, "Authentication required", http.StatusUnauthorized)
	case errors.Is(err, link.ErrSubscriptionRequired):
		http.Error(w, "Active subscription required", http.StatusPaymentRequired)
	case errors.As(err, &quota):
		http.Error(w, quota.Error(), http.StatusForbidden)
	case errors.As(err, &throttled):
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(throttled.RetryAfter.Seconds())))
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
	case errors.Is(err, link.ErrAlreadyConnected):
		http.Error(w, "Bank account already connected", http.StatusConflict)
	case errors.As(err, &linkErr), errors.As(err, &exchErr):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		log.Printf("Link flow error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
