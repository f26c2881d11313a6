package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"bancora/internal/domain/item"
	"bancora/internal/domain/session"
)

// ItemHandler exposes a user's bank connections over HTTP
type ItemHandler struct {
	itemService *item.Service
	validator   *session.Validator
}

// NewItemHandler creates a new item handler
func NewItemHandler(itemService *item.Service, validator *session.Validator) *ItemHandler {
	return &ItemHandler{itemService: itemService, validator: validator}
}

// HandleListItems returns the authenticated user's connections
func (h *ItemHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity, err := h.validator.Validate(r.Context(), r.Header.Get("Authorization"), r.URL.Query().Get("token"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	activeOnly := r.URL.Query().Get("activeOnly") == "true"
	items, err := h.itemService.ListByUserID(r.Context(), identity.UserID, activeOnly)
	if err != nil {
		log.Printf("Error listing items for user %s: %v", identity.UserID, err)
		http.Error(w, "Failed to list connections", http.StatusInternalServerError)
		return
	}

	if items == nil {
		items = []*item.Item{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

// HandleItemByID handles operations on a specific connection (DELETE)
func (h *ItemHandler) HandleItemByID(w http.ResponseWriter, r *http.Request) {
	identity, err := h.validator.Validate(r.Context(), r.Header.Get("Authorization"), r.URL.Query().Get("token"))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	itemID := r.PathValue("id")
	if itemID == "" {
		http.Error(w, "Item ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		h.handleDisconnect(w, r, identity.UserID, itemID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleDisconnect revokes a connection
func (h *ItemHandler) handleDisconnect(w http.ResponseWriter, r *http.Request, userID, itemID string) {
	err := h.itemService.Disconnect(r.Context(), itemID, userID)
	if err != nil {
		switch {
		case errors.Is(err, item.ErrItemNotFound):
			http.Error(w, "Connection not found", http.StatusNotFound)
		case errors.Is(err, item.ErrForbidden):
			http.Error(w, "Forbidden", http.StatusForbidden)
		default:
			log.Printf("Error disconnecting item %s: %v", itemID, err)
			http.Error(w, "Failed to disconnect", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrUnauthenticated) {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	log.Printf("Session validation error: %v", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
