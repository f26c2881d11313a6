package main

import (
	"log"
	"net/http"

	httphandlers "bancora/internal/interfaces/http"
	"bancora/internal/shared/config"
	"bancora/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Link flow
	mux.HandleFunc("/api/link/token", deps.LinkHandler.HandleCreateLinkToken)
	mux.HandleFunc("/api/link/exchange", deps.LinkHandler.HandleExchange)

	// Connected items
	mux.HandleFunc("/api/items/", deps.ItemHandler.HandleListItems)
	mux.HandleFunc("/api/items/{id}", deps.ItemHandler.HandleItemByID)

	// Provider webhook receiver
	mux.HandleFunc("/api/webhooks/bank", deps.WebhookHandler.HandleBankWebhook)

	// Apply global middleware
	handler := middleware.Logging(middleware.CORS(cfg.Server.AllowedHosts)(mux))

	// Request tracing is a no-op until a tracer provider is installed
	if cfg.Telemetry.Enabled {
		handler = middleware.Telemetry(handler)
	}

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(middleware.SecureCookies(handler))
		log.Println("TLS security middleware enabled (HSTS + SecureCookies)")
	}

	return handler
}
