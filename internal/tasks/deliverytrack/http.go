// internal/tasks/deliverytrack/http.go
package deliverytrack

import (
	"encoding/json"
	"net/http"
	"strings"

	"nudge-engine/internal/common/logger"
	"nudge-engine/internal/models"
)

// Handler exposes the delivery webhook and unsubscribe endpoints.
type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// Register mounts the tracker routes on the shared mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/webhooks/delivery", h.handleDelivery)
	mux.HandleFunc("/unsubscribe/", h.handleUnsubscribe)
	mux.HandleFunc("/healthz", h.handleHealth)
}

func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ev models.DeliveryEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if err := h.service.HandleEvent(r.Context(), ev); err != nil {
		h.logger.WithError(err).Error("delivery event processing failed", map[string]interface{}{
			"type":                ev.Type,
			"provider_message_id": ev.ProviderMessageID,
		})
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := strings.TrimPrefix(r.URL.Path, "/unsubscribe/")
	if token == "" || strings.Contains(token, "/") {
		http.NotFound(w, r)
		return
	}

	ok, err := h.service.Unsubscribe(r.Context(), token)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "unknown or expired link", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("<html><body><p>You have been unsubscribed from milestone notifications.</p></body></html>"))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}
