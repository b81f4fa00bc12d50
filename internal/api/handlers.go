package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// API holds the dependencies for the stateless HTTP handlers.
type API struct {
	subscriptions  SubscriptionStore
	vapidPublicKey string
	logger         zerolog.Logger
}

// NewAPI creates a new, stateless API handler.
func NewAPI(subscriptions SubscriptionStore, vapidPublicKey string, logger zerolog.Logger) *API {
	return &API{
		subscriptions:  subscriptions,
		vapidPublicKey: vapidPublicKey,
		logger:         logger.With().Str("component", "API").Logger(),
	}
}

// RegisterRoutes mounts the API handlers on the given mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/save_push_subscription/", a.SaveSubscriptionHandler)
	mux.HandleFunc("GET /api/get_vapid_public_key/", a.VapidPublicKeyHandler)
}

// saveSubscriptionRequest mirrors the browser PushSubscription JSON shape
// sent by clients, plus the identity it belongs to.
type saveSubscriptionRequest struct {
	UserID       string `json:"user_id"`
	Subscription struct {
		Endpoint string `json:"endpoint"`
		Keys     struct {
			P256DH string `json:"p256dh"`
			Auth   string `json:"auth"`
		} `json:"keys"`
	} `json:"subscription"`
}

// SaveSubscriptionHandler upserts a push subscription keyed by its endpoint.
func (a *API) SaveSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to read request body")
		WriteJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req saveSubscriptionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to unmarshal subscription request")
		WriteJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Subscription.Endpoint == "" {
		WriteJSONError(w, http.StatusBadRequest, "missing subscription data or user_id")
		return
	}

	sub := &PushSubscription{
		UserID:    req.UserID,
		Endpoint:  req.Subscription.Endpoint,
		P256DH:    req.Subscription.Keys.P256DH,
		Auth:      req.Subscription.Keys.Auth,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.subscriptions.Save(r.Context(), sub); err != nil {
		a.logger.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to save push subscription")
		WriteJSONError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VapidPublicKeyHandler returns the public key clients need to create a
// push subscription.
func (a *API) VapidPublicKeyHandler(w http.ResponseWriter, _ *http.Request) {
	if a.vapidPublicKey == "" {
		WriteJSONError(w, http.StatusNotFound, "push notifications are not configured")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"publicKey": a.vapidPublicKey})
}
