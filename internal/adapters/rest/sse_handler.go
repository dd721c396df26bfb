package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
)

var keepAliveInterval = 15 * time.Second

// SubscribeToFavorites handles GET /api/v1/favorites/events: the current
// state first, then one "favorites" event per change of the tab's list.
func (h *FavoritesHandler) SubscribeToFavorites(w http.ResponseWriter, r *http.Request) {
	store, logger, ok := h.openStore(w, r, "SubscribeToFavorites")
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteJSONError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	// an open stream keeps the tab from being evicted as idle
	if tab, ok := tabFromContext(r.Context()); ok {
		release := h.sessions.Hold(tab.Origin, tab.TabID)
		defer release()
	}

	updates, unsubscribe := store.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	logger.Info("New client subscribing to SSE events", nil)

	if err := writeStateEvent(w, store.State()); err != nil {
		logger.Error("Error writing to client, closing SSE connection", err, nil)
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case state, open := <-updates:
			if !open {
				logger.Info("Tab session closed, ending SSE stream", nil)
				return
			}
			if err := writeStateEvent(w, state); err != nil {
				logger.Error("Error writing to client, closing SSE connection", err, nil)
				return
			}
			flusher.Flush()

		case <-ticker.C:
			// comment lines keep proxies from dropping the idle stream
			if _, err := fmt.Fprintf(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-h.shutdown:
			logger.Info("Server shutting down, ending SSE stream", nil)
			return

		case <-r.Context().Done():
			logger.Info("SSE client disconnected.", nil)
			return
		}
	}
}

func writeStateEvent(w http.ResponseWriter, state domain.FavoritesState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: favorites\ndata: %s\n\n", data)
	return err
}
