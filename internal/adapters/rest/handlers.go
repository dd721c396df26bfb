package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/apesoftware1/Memorial-sub001/internal/constants"
	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port/usecases_port"
	"github.com/apesoftware1/Memorial-sub001/internal/core/usecase"
)

const maxRequestBody = 64 << 10

// FavoritesHandler serves the favorites of the tab named by the request headers.
type FavoritesHandler struct {
	sessions  usecases_port.TabSessionsPort
	catalogue port.CataloguePort // optional
	notFound  error

	tabCount func() int

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

type HandlerOption func(*FavoritesHandler)

// WithCatalogue enables filling display fields of id-only add requests.
// notFound is the error the client returns for unknown listings.
func WithCatalogue(catalogue port.CataloguePort, notFound error) HandlerOption {
	return func(h *FavoritesHandler) {
		h.catalogue = catalogue
		h.notFound = notFound
	}
}

// WithTabCount reports the number of open tabs on /healthz.
func WithTabCount(count func() int) HandlerOption {
	return func(h *FavoritesHandler) {
		h.tabCount = count
	}
}

func NewFavoritesHandler(sessions usecases_port.TabSessionsPort, opts ...HandlerOption) *FavoritesHandler {
	h := &FavoritesHandler{
		sessions: sessions,
		shutdown: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Shutdown ends every open event stream.
func (h *FavoritesHandler) Shutdown() {
	h.shutdownOnce.Do(func() { close(h.shutdown) })
}

// openStore resolves the tab of the request; on failure the response is
// already written.
func (h *FavoritesHandler) openStore(w http.ResponseWriter, r *http.Request, handler string) (usecases_port.FavoritesStorePort, port.LoggerPort, bool) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": handler})

	tab, ok := tabFromContext(r.Context())
	if !ok {
		logger.Error("Tab identity missing in context", nil, nil)
		WriteJSONError(w, http.StatusBadRequest, "Tab identity missing")
		return nil, logger, false
	}
	logger = logger.WithFields(port.Fields{"origin": tab.Origin, "tab_id": tab.TabID})

	store, err := h.sessions.Open(r.Context(), tab.Origin, tab.TabID)
	if err != nil {
		logger.Error("Failed to open tab session", err, nil)
		WriteJSONError(w, http.StatusServiceUnavailable, "Favorites are not available")
		return nil, logger, false
	}
	return store, logger, true
}

func parseSort(r *http.Request) (sorted, ascending bool, ok bool) {
	switch r.URL.Query().Get("sort") {
	case "":
		return false, false, true
	case "asc":
		return true, true, true
	case "desc":
		return true, false, true
	default:
		return false, false, false
	}
}

// GetFavorites handles GET /api/v1/favorites
func (h *FavoritesHandler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	store, logger, ok := h.openStore(w, r, "GetFavorites")
	if !ok {
		return
	}

	sorted, ascending, ok := parseSort(r)
	if !ok {
		WriteJSONError(w, http.StatusBadRequest, "sort must be asc or desc")
		return
	}

	state := store.State()
	if sorted {
		state.Favorites = store.GetSortedFavorites(ascending)
	}

	logger.Debug("Returning favorites", port.Fields{"total": state.TotalFavorites})
	RespondWithETag(w, r, state)
}

// GetFavoritesPage handles GET /api/v1/favorites/page
func (h *FavoritesHandler) GetFavoritesPage(w http.ResponseWriter, r *http.Request) {
	store, logger, ok := h.openStore(w, r, "GetFavoritesPage")
	if !ok {
		return
	}

	sorted, ascending, ok := parseSort(r)
	if !ok {
		WriteJSONError(w, http.StatusBadRequest, "sort must be asc or desc")
		return
	}

	// unparsable values fall back to the defaults of the paginator
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	var result domain.PaginatedFavorites
	if sorted {
		result = usecase.Paginate(store.GetSortedFavorites(ascending), page, limit, constants.DefaultPageSize)
	} else {
		result = store.GetPaginatedFavorites(page, limit)
	}

	logger.Debug("Returning favorites page", port.Fields{"page": result.CurrentPage, "items": len(result.Items)})
	RespondWithJSON(w, http.StatusOK, result)
}

// GetFavoriteStatus handles GET /api/v1/favorites/{favoriteID}/status
func (h *FavoritesHandler) GetFavoriteStatus(w http.ResponseWriter, r *http.Request) {
	store, _, ok := h.openStore(w, r, "GetFavoriteStatus")
	if !ok {
		return
	}
	id := chi.URLParam(r, "favoriteID")
	RespondWithJSON(w, http.StatusOK, StatusResponse{ID: id, IsFavorite: store.IsFavorite(id)})
}

// AddFavorite handles POST /api/v1/favorites
func (h *FavoritesHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	store, logger, ok := h.openStore(w, r, "AddFavorite")
	if !ok {
		return
	}

	var item domain.FavoriteItem
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&item); err != nil {
		logger.Warn("Failed to decode request body for add favorite", port.Fields{"error": err.Error()})
		WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if item.ID == "" {
		WriteJSONError(w, http.StatusBadRequest, "id is required")
		return
	}
	logger = logger.WithFields(port.Fields{"favorite_id": item.ID})

	if h.catalogue != nil && isBare(item) && !store.IsFavorite(item.ID) {
		listing, err := h.catalogue.GetListingByID(r.Context(), item.ID)
		switch {
		case err == nil:
			item = *listing
		case h.notFound != nil && errors.Is(err, h.notFound):
			WriteJSONError(w, http.StatusNotFound, "Listing not found")
			return
		default:
			// placeholders cover the missing display fields
			logger.Warn("Catalogue lookup failed, adding bare favorite", port.Fields{"error": err.Error()})
		}
	}

	if store.AddFavorite(r.Context(), item) {
		logger.Info("Favorite added", nil)
		RespondWithJSON(w, http.StatusCreated, store.State())
		return
	}
	logger.Debug("Favorite already present", nil)
	RespondWithJSON(w, http.StatusOK, store.State())
}

func isBare(item domain.FavoriteItem) bool {
	return item.Title == "" && item.Name == "" && item.Image == "" && item.Price == 0 && len(item.Extra) == 0
}

// RemoveFavorite handles DELETE /api/v1/favorites/{favoriteID}
func (h *FavoritesHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	store, logger, ok := h.openStore(w, r, "RemoveFavorite")
	if !ok {
		return
	}
	id := chi.URLParam(r, "favoriteID")
	store.RemoveFavorite(r.Context(), id)
	logger.Info("Favorite removed", port.Fields{"favorite_id": id})
	w.WriteHeader(http.StatusNoContent)
}

// ClearFavorites handles DELETE /api/v1/favorites
func (h *FavoritesHandler) ClearFavorites(w http.ResponseWriter, r *http.Request) {
	store, logger, ok := h.openStore(w, r, "ClearFavorites")
	if !ok {
		return
	}
	store.ClearAllFavorites(r.Context())
	logger.Info("Favorites cleared", nil)
	w.WriteHeader(http.StatusNoContent)
}

// RefreshCache handles POST /api/v1/favorites/cache/refresh
func (h *FavoritesHandler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	store, _, ok := h.openStore(w, r, "RefreshCache")
	if !ok {
		return
	}
	store.RefreshCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// GetStorageInfo handles GET /api/v1/favorites/storage-info
func (h *FavoritesHandler) GetStorageInfo(w http.ResponseWriter, r *http.Request) {
	store, _, ok := h.openStore(w, r, "GetStorageInfo")
	if !ok {
		return
	}
	RespondWithJSON(w, http.StatusOK, store.GetStorageInfo(r.Context()))
}

// CloseTab handles DELETE /api/v1/tabs/current
func (h *FavoritesHandler) CloseTab(w http.ResponseWriter, r *http.Request) {
	logger := contextkeys.LoggerFromContext(r.Context()).WithFields(port.Fields{"handler": "CloseTab"})
	tab, ok := tabFromContext(r.Context())
	if !ok {
		WriteJSONError(w, http.StatusBadRequest, "Tab identity missing")
		return
	}
	if !h.sessions.Close(tab.Origin, tab.TabID) {
		WriteJSONError(w, http.StatusNotFound, "Tab is not open")
		return
	}
	logger.Info("Tab closed", port.Fields{"origin": tab.Origin, "tab_id": tab.TabID})
	w.WriteHeader(http.StatusNoContent)
}

// Health handles GET /healthz
func (h *FavoritesHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if h.tabCount != nil {
		resp.Tabs = h.tabCount()
	}
	RespondWithJSON(w, http.StatusOK, resp)
}
