package rest

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/apesoftware1/Memorial-sub001/internal/constants"
)

type contextKey string

const tabIdentityKey = contextKey("tabIdentity")

const (
	browserIDHeader = "X-Browser-ID"
	tabIDHeader     = "X-Tab-ID"
)

// tabIdentity names one tab of one browser profile.
type tabIdentity struct {
	Origin string
	TabID  string
}

// TabMiddleware reads the browser profile from X-Browser-ID (optional) and
// the tab from X-Tab-ID (a required uuid).
func TabMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get(browserIDHeader)
		if origin == "" {
			origin = constants.DefaultOrigin
		}
		if len(origin) > 128 {
			WriteJSONError(w, http.StatusBadRequest, "X-Browser-ID header is too long")
			return
		}

		tabIDStr := r.Header.Get(tabIDHeader)
		if tabIDStr == "" {
			WriteJSONError(w, http.StatusBadRequest, "X-Tab-ID header is missing")
			return
		}
		tabID, err := uuid.Parse(tabIDStr)
		if err != nil {
			WriteJSONError(w, http.StatusBadRequest, "Invalid X-Tab-ID header format")
			return
		}

		ctx := context.WithValue(r.Context(), tabIdentityKey, tabIdentity{Origin: origin, TabID: tabID.String()})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tabFromContext(ctx context.Context) (tabIdentity, bool) {
	tab, ok := ctx.Value(tabIdentityKey).(tabIdentity)
	return tab, ok
}
