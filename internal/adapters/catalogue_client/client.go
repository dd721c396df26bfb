package catalogue_client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/apesoftware1/Memorial-sub001/internal/contextkeys"
	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
	"github.com/apesoftware1/Memorial-sub001/internal/core/port"
)

var ErrListingNotFound = errors.New("listing not found")

const defaultTimeout = 5 * time.Second

// CatalogueAPIClient fetches listing cards from the storefront catalogue.
type CatalogueAPIClient struct {
	baseURL    string // e.g. "http://catalogue:8080"
	httpClient *http.Client
}

var _ port.CataloguePort = (*CatalogueAPIClient)(nil)

func NewCatalogueAPIClient(baseURL string, timeout time.Duration) *CatalogueAPIClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &CatalogueAPIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *CatalogueAPIClient) doRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if traceID := contextkeys.TraceIDFromContext(ctx); traceID != "" {
		req.Header.Set("X-Trace-ID", traceID)
	}
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// GetListingByID returns the display fields of a listing. AddedAt stays
// empty; the store assigns it.
func (c *CatalogueAPIClient) GetListingByID(ctx context.Context, id string) (*domain.FavoriteItem, error) {
	clientLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":  "CatalogueAPIClient",
		"method":     "GetListingByID",
		"listing_id": id,
	})

	if id == "" {
		return nil, fmt.Errorf("listing id cannot be empty")
	}

	endpoint := c.baseURL + "/api/v1/listings/" + url.PathEscape(id)
	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		clientLogger.Error("Failed to perform request to catalogue", err, nil)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		clientLogger.Warn("Listing not found in catalogue", nil)
		return nil, ErrListingNotFound
	}
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("catalogue returned non-200 status: %d, body: %s", resp.StatusCode, string(bodyBytes))
		clientLogger.Error("Received non-OK response from catalogue", err, port.Fields{"status_code": resp.StatusCode})
		return nil, err
	}

	var apiResponse getListingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		clientLogger.Error("Failed to decode response from catalogue", err, nil)
		return nil, fmt.Errorf("failed to decode response from catalogue: %w", err)
	}

	item := toFavoriteItem(apiResponse.Data)
	if item.ID == "" {
		item.ID = id
	}
	clientLogger.Debug("Listing received from catalogue", nil)
	return &item, nil
}

func toFavoriteItem(dto listingResponse) domain.FavoriteItem {
	item := domain.FavoriteItem{
		ID:    dto.ID,
		Title: dto.Title,
		Name:  dto.Name,
		Price: dto.Price,
		Image: dto.Image,
	}
	if item.Image == "" && len(dto.Images) > 0 {
		item.Image = dto.Images[0]
	}
	if dto.Slug != "" {
		slug, _ := json.Marshal(dto.Slug)
		item.Extra = map[string]json.RawMessage{"slug": slug}
	}
	return item
}
