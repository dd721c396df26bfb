package port

import (
	"context"

	"github.com/apesoftware1/Memorial-sub001/internal/core/domain"
)

// CataloguePort - client of the remote catalogue API.
type CataloguePort interface {
	// GetListingByID returns display data for a listing; AddedAt is left empty.
	GetListingByID(ctx context.Context, id string) (*domain.FavoriteItem, error)
}
