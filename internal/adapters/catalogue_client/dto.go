package catalogue_client

// listingResponse mirrors the listing card returned by the catalogue API.
type listingResponse struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Name   string   `json:"name"`
	Price  float64  `json:"price"`
	Image  string   `json:"image"`
	Images []string `json:"images"`
	Slug   string   `json:"slug"`
}

type getListingResponse struct {
	Data listingResponse `json:"data"`
}
