package rest

// StatusResponse - answer of GET /api/v1/favorites/{id}/status.
type StatusResponse struct {
	ID         string `json:"id"`
	IsFavorite bool   `json:"isFavorite"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Tabs   int    `json:"tabs"`
}
