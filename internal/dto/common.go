package dto

// ErrorResponse represents an error in the API response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse represents a generic message response.
// @Description Generic message response
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports service health for the readiness endpoint.
// @Description Service health status
type HealthResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database,omitempty"`
	Cache        string `json:"cache,omitempty"`
	TotalLessons int64  `json:"total_lessons,omitempty"`
}

// RateLimitStatusResponse reports a user's generation quota usage.
// @Description Daily generation quota status
type RateLimitStatusResponse struct {
	CurrentUsage int64 `json:"current_usage"`
	Limit        int64 `json:"limit"`
	Remaining    int64 `json:"remaining"`
}

// --- Pagination DTOs ---

// Pagination defines parameters for paginated requests.
// These are typically query parameters.
type Pagination struct {
	Limit  int `query:"limit"`  // Number of items per page
	Offset int `query:"offset"` // Number of items to skip
	Page   int `query:"page"`   // Page number (alternative to offset)
}

// Normalize fills defaults and converts page numbers into offsets.
func (p *Pagination) Normalize() {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Page > 0 && p.Offset == 0 {
		p.Offset = (p.Page - 1) * p.Limit
	}
}

// PaginationInfo defines pagination details for responses.
type PaginationInfo struct {
	TotalItems  int64 `json:"total_items"`
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
}

// NewPaginationInfo derives response pagination details from the request
// parameters and the total row count.
func NewPaginationInfo(p *Pagination, totalItems int64) PaginationInfo {
	info := PaginationInfo{
		TotalItems: totalItems,
		Limit:      p.Limit,
		Offset:     p.Offset,
	}
	if p.Limit > 0 {
		info.CurrentPage = p.Offset/p.Limit + 1
		info.TotalPages = int((totalItems + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return info
}
