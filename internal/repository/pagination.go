package repository

// Page limits applied to every list endpoint.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a normalised offset-pagination request.
type Page struct {
	Page  int
	Limit int
}

// NewPage clamps page to ≥1 and limit to [1, MaxPageSize], substituting
// DefaultPageSize for a non-positive limit.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return Page{Page: page, Limit: limit}
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() uint64 { return uint64((p.Page - 1) * p.Limit) }

// Pagination is the response-side summary of a paged list.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// Summarize returns ceil(total/limit) pages alongside the request values.
func (p Page) Summarize(total int64) Pagination {
	limit := int64(p.Limit)
	if limit < 1 {
		limit = DefaultPageSize
	}
	return Pagination{
		Page:  p.Page,
		Limit: p.Limit,
		Total: total,
		Pages: (total + limit - 1) / limit,
	}
}
