package models

// SortOrder constants for list queries.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListOptions carries pagination, sorting and search for list endpoints.
type ListOptions struct {
	Page   int
	Limit  int
	Sort   string
	Order  string
	Search string
}

// Pagination defaults and bounds.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Normalize clamps pagination values into range and applies defaults.
// Unknown sort columns fall back to defaultSort.
func (o *ListOptions) Normalize(defaultSort string, allowedSorts ...string) {
	if o.Page < 1 {
		o.Page = DefaultPage
	}
	if o.Limit < 1 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Order != SortAsc {
		o.Order = SortDesc
	}
	allowed := false
	for _, s := range allowedSorts {
		if s == o.Sort {
			allowed = true
			break
		}
	}
	if !allowed {
		o.Sort = defaultSort
	}
}

// Offset returns the row offset for the current page.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.Limit
}

// PageMeta describes a page of results.
type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// NewPageMeta computes page metadata for total rows.
func NewPageMeta(total int, opts ListOptions) PageMeta {
	pages := 0
	if opts.Limit > 0 {
		pages = (total + opts.Limit - 1) / opts.Limit
	}
	return PageMeta{Total: total, Page: opts.Page, Limit: opts.Limit, TotalPages: pages}
}
