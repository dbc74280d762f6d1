package shared

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	NextPage int  `json:"next_page,omitempty"`
	PrevPage int  `json:"prev_page,omitempty"`
}

// NormalisePage clamps page and pageSize to sane bounds.
func NormalisePage(page, pageSize, defaultSize, maxSize int) (int, int) {
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	if page <= 0 {
		page = 1
	}
	return page, pageSize
}
