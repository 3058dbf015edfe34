package storage

// Page selects a window of a list. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Meta describes the window returned to the client
type Meta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore"`
}

// Normalize applies the default page size and caps limit at maxLimit
func (p Page) Normalize(defaultLimit, maxLimit int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}

// Paginate returns the items on page p together with the page metadata
func Paginate[T any](items []T, p Page) ([]T, Meta) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = len(items)
		if p.Limit == 0 {
			p.Limit = 1
		}
	}

	total := len(items)
	meta := Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: (total + p.Limit - 1) / p.Limit,
	}

	start := (p.Page - 1) * p.Limit
	if start >= total {
		return []T{}, meta
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	meta.HasMore = end < total
	return items[start:end], meta
}
