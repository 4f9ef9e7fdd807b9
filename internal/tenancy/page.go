package tenancy

import "math"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage keeps (page-1)*MaxLimit within a 32-bit offset.
	MaxPage = math.MaxInt32 / MaxLimit
)

// Page is a normalised page request.
type Page struct {
	Number int
	Limit  int
}

// NormalizePage applies the paging rules: page defaults to 1 and is clamped
// to [1, MaxPage]; limit defaults to 10 and is clamped to [1, 100]. Zero
// means "not supplied".
func NormalizePage(page, limit int) Page {
	switch {
	case page < 1:
		page = DefaultPage
	case page > MaxPage:
		page = MaxPage
	}
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return Page{Number: page, Limit: limit}
}

func (p Page) normalized() Page {
	if p.Number < 1 || p.Number > MaxPage || p.Limit < 1 || p.Limit > MaxLimit {
		return NormalizePage(p.Number, p.Limit)
	}
	return p
}

// Offset is the number of rows skipped.
func (p Page) Offset() int {
	p = p.normalized()
	return (p.Number - 1) * p.Limit
}

// Meta describes a page of results.
type Meta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewMeta computes the page metadata for total matching rows.
func NewMeta(p Page, total int) Meta {
	p = p.normalized()
	if total < 0 {
		total = 0
	}
	pages := (total + p.Limit - 1) / p.Limit
	return Meta{
		Page:       p.Number,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Number < pages,
		HasPrev:    p.Number > 1,
	}
}
