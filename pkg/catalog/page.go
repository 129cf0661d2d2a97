package catalog

// PageResult is exactly what one list response yields.
type PageResult struct {
	Items      []Item `json:"items"`
	Page       int    `json:"page"`
	Total      int    `json:"total"`
	TotalPages int    `json:"total_pages"`
	HasNext    bool   `json:"has_next"`
}

// Normalize reconciles the pagination fields of a server response:
//
//   - with total_pages reported, HasNext is Page < TotalPages
//   - without it, TotalPages is derived from has_next
//   - Total never drops below the number of items on pages 1..Page
//
// itemsSoFar is the cumulative item count including this page.
func (p *PageResult) Normalize(itemsSoFar int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.TotalPages > 0 {
		p.HasNext = p.Page < p.TotalPages
	} else if p.HasNext {
		p.TotalPages = p.Page + 1
	} else {
		p.TotalPages = p.Page
	}
	if p.Total < itemsSoFar {
		p.Total = itemsSoFar
	}
}
