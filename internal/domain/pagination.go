package domain

// PaginationParams holds offset-based pagination parameters for list queries.
type PaginationParams struct {
	Page     int
	PageSize int
}

// Offset returns the row offset for the current page (0-based).
// Formula: (Page - 1) * PageSize.
func (p PaginationParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// PageCount returns ceiling(total / PageSize), or 0 when PageSize is not positive.
func (p PaginationParams) PageCount(total int) int {
	if p.PageSize <= 0 {
		return 0
	}
	return (total + p.PageSize - 1) / p.PageSize
}

// Window returns the [start, end) slice bounds of the current page within total items.
func (p PaginationParams) Window(total int) (int, int) {
	start := p.Offset()
	if start > total {
		start = total
	}
	end := total
	if p.PageSize > 0 && start+p.PageSize < total {
		end = start + p.PageSize
	}
	return start, end
}
