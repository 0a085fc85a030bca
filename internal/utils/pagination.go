package utils

// NormalizePage clamps page to at least 1 and limit to [1, max], using def
// when limit is not positive.
func NormalizePage(page, limit, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return page, limit
}

// TotalPages is ceil(total / limit).
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
