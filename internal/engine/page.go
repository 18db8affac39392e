package engine

// Paginate normalizes a 1-indexed page request and returns the [start, end)
// bounds into a collection of size total.
func Paginate(page, limit, defaultLimit, total int) (start, end int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if page-1 > total/limit {
		return total, total
	}
	start = (page - 1) * limit
	if start > total {
		start = total
	}
	end = total
	if total-start > limit {
		end = start + limit
	}
	return start, end
}
