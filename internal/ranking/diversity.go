package ranking

// AuthorCap is the most posts a single author may place in one "For You"
// page. It is fixed and cannot be calibrated.
const AuthorCap = 2

// Diversify walks items in order and admits each one while its author has
// fewer than authorCap admitted items, stopping once limit items are
// admitted. Relative order is preserved and nothing is backfilled, so the
// result may be shorter than limit.
//
// limit <= 0 means no size limit; authorCap <= 0 means no per-author cap.
func Diversify[T any](items []T, authorOf func(T) string, limit, authorCap int) []T {
	size := len(items)
	if limit > 0 && limit < size {
		size = limit
	}
	out := make([]T, 0, size)
	counts := make(map[string]int)

	for _, item := range items {
		if limit > 0 && len(out) >= limit {
			break
		}
		author := authorOf(item)
		if authorCap > 0 && counts[author] >= authorCap {
			continue
		}
		counts[author]++
		out = append(out, item)
	}
	return out
}
