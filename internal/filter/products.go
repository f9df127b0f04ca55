package filter

import (
	"cmp"
	"slices"
	"strings"

	"duka/internal/core"
)

type ProductSort string

const (
	ByName     ProductSort = "name"
	ByQuantity ProductSort = "quantity"
	ByRecent   ProductSort = "recent"
)

type ProductQuery struct {
	Search string
	Sort   ProductSort
}

func ParseProductSort(s string) (ProductSort, bool) {
	switch v := ProductSort(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return ByName, true
	case ByName, ByQuantity, ByRecent:
		return v, true
	}
	return "", false
}

// Products matches the search against name and unit and orders the result:
// name ascending, quantity descending, or most recently created first.
func Products(products []core.Product, q ProductQuery) []core.Product {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]core.Product, 0, len(products))
	for _, p := range products {
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Unit), needle) {
			continue
		}
		out = append(out, p)
	}

	switch q.Sort {
	case ByQuantity:
		slices.SortStableFunc(out, func(a, b core.Product) int { return cmp.Compare(b.Quantity, a.Quantity) })
	case ByRecent:
		slices.SortStableFunc(out, func(a, b core.Product) int { return b.CreatedAt.Compare(a.CreatedAt) })
	default:
		slices.SortStableFunc(out, func(a, b core.Product) int {
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})
	}
	return out
}
