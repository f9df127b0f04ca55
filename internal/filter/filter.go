// Package filter produces filtered, sorted views of transaction and product
// collections. Views are fresh slices; the source is never reordered.
package filter

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"duka/internal/core"
)

// All is the "no constraint" value shared by every enum criterion.
const All = "all"

type (
	TransactionType string
	DateRange       string
	SortOrder       string
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Today DateRange = "today"
	Week  DateRange = "week"
	Month DateRange = "month"
	Year  DateRange = "year"
)

const (
	Newest  SortOrder = "newest"
	Oldest  SortOrder = "oldest"
	Highest SortOrder = "highest"
	Lowest  SortOrder = "lowest"
)

// Criteria selects and orders a transaction view. Empty fields and "all"
// do not constrain.
type Criteria struct {
	Search          string          `json:"search"`
	PaymentType     string          `json:"paymentType"`
	TransactionType TransactionType `json:"transactionType"`
	DateRange       DateRange       `json:"dateRange"`
	Sort            SortOrder       `json:"sort"`
}

// Key is a canonical representation usable as a cache key.
func (c Criteria) Key() string {
	return strings.Join([]string{
		strings.ToLower(strings.TrimSpace(c.Search)),
		normalizedOrAll(core.NormalizePaymentType(c.PaymentType)),
		normalizedOrAll(string(c.TransactionType)),
		normalizedOrAll(string(c.DateRange)),
		string(c.sortOrder()),
	}, "|")
}

func normalizedOrAll(s string) string {
	if s == "" {
		return All
	}
	return s
}

func (c Criteria) sortOrder() SortOrder {
	if c.Sort == "" {
		return Newest
	}
	return c.Sort
}

// Apply returns the transactions matching every active criterion, ordered by
// c.Sort with a stable sort.
func Apply(txs []core.Transaction, c Criteria, now time.Time) []core.Transaction {
	search := strings.ToLower(strings.TrimSpace(c.Search))
	payment := core.NormalizePaymentType(c.PaymentType)
	if payment == All {
		payment = ""
	}
	since, ranged := c.Since(now)

	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		if payment != "" && core.NormalizePaymentType(string(t.PaymentType)) != payment {
			continue
		}
		switch c.TransactionType {
		case Income:
			if !t.IsIncome() {
				continue
			}
		case Expense:
			if !t.IsExpense() {
				continue
			}
		}
		if ranged && (t.CreatedAt.IsZero() || t.CreatedAt.Before(since)) {
			continue
		}
		out = append(out, t)
	}

	slices.SortStableFunc(out, comparator(c.sortOrder()))
	return out
}

func matchesSearch(t core.Transaction, needle string) bool {
	return strings.Contains(strings.ToLower(t.Description), needle) ||
		strings.Contains(strings.ToLower(string(t.PaymentType)), needle) ||
		strings.Contains(strings.ToLower(t.Notes), needle)
}

// Since returns the inclusive start of the date range at now and whether
// the range constrains at all.
func (c Criteria) Since(now time.Time) (time.Time, bool) {
	switch c.DateRange {
	case Today:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case Week:
		return now.AddDate(0, 0, -7), true
	case Month:
		return now.AddDate(0, -1, 0), true
	case Year:
		return now.AddDate(-1, 0, 0), true
	}
	return time.Time{}, false
}

var epoch = time.Unix(0, 0).UTC()

func createdOrEpoch(t core.Transaction) time.Time {
	if t.CreatedAt.IsZero() {
		return epoch
	}
	return t.CreatedAt
}

func comparator(order SortOrder) func(a, b core.Transaction) int {
	switch order {
	case Oldest:
		return func(a, b core.Transaction) int {
			return createdOrEpoch(a).Compare(createdOrEpoch(b))
		}
	case Highest:
		return func(a, b core.Transaction) int {
			return b.Amount.Abs().Cmp(a.Amount.Abs())
		}
	case Lowest:
		return func(a, b core.Transaction) int {
			return a.Amount.Abs().Cmp(b.Amount.Abs())
		}
	default:
		return func(a, b core.Transaction) int {
			return createdOrEpoch(b).Compare(createdOrEpoch(a))
		}
	}
}

// ParseCriteria reads criteria from query parameters. Unknown enum values
// are rejected rather than silently ignored.
func ParseCriteria(q url.Values) (Criteria, error) {
	c := Criteria{
		Search:      strings.TrimSpace(q.Get("search")),
		PaymentType: strings.TrimSpace(q.Get("paymentType")),
	}
	if c.PaymentType != "" && !strings.EqualFold(c.PaymentType, All) {
		pt, ok := core.ParsePaymentType(c.PaymentType)
		if !ok {
			return Criteria{}, core.NewValidationError("paymentType", core.ReasonInvalidValue, "unknown payment type "+c.PaymentType)
		}
		c.PaymentType = string(pt)
	}

	switch v := TransactionType(strings.ToLower(strings.TrimSpace(q.Get("transactionType")))); v {
	case "", All:
	case Income, Expense:
		c.TransactionType = v
	default:
		return Criteria{}, core.NewValidationError("transactionType", core.ReasonInvalidValue, "must be income, expense or all")
	}

	switch v := DateRange(strings.ToLower(strings.TrimSpace(q.Get("dateRange")))); v {
	case "", All:
	case Today, Week, Month, Year:
		c.DateRange = v
	default:
		return Criteria{}, core.NewValidationError("dateRange", core.ReasonInvalidValue, "must be today, week, month, year or all")
	}

	switch v := SortOrder(strings.ToLower(strings.TrimSpace(q.Get("sort")))); v {
	case "":
		c.Sort = Newest
	case Newest, Oldest, Highest, Lowest:
		c.Sort = v
	default:
		return Criteria{}, core.NewValidationError("sort", core.ReasonInvalidValue, "must be newest, oldest, highest or lowest")
	}
	return c, nil
}
