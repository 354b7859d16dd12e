// Package rules implements the spending pipeline: merchant categorization,
// insight aggregation, and the nudge engine.
package rules

import (
	"strings"
	"unicode"

	"nudged/internal/core"
)

// KeywordRule maps a merchant keyword to a spending category. Rules are
// matched in order; the first keyword found as a substring wins, so more
// specific keywords must be listed before generic ones.
type KeywordRule struct {
	Keyword  string
	Category string
}

// DefaultCategoryRules is the built-in keyword table. "UBER *TRIP" must stay
// above any plain "UBER" rule, and "AMAZON DIGITAL" above "AMAZON".
func DefaultCategoryRules() []KeywordRule {
	return []KeywordRule{
		{"UBEREATS", "Food Delivery"},
		{"UBER *TRIP", "Transport"},
		{"STARBUCKS", "Coffee"},
		{"SAFEWAY", "Groceries"},
		{"WALMART", "Household"},
		{"SHELL", "Gas"},
		{"NETFLIX", "Subscription"},
		{"SPOTIFY", "Subscription"},
		{"AMAZON DIGITAL", "Subscription"},
		{"AMAZON", "Retail"},
		{"TELUS", "Utilities"},
		{"RENT", "Rent"},
		{"RESTAURANT", "Dining"},
	}
}

// Categorizer derives a display merchant name and a spending category from
// raw merchant text. It is deterministic and idempotent: it reads only
// MerchantRaw and always produces the same output for the same input.
type Categorizer struct {
	rules []KeywordRule
}

func NewCategorizer(rules []KeywordRule) *Categorizer {
	return &Categorizer{rules: rules}
}

// Categorize sets MerchantNorm and Category on the transaction. It never
// fails; unknown merchants fall back to a title-cased name and "Other".
func (c *Categorizer) Categorize(t *core.Transaction) {
	norm, category := c.classify(t.MerchantRaw)
	t.MerchantNorm = norm
	t.Category = category
}

func (c *Categorizer) classify(merchantRaw string) (string, string) {
	raw := strings.ToUpper(strings.TrimSpace(merchantRaw))
	for _, r := range c.rules {
		if strings.Contains(raw, r.Keyword) {
			return titleCase(r.Keyword), r.Category
		}
	}
	if raw == "" {
		return "Unknown", "Other"
	}
	return titleCase(raw), "Other"
}

// titleCase uppercases the first letter of every letter run and lowercases
// the rest, so "UBER *TRIP 9AK" becomes "Uber *Trip 9Ak".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			b.WriteRune(r)
			prevLetter = false
		case prevLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToUpper(r))
			prevLetter = true
		}
	}
	return b.String()
}
