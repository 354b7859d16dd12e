package rules

import (
	"sort"

	"nudged/internal/core"
)

const topMerchantLimit = 5

// BuildInsights computes a spending snapshot from an ordered transaction
// list in a single pass. The first transaction's posted date anchors the
// forecast month length, so callers should pass chronologically ordered
// input. An empty input yields the all-zero snapshot, never an error.
func BuildInsights(transactions []core.Transaction) core.Insights {
	if len(transactions) == 0 {
		return core.Insights{
			ByCategory:    map[string]int64{},
			ByCategoryPct: map[string]float64{},
			ByMerchant:    map[string]int64{},
			TopMerchants:  []core.MerchantSpend{},
		}
	}

	var (
		totalCents    int64
		byCategory    = map[string]int64{}
		byMerchant    = map[string]int64{}
		merchantOrder []string // first-seen order, the tie-break for rankings
		daysSeen      = map[core.Date]struct{}{}
		monthHint     core.Date
	)

	for _, t := range transactions {
		totalCents += t.AmountCents

		// Categories key as stored, an uncategorized row keys the empty
		// string rather than being folded into "Other".
		byCategory[t.Category] += t.AmountCents

		merchant := t.MerchantNorm
		if merchant == "" {
			merchant = t.MerchantRaw
		}
		if merchant == "" {
			merchant = "Unknown"
		}
		if _, seen := byMerchant[merchant]; !seen {
			merchantOrder = append(merchantOrder, merchant)
		}
		byMerchant[merchant] += t.AmountCents

		if !t.PostedAt.IsZero() {
			daysSeen[t.PostedAt] = struct{}{}
			if monthHint.IsZero() {
				monthHint = t.PostedAt
			}
		}
	}

	daysObserved := len(daysSeen)
	if daysObserved < 1 {
		daysObserved = 1
	}
	dailyAvgCents := totalCents / int64(daysObserved)

	monthDays := 30
	if !monthHint.IsZero() {
		monthDays = monthHint.MonthDays()
	}

	byCategoryPct := make(map[string]float64, len(byCategory))
	for category, cents := range byCategory {
		if totalCents == 0 {
			byCategoryPct[category] = 0.0
			continue
		}
		byCategoryPct[category] = float64(cents) / float64(totalCents) * 100
	}

	topMerchants := make([]core.MerchantSpend, 0, len(merchantOrder))
	for _, name := range merchantOrder {
		topMerchants = append(topMerchants, core.MerchantSpend{Name: name, AmountCents: byMerchant[name]})
	}
	sort.SliceStable(topMerchants, func(i, j int) bool {
		return topMerchants[i].AmountCents > topMerchants[j].AmountCents
	})
	if len(topMerchants) > topMerchantLimit {
		topMerchants = topMerchants[:topMerchantLimit]
	}

	return core.Insights{
		TotalCents:         totalCents,
		ByCategory:         byCategory,
		ByCategoryPct:      byCategoryPct,
		ByMerchant:         byMerchant,
		TopMerchants:       topMerchants,
		DailyAvgCents:      dailyAvgCents,
		MonthForecastCents: dailyAvgCents * int64(monthDays),
		DaysObserved:       daysObserved,
		MonthDays:          monthDays,
	}
}
