package core

// MerchantSpend is one entry of the top-merchants ranking.
type MerchantSpend struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
}

// Insights is a computed snapshot of spending over a set of transactions.
// It is built fresh per request, never mutated, and never persisted.
type Insights struct {
	TotalCents         int64              `json:"total_cents"`
	ByCategory         map[string]int64   `json:"by_category"`
	ByCategoryPct      map[string]float64 `json:"by_category_pct"`
	ByMerchant         map[string]int64   `json:"by_merchant"`
	TopMerchants       []MerchantSpend    `json:"top_merchants"`
	DailyAvgCents      int64              `json:"daily_avg_cents"`
	MonthForecastCents int64              `json:"month_forecast_cents"`
	DaysObserved       int                `json:"days_observed"`
	MonthDays          int                `json:"month_days"`
}
