package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"nudged/internal/core"
)

const maxSuggestions = 5

// Thresholds are the cents values a spending figure must exceed before the
// corresponding rule fires. Injected so tests and config can override them.
type Thresholds struct {
	DeliveryCapCents   int64
	CoffeeSwapCents    int64
	SubsAuditCents     int64
	MonthlyBudgetCents int64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		DeliveryCapCents:   6000,   // $60
		CoffeeSwapCents:    2000,   // $20
		SubsAuditCents:     3000,   // $30
		MonthlyBudgetCents: 120000, // $1,200
	}
}

// RuleFunc inspects the transactions and the shared insights snapshot and
// returns zero or one suggestion. Rules never see each other's output.
type RuleFunc func(txns []core.Transaction, ins core.Insights) (*core.Suggestion, error)

// NudgeRule is a named entry in the engine's ordered registry.
type NudgeRule struct {
	Name string
	Run  RuleFunc
}

// Engine runs an ordered list of independent nudge rules over a transaction
// snapshot. A failing rule is logged and skipped; it never aborts siblings.
type Engine struct {
	thresholds Thresholds
	rules      []NudgeRule
	logger     *slog.Logger
}

func NewEngine(t Thresholds, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{thresholds: t, logger: logger}
	e.rules = []NudgeRule{
		{Name: "delivery_cap", Run: e.deliveryCap},
		{Name: "coffee_swap", Run: e.coffeeSwap},
		{Name: "subs_audit", Run: e.subsAudit},
		{Name: "burn_rate", Run: e.burnRate},
	}
	return e
}

// Register appends a rule to the registry. Output order follows
// registration order.
func (e *Engine) Register(r NudgeRule) {
	e.rules = append(e.rules, r)
}

// SuggestNudges computes insights once and runs every registered rule
// against the shared snapshot. Output is capped at five suggestions in
// registration order. Empty input short-circuits to an empty result.
func (e *Engine) SuggestNudges(transactions []core.Transaction) []core.Suggestion {
	suggestions := []core.Suggestion{}
	if len(transactions) == 0 {
		return suggestions
	}

	insights := BuildInsights(transactions)
	for _, rule := range e.rules {
		s, err := e.runRule(rule, transactions, insights)
		if err != nil {
			e.logger.Warn("nudge rule failed", "rule", rule.Name, "error", err)
			continue
		}
		if s != nil {
			suggestions = append(suggestions, *s)
		}
	}

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

// runRule isolates one rule invocation, converting panics into errors so a
// broken rule cannot take down the engine.
func (e *Engine) runRule(rule NudgeRule, txns []core.Transaction, ins core.Insights) (s *core.Suggestion, err error) {
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = fmt.Errorf("rule %s panicked: %v", rule.Name, r)
		}
	}()
	return rule.Run(txns, ins)
}

func (e *Engine) deliveryCap(_ []core.Transaction, ins core.Insights) (*core.Suggestion, error) {
	deliveryCents := ins.ByCategory["Food Delivery"]
	if deliveryCents <= e.thresholds.DeliveryCapCents {
		return nil, nil
	}
	return &core.Suggestion{
		Type: "delivery_cap",
		Message: fmt.Sprintf("Food delivery at $%s. Try a $%s/week cap + one home-cooked meal.",
			core.Dollars(deliveryCents), core.WholeDollars(e.thresholds.DeliveryCapCents)),
		TriggeredBy: map[string]any{"delivery_cents": deliveryCents},
		Suggestion:  "Batch prep on Sunday to save $40-80/mo",
	}, nil
}

func (e *Engine) coffeeSwap(_ []core.Transaction, ins core.Insights) (*core.Suggestion, error) {
	coffeeCents := ins.ByCategory["Coffee"]
	if coffeeCents <= e.thresholds.CoffeeSwapCents {
		return nil, nil
	}
	// Monthly savings estimate: four times the weekly excess.
	savedCents := (coffeeCents - e.thresholds.CoffeeSwapCents) * 4
	return &core.Suggestion{
		Type: "coffee_swap",
		Message: fmt.Sprintf("Coffee spend: $%s. Swap 3 cafe trips for home brew to save ~$%s/mo.",
			core.Dollars(coffeeCents), core.WholeDollars(savedCents)),
		TriggeredBy: map[string]any{"coffee_cents": coffeeCents},
		Suggestion:  "Invest in a $15 reusable cup or French press",
	}, nil
}

// subscriptionKeywords identify merchants that count as subscription
// services in the audit message.
var subscriptionKeywords = []string{"NETFLIX", "SPOTIFY", "AMAZON DIGITAL", "APPLE", "YOUTUBE"}

func (e *Engine) subsAudit(txns []core.Transaction, ins core.Insights) (*core.Suggestion, error) {
	subsCents := ins.ByCategory["Subscription"]
	if subsCents <= e.thresholds.SubsAuditCents {
		return nil, nil
	}

	// Rank subscription merchants by spend with first-seen order breaking
	// ties, the same ordering the aggregator uses for top_merchants.
	var (
		topSubs []core.MerchantSpend
		seen    = map[string]int{}
	)
	for _, t := range txns {
		merchant := t.MerchantNorm
		if merchant == "" {
			merchant = t.MerchantRaw
		}
		if merchant == "" {
			merchant = "Unknown"
		}
		if i, ok := seen[merchant]; ok {
			topSubs[i].AmountCents += t.AmountCents
			continue
		}
		upper := strings.ToUpper(merchant)
		for _, kw := range subscriptionKeywords {
			if strings.Contains(upper, kw) {
				seen[merchant] = len(topSubs)
				topSubs = append(topSubs, core.MerchantSpend{Name: merchant, AmountCents: t.AmountCents})
				break
			}
		}
	}
	sort.SliceStable(topSubs, func(i, j int) bool {
		return topSubs[i].AmountCents > topSubs[j].AmountCents
	})
	if len(topSubs) > 3 {
		topSubs = topSubs[:3]
	}

	names := make([]string, 0, len(topSubs))
	for _, m := range topSubs {
		if fields := strings.Fields(m.Name); len(fields) > 0 {
			names = append(names, fields[0])
		}
	}
	if len(names) == 0 {
		names = []string{"..."}
	}

	return &core.Suggestion{
		Type: "subs_audit",
		Message: fmt.Sprintf("Subscriptions: $%s/mo (%s...). Schedule a 10-min audit.",
			core.Dollars(subsCents), strings.Join(names, ", ")),
		TriggeredBy: map[string]any{"subs_cents": subsCents, "top_subs": topSubs},
		Suggestion:  "Cancel one unused sub for instant savings",
	}, nil
}

func (e *Engine) burnRate(_ []core.Transaction, ins core.Insights) (*core.Suggestion, error) {
	forecast := ins.MonthForecastCents
	budget := e.thresholds.MonthlyBudgetCents
	if forecast <= budget {
		return nil, nil
	}
	return &core.Suggestion{
		Type: "burn_rate",
		Message: fmt.Sprintf("On pace for $%s vs $%s budget (+$%s). Try a 7-day '10%% freeze'.",
			core.WholeDollars(forecast), core.WholeDollars(budget), core.WholeDollars(forecast-budget)),
		TriggeredBy: map[string]any{"forecast_cents": forecast, "budget_cents": budget},
		Suggestion:  "Pause non-essentials: dining, shopping, subs",
	}, nil
}
