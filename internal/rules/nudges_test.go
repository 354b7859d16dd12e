package rules

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"nudged/internal/core"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultThresholds(), nil)
}

func TestSuggestNudgesEmptyInput(t *testing.T) {
	got := newTestEngine().SuggestNudges(nil)
	if len(got) != 0 {
		t.Fatalf("expected no suggestions, got %+v", got)
	}
}

func TestSuggestNudgesDeliveryCap(t *testing.T) {
	// Spread across two days so the forecast stays under budget and only
	// the delivery rule fires.
	txns := []core.Transaction{
		txn(core.NewDate(2025, 10, 1), "Ubereats", "Food Delivery", 3500),
		txn(core.NewDate(2025, 10, 2), "Ubereats", "Food Delivery", 3500),
	}
	got := newTestEngine().SuggestNudges(txns)

	if len(got) != 1 {
		t.Fatalf("expected exactly one suggestion, got %+v", got)
	}
	s := got[0]
	if s.Type != "delivery_cap" {
		t.Fatalf("type = %q, want delivery_cap", s.Type)
	}
	if !strings.Contains(s.Message, "$70.00") || !strings.Contains(s.Message, "$60/week") {
		t.Fatalf("unexpected message: %q", s.Message)
	}
	if s.TriggeredBy["delivery_cents"] != int64(7000) {
		t.Fatalf("triggered_by = %+v", s.TriggeredBy)
	}
}

func TestSuggestNudgesNoneFire(t *testing.T) {
	txns := []core.Transaction{
		txn(core.NewDate(2025, 10, 1), "Safeway", "Groceries", 1500),
		txn(core.NewDate(2025, 10, 2), "Starbucks", "Coffee", 500),
	}
	got := newTestEngine().SuggestNudges(txns)
	if len(got) != 0 {
		t.Fatalf("expected no suggestions, got %+v", got)
	}
}

func TestSuggestNudgesAtThresholdDoesNotFire(t *testing.T) {
	// Thresholds are strict: exactly 6000 cents must not trigger.
	txns := []core.Transaction{
		txn(core.NewDate(2025, 10, 1), "Ubereats", "Food Delivery", 3000),
		txn(core.NewDate(2025, 10, 2), "Ubereats", "Food Delivery", 3000),
	}
	got := newTestEngine().SuggestNudges(txns)
	if len(got) != 0 {
		t.Fatalf("expected no suggestions at threshold, got %+v", got)
	}
}

func TestSuggestNudgesCoffeeSavings(t *testing.T) {
	txns := []core.Transaction{
		txn(core.NewDate(2025, 10, 1), "Starbucks", "Coffee", 2500),
	}
	got := newTestEngine().SuggestNudges(txns)

	if len(got) != 1 || got[0].Type != "coffee_swap" {
		t.Fatalf("expected coffee_swap, got %+v", got)
	}
	// Excess $5 over the cap, times four, is a $20/mo estimate.
	if !strings.Contains(got[0].Message, "$25.00") || !strings.Contains(got[0].Message, "~$20/mo") {
		t.Fatalf("unexpected message: %q", got[0].Message)
	}
}

func TestSuggestNudgesSubsAudit(t *testing.T) {
	date := core.NewDate(2025, 10, 3)
	txns := []core.Transaction{
		txn(date, "Netflix", "Subscription", 1500),
		txn(date, "Spotify", "Subscription", 1200),
		txn(date, "Amazon Digital", "Subscription", 900),
		txn(date, "Youtube Premium", "Subscription", 800),
	}
	got := newTestEngine().SuggestNudges(txns)

	var subs *core.Suggestion
	for i := range got {
		if got[i].Type == "subs_audit" {
			subs = &got[i]
		}
	}
	if subs == nil {
		t.Fatalf("expected subs_audit, got %+v", got)
	}
	if !strings.Contains(subs.Message, "$44.00/mo") {
		t.Fatalf("unexpected message: %q", subs.Message)
	}
	// Top three by spend, first-word names only.
	if !strings.Contains(subs.Message, "Netflix, Spotify, Amazon") {
		t.Fatalf("unexpected merchant names in message: %q", subs.Message)
	}
	top, ok := subs.TriggeredBy["top_subs"].([]core.MerchantSpend)
	if !ok || len(top) != 3 || top[0].Name != "Netflix" {
		t.Fatalf("unexpected top_subs evidence: %+v", subs.TriggeredBy)
	}
}

func TestSuggestNudgesSubsAuditTieBreak(t *testing.T) {
	// Equal spend ranks by first appearance, not alphabetically.
	date := core.NewDate(2025, 10, 3)
	txns := []core.Transaction{
		txn(date, "Spotify", "Subscription", 1100),
		txn(date, "Netflix", "Subscription", 1100),
		txn(date, "Apple Tv", "Subscription", 1100),
	}
	got := newTestEngine().SuggestNudges(txns)

	var subs *core.Suggestion
	for i := range got {
		if got[i].Type == "subs_audit" {
			subs = &got[i]
		}
	}
	if subs == nil {
		t.Fatalf("expected subs_audit, got %+v", got)
	}
	if !strings.Contains(subs.Message, "Spotify, Netflix, Apple") {
		t.Fatalf("tie-break not first-seen: %q", subs.Message)
	}
}

func TestSuggestNudgesSubsAuditUnknownMerchants(t *testing.T) {
	// Subscription spend over the cap but no recognizable service names.
	txns := []core.Transaction{
		txn(core.NewDate(2025, 10, 3), "Obscure Sub Co", "Subscription", 3500),
	}
	got := newTestEngine().SuggestNudges(txns)

	if len(got) != 1 || got[0].Type != "subs_audit" {
		t.Fatalf("expected subs_audit, got %+v", got)
	}
	if !strings.Contains(got[0].Message, "(......)") {
		t.Fatalf("expected placeholder names, got %q", got[0].Message)
	}
}

func TestSuggestNudgesBurnRate(t *testing.T) {
	// $150/day over a 31-day month forecasts $4,650 against a $1,200 budget.
	txns := []core.Transaction{
		txn(core.NewDate(2025, 10, 1), "Safeway", "Groceries", 15000),
	}
	got := newTestEngine().SuggestNudges(txns)

	var burn *core.Suggestion
	for i := range got {
		if got[i].Type == "burn_rate" {
			burn = &got[i]
		}
	}
	if burn == nil {
		t.Fatalf("expected burn_rate, got %+v", got)
	}
	if !strings.Contains(burn.Message, "$4650") || !strings.Contains(burn.Message, "+$3450") {
		t.Fatalf("unexpected message: %q", burn.Message)
	}
	if burn.TriggeredBy["forecast_cents"] != int64(465000) {
		t.Fatalf("unexpected evidence: %+v", burn.TriggeredBy)
	}
}

func TestSuggestNudgesCustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.CoffeeSwapCents = 100
	e := NewEngine(th, nil)

	txns := []core.Transaction{
		txn(core.NewDate(2025, 10, 1), "Starbucks", "Coffee", 500),
	}
	got := e.SuggestNudges(txns)
	if len(got) != 1 || got[0].Type != "coffee_swap" {
		t.Fatalf("expected coffee_swap with lowered threshold, got %+v", got)
	}
}

func TestSuggestNudgesCap(t *testing.T) {
	e := newTestEngine()
	always := func(name string) NudgeRule {
		return NudgeRule{Name: name, Run: func(_ []core.Transaction, _ core.Insights) (*core.Suggestion, error) {
			return &core.Suggestion{Type: name, Message: name}, nil
		}}
	}
	for _, name := range []string{"extra_1", "extra_2", "extra_3", "extra_4", "extra_5", "extra_6"} {
		e.Register(always(name))
	}

	txns := []core.Transaction{
		txn(core.NewDate(2025, 10, 1), "Ubereats", "Food Delivery", 3500),
		txn(core.NewDate(2025, 10, 2), "Ubereats", "Food Delivery", 3500),
	}
	got := e.SuggestNudges(txns)

	if len(got) != 5 {
		t.Fatalf("expected cap of 5, got %d", len(got))
	}
	// Registration order: the built-in delivery_cap fires first.
	if got[0].Type != "delivery_cap" || got[1].Type != "extra_1" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestSuggestNudgesRuleIsolation(t *testing.T) {
	e := newTestEngine()
	e.Register(NudgeRule{Name: "panics", Run: func(_ []core.Transaction, _ core.Insights) (*core.Suggestion, error) {
		panic("boom")
	}})
	e.Register(NudgeRule{Name: "errors", Run: func(_ []core.Transaction, _ core.Insights) (*core.Suggestion, error) {
		return nil, errors.New("bad insights")
	}})
	e.Register(NudgeRule{Name: "healthy", Run: func(_ []core.Transaction, _ core.Insights) (*core.Suggestion, error) {
		return &core.Suggestion{Type: "healthy", Message: "still here"}, nil
	}})

	txns := []core.Transaction{
		txn(core.NewDate(2025, 10, 1), "Safeway", "Groceries", 100),
	}
	got := e.SuggestNudges(txns)

	if len(got) != 1 || got[0].Type != "healthy" {
		t.Fatalf("expected only the healthy rule to emit, got %+v", got)
	}
}

func TestSuggestNudgesIdempotent(t *testing.T) {
	date := core.NewDate(2025, 10, 1)
	txns := []core.Transaction{
		txn(date, "Ubereats", "Food Delivery", 7000),
		txn(date, "Netflix", "Subscription", 3500),
		txn(date, "Starbucks", "Coffee", 2500),
	}
	e := newTestEngine()

	first := e.SuggestNudges(txns)
	second := e.SuggestNudges(txns)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("engine is not idempotent:\n%+v\n%+v", first, second)
	}
}
