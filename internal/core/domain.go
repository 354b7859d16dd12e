package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusPending   NudgeStatus = "pending"
	StatusSent      NudgeStatus = "sent"
	StatusDismissed NudgeStatus = "dismissed"
)

type (
	NudgeStatus string

	Date struct {
		time.Time
	}

	// Transaction is one posted charge from a statement. MerchantNorm and
	// Category are empty until the categorizer has run.
	Transaction struct {
		ID           int64  `json:"id"`
		PostedAt     Date   `json:"posted_at"`
		MerchantRaw  string `json:"merchant_raw"`
		MerchantNorm string `json:"merchant_norm"`
		Category     string `json:"category"`
		AmountCents  int64  `json:"amount_cents"`
		City         string `json:"city"`
		Channel      string `json:"channel"`
		Memo         string `json:"memo"`
	}

	// Nudge is a persisted suggestion surfaced to the user. At most one
	// pending nudge exists per type; re-running the engine updates it.
	Nudge struct {
		ID          int64          `json:"id"`
		Type        string         `json:"type"`
		Message     string         `json:"message"`
		TriggeredBy map[string]any `json:"triggered_by"`
		Status      NudgeStatus    `json:"status"`
		CreatedAt   time.Time      `json:"created_at"`
	}

	// Suggestion is the engine's in-memory output before it is upserted
	// into the nudge store.
	Suggestion struct {
		Type        string         `json:"type"`
		Message     string         `json:"message"`
		TriggeredBy map[string]any `json:"triggered_by"`
		Suggestion  string         `json:"suggestion"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidStatus = errors.New("invalid nudge status")
)

const dateLayout = "2006-01-02"

// NewDate creates a Date at UTC midnight. All Dates must be built through
// NewDate or ParseDate so that equal calendar days compare equal.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO calendar date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t.UTC()}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// MonthDays returns the number of calendar days in the month containing d.
func (d Date) MonthDays() int {
	firstOfNext := time.Date(d.Year(), d.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return firstOfNext.AddDate(0, 0, -1).Day()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (s NudgeStatus) Validate() error {
	switch s {
	case StatusPending, StatusSent, StatusDismissed:
		return nil
	}
	return ErrInvalidStatus
}

// Validate checks the fields ingest is responsible for. An empty merchant is
// allowed; the categorizer degrades it to "Unknown"/"Other".
func (t Transaction) Validate() error {
	if t.PostedAt.IsZero() {
		return ErrInvalidDate
	}
	if t.AmountCents < 0 {
		return ErrInvalidAmount
	}
	return nil
}
