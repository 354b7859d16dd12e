package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Month identifies one calendar month, the unit of import, insight, and
// nudge-refresh operations.
type Month struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// ParseMonth parses the YYYY-MM form used by API callers.
func ParseMonth(s string) (Month, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Month{}, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1 {
		return Month{}, fmt.Errorf("invalid month %q: bad year", s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return Month{}, fmt.Errorf("invalid month %q: bad month", s)
	}
	return Month{Year: year, Month: month}, nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// Start returns the first day of the month.
func (m Month) Start() Date {
	return NewDate(m.Year, m.Month, 1)
}

// Next returns the first day of the following month.
func (m Month) Next() Date {
	return NewDate(m.Year, m.Month+1, 1)
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}
