package amqp

import (
	"encoding/json"
	"time"

	"nudged/internal/core"
)

// ImportCompletedMessage announces that a statement import finished for a
// month. Consumers re-run the nudge engine against the fresh data; the
// payload carries only the month key, the worker reads the rows itself.
type ImportCompletedMessage struct {
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Rows      int       `json:"rows"`
	Timestamp time.Time `json:"timestamp"`
}

func NewImportCompletedMessage(month core.Month, rows int) *ImportCompletedMessage {
	return &ImportCompletedMessage{
		Year:      month.Year,
		Month:     month.Month,
		Rows:      rows,
		Timestamp: time.Now(),
	}
}

// MonthKey returns the month the import covered.
func (m *ImportCompletedMessage) MonthKey() core.Month {
	return core.Month{Year: m.Year, Month: m.Month}
}

func (m *ImportCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportCompletedMessageFromJSON(data []byte) (*ImportCompletedMessage, error) {
	var msg ImportCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
