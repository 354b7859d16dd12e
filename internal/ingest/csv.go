// Package ingest turns uploaded CSV statements into categorized
// transactions ready for bulk insert.
//
// Expected header: posted_at,merchant,amount,city,channel,memo. Dates are
// ISO (YYYY-MM-DD) and amounts are decimal dollars, converted to integer
// cents with half-up rounding before a Transaction is built.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"nudged/internal/core"
	"nudged/internal/rules"
)

var (
	ErrEmptyFile     = errors.New("empty csv file")
	ErrMissingHeader = errors.New("missing required csv header")
)

var requiredColumns = []string{"posted_at", "merchant", "amount"}

// Reader parses CSV rows and categorizes each resulting transaction.
type Reader struct {
	categorizer *rules.Categorizer
}

func NewReader(c *rules.Categorizer) *Reader {
	return &Reader{categorizer: c}
}

// Read parses the whole statement. Any malformed row fails the import
// with its line number; imports are all-or-nothing further down, so a
// partial parse has no value.
func (r *Reader) Read(src io.Reader) ([]core.Transaction, error) {
	cr := csv.NewReader(src)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	columns, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	txns := []core.Transaction{}
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		txn, err := r.parseRow(columns, record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		txns = append(txns, txn)
	}

	return txns, nil
}

func (r *Reader) parseRow(columns map[string]int, record []string) (core.Transaction, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	postedAt, err := core.ParseDate(field("posted_at"))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("posted_at: %w", err)
	}

	amountCents, err := core.ParseDecimalToCents(field("amount"))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", field("amount"), err)
	}

	txn := core.Transaction{
		PostedAt:    postedAt,
		MerchantRaw: field("merchant"),
		AmountCents: amountCents,
		City:        field("city"),
		Channel:     field("channel"),
		Memo:        field("memo"),
	}
	if err := txn.Validate(); err != nil {
		return core.Transaction{}, err
	}

	r.categorizer.Categorize(&txn)
	return txn, nil
}

func columnIndex(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingHeader, required)
		}
	}
	return columns, nil
}
