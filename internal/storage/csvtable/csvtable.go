// Package csvtable encodes the historical table as a row-oriented spreadsheet:
// a header row "Date,<series...>" followed by one row per date.
package csvtable

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"etf-flow-lab/internal/domain"
	"etf-flow-lab/internal/storage"
)

// dateLayouts are accepted when reading; DateLayout is always written.
var dateLayouts = []string{
	domain.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

// Encode writes t with columns in header order and rows in table order.
func Encode(w io.Writer, t *domain.Table) error {
	if t == nil {
		return storage.ErrInvalidInput
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(t.Series)+1)
	header = append(header, domain.DateColumn)
	header = append(header, t.Series...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range t.Rows {
		record[0] = row.Date.Format(domain.DateLayout)
		for i, s := range t.Series {
			record[i+1] = row.Value(s).String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", record[0], err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Marshal encodes t into a byte slice.
func Marshal(t *domain.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses a stored table. Every structural problem is reported as
// ErrMalformedTable; rows are never skipped or repaired.
func Decode(r io.Reader) (*domain.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0 // every row must match the header width

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty object", storage.ErrMalformedTable)
	}
	if err != nil {
		return nil, malformed(err)
	}

	series, err := parseHeader(header)
	if err != nil {
		return nil, err
	}

	t := domain.NewTable(series...)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(err)
		}

		line, _ := cr.FieldPos(0)
		row, err := parseRow(record, series, line)
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// Unmarshal parses a stored table from a byte slice.
func Unmarshal(b []byte) (*domain.Table, error) {
	return Decode(bytes.NewReader(b))
}

func parseHeader(header []string) ([]string, error) {
	first := strings.TrimSpace(strings.TrimPrefix(header[0], "\ufeff"))
	if first != domain.DateColumn {
		return nil, fmt.Errorf("%w: first column is %q, want %q", storage.ErrMalformedTable, first, domain.DateColumn)
	}

	series := make([]string, 0, len(header)-1)
	seen := make(map[string]struct{}, len(header)-1)
	for i, h := range header[1:] {
		key := strings.TrimSpace(h)
		if key == "" {
			return nil, fmt.Errorf("%w: empty header in column %d", storage.ErrMalformedTable, i+2)
		}
		if _, dup := seen[key]; dup || key == domain.DateColumn {
			return nil, fmt.Errorf("%w: duplicate header %q", storage.ErrMalformedTable, key)
		}
		seen[key] = struct{}{}
		series = append(series, key)
	}
	return series, nil
}

func parseRow(record, series []string, line int) (domain.Row, error) {
	date, err := parseDate(record[0])
	if err != nil {
		return domain.Row{}, fmt.Errorf("%w: line %d: %v", storage.ErrMalformedTable, line, err)
	}

	values := make(domain.Snapshot, len(series))
	for i, s := range series {
		v, ok := domain.ParseValue(record[i+1])
		if !ok {
			return domain.Row{}, fmt.Errorf("%w: line %d: %s: non-numeric value %q", storage.ErrMalformedTable, line, s, record[i+1])
		}
		values[s] = v
	}
	return domain.Row{Date: date, Values: values}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", storage.ErrMalformedTable, err)
}
