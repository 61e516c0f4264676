package services

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Row is one logical record from an import source, field parsing already
// done. Numeric fields stay raw here; validation that affects upsert
// semantics happens in the orchestrator.
type Row struct {
	Line        int
	SKU         string
	Name        string
	Description string
	PriceRaw    string
	StockRaw    string
	ImagePath   string
}

// RowError marks one unreadable row. The orchestrator counts it invalid and
// keeps going.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// RowSource streams logical records; Next returns io.EOF when drained.
type RowSource interface {
	Next() (*Row, error)
}

// CSVRowSource adapts a CSV stream with a header row into Rows. Headers are
// trimmed and lowercased; unknown columns are ignored.
type CSVRowSource struct {
	reader *csv.Reader
	fields map[string]int
	line   int
}

func NewCSVRowSource(r io.Reader) (*CSVRowSource, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv source is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	fields := make(map[string]int, len(headers))
	for i, h := range headers {
		fields[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return &CSVRowSource{reader: cr, fields: fields, line: 1}, nil
}

func (s *CSVRowSource) Next() (*Row, error) {
	record, err := s.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	s.line++
	if err != nil {
		// Column-count mismatches poison one row, not the run.
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount) {
			return nil, &RowError{Line: s.line, Err: err}
		}
		return nil, err
	}

	get := func(name string) string {
		i, ok := s.fields[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	return &Row{
		Line:        s.line,
		SKU:         get("sku"),
		Name:        get("name"),
		Description: get("description"),
		PriceRaw:    get("price"),
		StockRaw:    get("stock"),
		ImagePath:   get("image_path"),
	}, nil
}
