package services

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestCSVRowSource_MapsHeadersCaseInsensitively(t *testing.T) {
	csvData := "SKU, Name ,price,stock,image_path,extra\n" +
		"A-1, Widget ,9.99,5,widget.png,ignored\n"

	src, err := NewCSVRowSource(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	row, err := src.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if row.SKU != "A-1" {
		t.Fatalf("expected sku A-1, got %q", row.SKU)
	}
	if row.Name != "Widget" {
		t.Fatalf("expected trimmed name, got %q", row.Name)
	}
	if row.PriceRaw != "9.99" || row.StockRaw != "5" || row.ImagePath != "widget.png" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.Line != 2 {
		t.Fatalf("expected line 2, got %d", row.Line)
	}

	if _, err := src.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestCSVRowSource_MissingColumnsComeBackEmpty(t *testing.T) {
	src, err := NewCSVRowSource(strings.NewReader("sku,name\nA-1,Widget\n"))
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	row, err := src.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if row.PriceRaw != "" || row.ImagePath != "" {
		t.Fatalf("expected empty optional fields, got %+v", row)
	}
}

func TestCSVRowSource_FieldCountMismatchPoisonsOneRow(t *testing.T) {
	csvData := "sku,name,price\n" +
		"A-1,Widget\n" +
		"A-2,Gadget,3.50\n"

	src, err := NewCSVRowSource(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	_, err = src.Next()
	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("expected RowError, got %v", err)
	}
	if rowErr.Line != 2 {
		t.Fatalf("expected line 2, got %d", rowErr.Line)
	}

	// The next row still parses.
	row, err := src.Next()
	if err != nil {
		t.Fatalf("next after bad row: %v", err)
	}
	if row.SKU != "A-2" {
		t.Fatalf("expected A-2, got %q", row.SKU)
	}
}

func TestCSVRowSource_EmptyInput(t *testing.T) {
	if _, err := NewCSVRowSource(strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty source")
	}
}
