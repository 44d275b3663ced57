package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"panelpulse/internal/panel"
)

// Panel file column layout, shared by the CSV and XLSX loaders.
var expectedColumns = []string{
	"user_id", "invoice_id", "invoice_date", "issuer_id", "store_id",
	"product_l1", "product_l2", "product_l3", "product_l4",
	"commerce_l1", "commerce_l2", "commerce_l3", "commerce_l4",
	"brand", "line_amount", "reconciled",
}

const dateLayout = "2006-01-02"

// Load reads a panel file into transaction lines, dispatching on extension:
// .xlsx via excelize, anything else as CSV.
func Load(path string) ([]panel.TransactionLine, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return LoadXLSX(path)
	}
	return LoadCSV(path)
}

// LoadCSV reads a panel CSV file with a header row.
func LoadCSV(path string) ([]panel.TransactionLine, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open panel file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(expectedColumns)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read panel csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("panel file %s is empty", path)
	}

	return parseRows(records[1:])
}

// LoadXLSX reads the first sheet of a panel workbook.
func LoadXLSX(path string) ([]panel.TransactionLine, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open panel workbook: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("panel workbook %s has no sheets", path)
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read panel sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("panel workbook %s is empty", path)
	}

	return parseRows(rows[1:])
}

func parseRows(rows [][]string) ([]panel.TransactionLine, error) {
	lines := make([]panel.TransactionLine, 0, len(rows))
	for i, row := range rows {
		line, err := parseRow(row)
		if err != nil {
			// Header offset: data starts on row 2.
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func parseRow(row []string) (panel.TransactionLine, error) {
	field := func(idx int) string {
		if idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	date, err := time.Parse(dateLayout, field(2))
	if err != nil {
		return panel.TransactionLine{}, fmt.Errorf("invoice_date: %w", err)
	}

	amount := 0.0
	if raw := field(14); raw != "" {
		amount, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			return panel.TransactionLine{}, fmt.Errorf("line_amount: %w", err)
		}
	}
	if amount < 0 {
		return panel.TransactionLine{}, fmt.Errorf("line_amount: negative value %.2f", amount)
	}

	line := panel.TransactionLine{
		UserID:      field(0),
		InvoiceID:   field(1),
		InvoiceDate: date,
		IssuerID:    field(3),
		StoreID:     field(4),
		Product:     panel.CategoryPath{field(5), field(6), field(7), field(8)},
		Commerce:    panel.CategoryPath{field(9), field(10), field(11), field(12)},
		Brand:       field(13),
		LineAmount:  amount,
		Reconciled:  parseReconciled(field(15)),
	}
	if !line.IsValid() {
		return panel.TransactionLine{}, fmt.Errorf("line missing user_id, invoice_id or issuer_id")
	}
	return line, nil
}

func parseReconciled(raw string) panel.ReconcileState {
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		return panel.ReconciledTrue
	case "false", "0", "no":
		return panel.ReconciledFalse
	default:
		return panel.ReconciledUnknown
	}
}
