package invoice

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/rxsync/internal/common"
	"github.com/Veraticus/rxsync/internal/model"
)

// Positional fields of a supplier invoice row.
const (
	FieldItemNumber      = 2
	FieldNameDose        = 3
	FieldCategory        = 8
	FieldRequisitionDate = 12
	FieldCost            = 15

	minFields = FieldCost + 1
)

// DateLayout is the requisition timestamp format, e.g. "3/14/15 09:26".
const DateLayout = "1/2/06 15:04"

const itemNumberLength = 5

// Parse converts invoice rows into records.
func Parse(rows [][]string) ([]model.InvoiceRecord, error) {
	return ParseSource("invoice", rows)
}

// ParseSource converts invoice rows into records, naming source in errors.
// Rows whose item-number field is not exactly five digits are skipped. A kept
// row that is too short or carries an unreadable timestamp is fatal.
func ParseSource(source string, rows [][]string) ([]model.InvoiceRecord, error) {
	records := make([]model.InvoiceRecord, 0, len(rows))
	skipped := 0

	for i, row := range rows {
		if len(row) <= FieldItemNumber || !IsItemNumber(strings.TrimSpace(row[FieldItemNumber])) {
			skipped++
			continue
		}

		record, err := parseRow(source, i+1, row)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	slog.Info("Parsed invoice",
		"source", source,
		"rows", len(rows),
		"records", len(records),
		"skipped", skipped)

	return records, nil
}

func parseRow(source string, rowNum int, row []string) (model.InvoiceRecord, error) {
	itemNumber := strings.TrimSpace(row[FieldItemNumber])

	if len(row) < minFields {
		return model.InvoiceRecord{}, &common.ParseError{
			Source: source,
			Row:    rowNum,
			Field:  "item " + itemNumber,
			Value:  strconv.Itoa(len(row)),
			Err:    fmt.Errorf("expected at least %d fields: %w", minFields, common.ErrMissingInput),
		}
	}

	raw := strings.TrimSpace(row[FieldRequisitionDate])
	date, err := time.Parse(DateLayout, raw)
	if err != nil {
		return model.InvoiceRecord{}, &common.ParseError{
			Source: source,
			Row:    rowNum,
			Field:  "requisition date",
			Value:  raw,
			Err:    err,
		}
	}

	return model.InvoiceRecord{
		ItemNumber:      itemNumber,
		NameDose:        strings.ToLower(strings.TrimSpace(row[FieldNameDose])),
		Category:        strings.TrimSpace(row[FieldCategory]),
		RequisitionDate: date,
		Cost:            strings.TrimSpace(row[FieldCost]),
	}, nil
}

// IsItemNumber reports whether s is exactly five ASCII digits.
func IsItemNumber(s string) bool {
	if len(s) != itemNumberLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
