// Package invoice reads supplier invoice exports and extracts priced line items.
package invoice

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Veraticus/rxsync/internal/common"
	"github.com/Veraticus/rxsync/internal/model"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// ReadFile reads the invoice at path and parses its line items.
func ReadFile(path string) ([]model.InvoiceRecord, error) {
	rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}
	return ParseSource(filepath.Base(path), rows)
}

// ReadRows returns every row of the invoice table at path. The format is chosen
// from the file extension.
func ReadRows(path string) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return readDelimitedFile(path, ',')
	case ".tsv", ".txt":
		return readDelimitedFile(path, '\t')
	case ".xlsx", ".xlsm", ".xls":
		return readWorkbook(path)
	default:
		return nil, fmt.Errorf("invoice %s: %w: %q", path, common.ErrUnsupportedFormat, ext)
	}
}

func readDelimitedFile(path string, comma rune) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice %s: %w", path, err)
	}
	return ReadDelimited(bytes.NewReader(data), comma)
}

// ReadDelimited reads comma- or tab-separated rows. Input that is not valid
// UTF-8 is decoded as Windows-1252.
func ReadDelimited(r io.Reader, comma rune) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice: %w", err)
	}

	var src io.Reader
	if utf8.Valid(data) {
		src = bytes.NewReader(data)
	} else {
		slog.Debug("Invoice is not UTF-8, decoding as Windows-1252")
		src = charmap.Windows1252.NewDecoder().Reader(bytes.NewReader(data))
	}

	reader := csv.NewReader(src)
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse invoice rows: %w", err)
	}
	return rows, nil
}

func readWorkbook(path string) (rows [][]string, err error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if strings.EqualFold(filepath.Ext(path), ".xls") {
			return nil, fmt.Errorf("invoice %s: %w: legacy .xls workbooks must be saved as .xlsx", path, common.ErrUnsupportedFormat)
		}
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("Failed to close workbook", "path", path, "error", cerr)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets: %w", path, common.ErrMissingInput)
	}

	rows, err = f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q of %s: %w", sheets[0], path, err)
	}
	return rows, nil
}
