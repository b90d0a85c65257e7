package pricetable

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/rxsync/internal/common"
	"github.com/Veraticus/rxsync/internal/model"
)

// Header is the first row of a price table file.
var Header = []string{"ITEMNUM", "NAMEDOSE", "COST", "CATEGORY", "REQDATE"}

// DateLayout is the requisition date format used in written tables.
const DateLayout = "2006-01-02 15:04"

// Write emits the table as tab-separated rows beneath Header.
func Write(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintln(bw, strings.Join(Header, "\t")); err != nil {
		return fmt.Errorf("failed to write price table header: %w", err)
	}

	for _, r := range t.Entries() {
		fields := []string{
			r.ItemNumber,
			r.NameDose,
			r.Cost,
			r.Category,
			r.RequisitionDate.Format(DateLayout),
		}
		if _, err := fmt.Fprintln(bw, strings.Join(fields, "\t")); err != nil {
			return fmt.Errorf("failed to write price table row %q: %w", r.NameDose, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush price table: %w", err)
	}
	return nil
}

// WriteTSV writes the table to path atomically.
func WriteTSV(path string, t *Table) error {
	return common.WriteFileAtomic(path, func(w io.Writer) error {
		return Write(w, t)
	})
}

// ReadTSV loads records from a previously written price table.
func ReadTSV(path string) ([]model.InvoiceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price table %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Failed to close price table", "path", path, "error", err)
		}
	}()

	return Read(path, f)
}

// Read parses price table rows. The header row is skipped; blank lines are ignored.
func Read(source string, r io.Reader) ([]model.InvoiceRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1*1024*1024)

	var records []model.InvoiceRecord
	row := 0
	for scanner.Scan() {
		row++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if row == 1 && strings.EqualFold(fields[0], Header[0]) {
			continue
		}
		if len(fields) < len(Header) {
			return nil, &common.ParseError{
				Source: source,
				Row:    row,
				Field:  "columns",
				Value:  line,
				Err:    common.ErrMissingInput,
			}
		}

		date, err := time.Parse(DateLayout, strings.TrimSpace(fields[4]))
		if err != nil {
			return nil, &common.ParseError{
				Source: source,
				Row:    row,
				Field:  Header[4],
				Value:  fields[4],
				Err:    err,
			}
		}

		records = append(records, model.InvoiceRecord{
			ItemNumber:      strings.TrimSpace(fields[0]),
			NameDose:        model.NormalizeKey(fields[1]),
			Cost:            strings.TrimSpace(fields[2]),
			Category:        strings.TrimSpace(fields[3]),
			RequisitionDate: date,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read price table %s: %w", source, err)
	}

	slog.Debug("Loaded price table", "source", source, "records", len(records))
	return records, nil
}
