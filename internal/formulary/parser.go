// Package formulary reads and writes the Markdown formulary document.
//
// The document groups drug lines under category headers:
//
//	# Formulary
//	* ANALGESICS
//	> ~Acetaminophen (Tylenol) | $0.10 (325mg), $0.12 (500mg) | Oral
//
// A "~" before the name marks a blacklisted drug.
package formulary

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Veraticus/rxsync/internal/model"
)

const (
	categoryPrefix = "*"
	entryPrefix    = ">"
	fieldSeparator = "|"
)

// ParseFile reads a formulary document from disk.
func ParseFile(path string) ([]model.FormularyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open formulary %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Failed to close formulary file", "error", err)
		}
	}()

	return Parse(f)
}

// Parse reads formulary lines and returns one record per drug entry, in source order.
func Parse(r io.Reader) ([]model.FormularyRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1*1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read formulary: %w", err)
	}

	return ParseLines(lines), nil
}

// ParseLines converts raw document lines into records. Category lines set the
// category of every following entry; lines that are neither are ignored. Every
// entry line yields a record, even one whose name comes out empty, so writing
// the records back reproduces the document.
func ParseLines(lines []string) []model.FormularyRecord {
	var records []model.FormularyRecord
	category := ""
	categories := 0
	ignoredLines := 0
	unnamed := 0

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")

		switch {
		case strings.HasPrefix(line, categoryPrefix):
			category = strings.TrimSpace(strings.TrimLeft(line, categoryPrefix))
			categories++
		case strings.HasPrefix(line, entryPrefix):
			fields := SplitEntry(line, category)
			record := NewRecord(fields)
			if record.Name == "" {
				unnamed++
			}
			records = append(records, record)
		default:
			ignoredLines++
		}
	}

	slog.Debug("Parsed formulary",
		"records", len(records),
		"categories", categories,
		"ignored_lines", ignoredLines,
		"unnamed", unnamed)

	return records
}

// SplitEntry strips the entry marker, appends the category as a trailing field,
// splits on "|" and trims every field.
func SplitEntry(line, category string) []string {
	body := strings.TrimLeft(line, entryPrefix+" ")
	fields := strings.Split(body+fieldSeparator+category, fieldSeparator)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// NewRecord builds a record from split entry fields:
// name, dose/cost text, optional subcategory, and the trailing category.
func NewRecord(fields []string) model.FormularyRecord {
	if len(fields) == 0 {
		return model.FormularyRecord{}
	}

	parts := ExtractName(fields[0])
	record := model.FormularyRecord{
		Name:        parts.Name,
		Label:       parts.Label,
		Blacklisted: parts.Blacklisted,
	}

	if len(fields) >= 2 {
		record.Category = fields[len(fields)-1]
	}
	if len(fields) >= 3 {
		record.DoseCosts = ScanDoseCosts(fields[1])
	}
	if len(fields) >= 4 {
		record.Subcategory = fields[2]
	}

	return record
}
