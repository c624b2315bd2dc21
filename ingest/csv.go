// Package ingest reads raw source tables and writes allocation exports.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/warp/yield-engine/yield"
)

// =============================================================================
// READING
// =============================================================================

// ReadCSV reads a raw table whose first record is the header.
// Rows may be ragged; missing trailing cells read as empty.
func ReadCSV(r io.Reader, name string) (yield.RawTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return yield.RawTable{}, fmt.Errorf("read %s: %w", name, err)
	}
	if len(records) == 0 {
		return yield.RawTable{}, fmt.Errorf("read %s: empty file", name)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return yield.RawTable{Name: name, Header: header, Rows: records[1:]}, nil
}

// ReadCSVFile opens path and reads it with ReadCSV, named after the file.
func ReadCSVFile(path string) (yield.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return yield.RawTable{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f, filepath.Base(path))
}

// =============================================================================
// WRITING - Wide allocation table
// =============================================================================

// AllocationHeader returns the output columns for the given categories.
func AllocationHeader(categories []yield.RoomCategory) []string {
	header := []string{"Date", "DayOfWeek", "Season", "Occupancy", "DemandLevel"}
	for _, c := range categories {
		l := c.Label()
		header = append(header, l+" Remaining Inventory", l+" Online Inventory", l+" BAR Rate")
	}
	return header
}

// AllocationRecord renders one allocation in AllocationHeader order.
// Categories missing from the allocation render as empty cells.
func AllocationRecord(a yield.DailyAllocation, categories []yield.RoomCategory) []string {
	rec := []string{
		a.Date.String(),
		a.DayOfWeek,
		string(a.Season),
		strconv.FormatFloat(a.Occupancy, 'f', 2, 64),
		string(a.DemandLevel),
	}
	for _, c := range categories {
		d, ok := a.Decision(c)
		if !ok {
			rec = append(rec, "", "", "")
			continue
		}
		rec = append(rec, strconv.Itoa(d.Remaining), strconv.Itoa(d.OnlineAllotment), d.Rate.String())
	}
	return rec
}

// WriteAllocationsCSV writes the wide allocation table.
func WriteAllocationsCSV(w io.Writer, allocs []yield.DailyAllocation, categories []yield.RoomCategory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(AllocationHeader(categories)); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, a := range allocs {
		if err := cw.Write(AllocationRecord(a, categories)); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", a.Date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAllocationsFile writes the table to path, creating parent directories.
func WriteAllocationsFile(path string, allocs []yield.DailyAllocation, categories []yield.RoomCategory) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	if err := WriteAllocationsCSV(f, allocs, categories); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
