// Package export writes business records as spreadsheet files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"

	"github.com/jonathan/lead-collector/internal/types"
)

// Format is a spreadsheet file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported formats.
var ErrUnknownFormat = errors.New("unsupported export format")

// ParseFormat accepts "xlsx", "excel" or "csv" in any case. An empty string
// means xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xlsx", "excel":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", errors.WithHint(errors.Wrapf(ErrUnknownFormat, "%q", s), "use xlsx or csv")
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Column is one exported field.
type Column struct {
	Header string
	Value  func(r types.BusinessRecord) string
}

// Layout describes the sheet written for a set of records.
type Layout struct {
	Sheet   string
	Columns []Column
	// Styled renders a bold, grey header row and fixed column widths.
	Styled bool
}

// ColumnWidth is the width applied to every column of a styled sheet.
const ColumnWidth = 20

// HeaderFill is the background of a styled header row.
const HeaderFill = "#D9D9D9"

// LeadsLayout exports every field under its record key.
func LeadsLayout() Layout {
	return Layout{
		Sheet: "Leads",
		Columns: []Column{
			{"name", func(r types.BusinessRecord) string { return r.Name }},
			{"phone", func(r types.BusinessRecord) string { return r.Phone }},
			{"email", func(r types.BusinessRecord) string { return r.Email }},
			{"website", func(r types.BusinessRecord) string { return r.Website }},
			{"address", func(r types.BusinessRecord) string { return r.Address }},
			{"linkedin", func(r types.BusinessRecord) string { return r.LinkedIn }},
			{"facebook", func(r types.BusinessRecord) string { return r.Facebook }},
			{"whatsapp", func(r types.BusinessRecord) string { return r.WhatsApp }},
		},
	}
}

// WhatsAppLayout exports the WhatsApp leads with human-readable headers.
func WhatsAppLayout() Layout {
	return Layout{
		Sheet:  "WhatsApp Leads",
		Styled: true,
		Columns: []Column{
			{"Empresa", func(r types.BusinessRecord) string { return r.Name }},
			{"Telefone", func(r types.BusinessRecord) string { return r.Phone }},
			{"Email", func(r types.BusinessRecord) string { return r.Email }},
			{"Website", func(r types.BusinessRecord) string { return r.Website }},
			{"Endereço", func(r types.BusinessRecord) string { return r.Address }},
			{"WhatsApp", func(r types.BusinessRecord) string { return r.WhatsApp }},
			{"LinkedIn", func(r types.BusinessRecord) string { return r.LinkedIn }},
			{"Facebook", func(r types.BusinessRecord) string { return r.Facebook }},
		},
	}
}

// Write encodes records in the given format.
func Write(w io.Writer, format Format, layout Layout, records []types.BusinessRecord) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, layout, records)
	case FormatXLSX:
		return WriteXLSX(w, layout, records)
	}
	return errors.Wrapf(ErrUnknownFormat, "%q", format)
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, layout Layout, records []types.BusinessRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers(layout)); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}
	for _, record := range records {
		if err := cw.Write(row(layout, record)); err != nil {
			return errors.Wrap(err, "failed to write CSV row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush CSV")
}

// WriteXLSX writes a single-sheet workbook.
func WriteXLSX(w io.Writer, layout Layout, records []types.BusinessRecord) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := layout.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return errors.Wrap(err, "failed to name sheet")
	}

	header := headers(layout)
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, record := range records {
		if err := setRow(f, sheet, i+2, row(layout, record)); err != nil {
			return err
		}
	}

	if layout.Styled && len(header) > 0 {
		if err := styleHeader(f, sheet, len(header)); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}
	return nil
}

func styleHeader(f *excelize.File, sheet string, columns int) error {
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{HeaderFill}},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create header style")
	}

	lastCell, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return errors.Wrap(err, "failed to compute header range")
	}
	if err := f.SetCellStyle(sheet, "A1", lastCell, style); err != nil {
		return errors.Wrap(err, "failed to style header")
	}

	lastCol, err := excelize.ColumnNumberToName(columns)
	if err != nil {
		return errors.Wrap(err, "failed to compute column range")
	}
	if err := f.SetColWidth(sheet, "A", lastCol, ColumnWidth); err != nil {
		return errors.Wrap(err, "failed to set column width")
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return errors.Wrap(err, "failed to compute cell name")
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return errors.Wrapf(err, "failed to write row %d", rowNum)
	}
	return nil
}

func headers(layout Layout) []string {
	out := make([]string, len(layout.Columns))
	for i, c := range layout.Columns {
		out[i] = c.Header
	}
	return out
}

func row(layout Layout, record types.BusinessRecord) []string {
	out := make([]string, len(layout.Columns))
	for i, c := range layout.Columns {
		out[i] = c.Value(record)
	}
	return out
}

// timestampLayout formats the time part of exported file names.
const timestampLayout = "20060102_150405"

var unsafeNameChars = regexp.MustCompile(`[\s/\\:*?"<>|]+`)

// FileName returns "<prefix>_<timestamp>.<ext>".
func FileName(prefix string, format Format, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, at.Format(timestampLayout), format)
}

// SearchFileName returns "leads_<niche>_<city>_<timestamp>.<ext>", with the
// niche and city made filesystem safe and cut to 20 characters.
func SearchFileName(niche, city string, format Format, at time.Time) string {
	return fmt.Sprintf("leads_%s_%s_%s.%s", safePart(niche), safePart(city), at.Format(timestampLayout), format)
}

func safePart(s string) string {
	s = unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if r := []rune(s); len(r) > 20 {
		s = string(r[:20])
	}
	return s
}
