// Package csvfeed reads the review CSVs merchants publish from Google Sheets.
//
// Columns are positional: product, rating, author, email, body, date,
// photo_url, verified, variant. The header row is skipped, never read.
package csvfeed

import "strings"

// ParseRow splits one CSV line into trimmed fields.
//
// A double quote toggles quoted mode and is dropped; commas inside quotes
// are kept. Doubled quotes are not unescaped, so `"say ""hi"""` yields
// `say hi`. ParseRow never fails.
func ParseRow(line string) []string {
	var (
		fields   []string
		buf      strings.Builder
		inQuotes bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(buf.String()))
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}
	return append(fields, strings.TrimSpace(buf.String()))
}

// DataRow is one non-header line of a document.
type DataRow struct {
	// Index is the 0-based position among non-header lines.
	Index int
	// SheetRow is the spreadsheet row number, Index + 2.
	SheetRow int
	Row      Row
}

// Parse splits a whole CSV document into data rows.
//
// The text is trimmed, split on "\n" and the first line dropped. Blank
// lines are skipped but still count toward Index, so SheetRow matches the
// row number shown in the sheet. A trailing "\r" is removed from each line.
func Parse(text string) []DataRow {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) <= 1 {
		return nil
	}
	lines = lines[1:]

	rows := make([]DataRow, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, DataRow{
			Index:    i,
			SheetRow: i + 2,
			Row:      Row(ParseRow(line)),
		})
	}
	return rows
}
