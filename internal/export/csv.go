// Package export turns a displayed transaction list into flat tables.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"fintrack/internal/core"
)

// Header is the first row of every export.
var Header = []string{"Date", "Type", "Category", "Description", "Amount"}

// Row renders one transaction: locale date, type, category, description
// and the raw numeric amount.
func Row(t core.Transaction) []string {
	date := ""
	if when := t.When(); !when.IsZero() {
		date = core.FormatLocaleDate(when)
	}
	return []string{date, string(t.Type), t.Category, t.Description, t.Amount.String()}
}

// Rows renders ts in the given order, without the header.
func Rows(ts []core.Transaction) [][]string {
	out := make([][]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, Row(t))
	}
	return out
}

// Filename names an export produced on the calendar day of now.
func Filename(now time.Time) string {
	return fmt.Sprintf("transactions-%s.csv", now.UTC().Format(core.CalendarLayout))
}

// WriteCSV writes the header and one quoted row per transaction. Every
// data field is quoted, embedded quotes are doubled and rows are joined
// with "\n".
func WriteCSV(w io.Writer, ts []core.Transaction) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Header, ",")); err != nil {
		return err
	}
	for _, row := range Rows(ts) {
		bw.WriteByte('\n')
		for i, field := range row {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteByte('"')
			bw.WriteString(strings.ReplaceAll(field, `"`, `""`))
			bw.WriteByte('"')
		}
	}
	return bw.Flush()
}
