package export

import (
	"strings"
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestWriteCSV(t *testing.T) {
	ts := []core.Transaction{
		{
			Type: core.Expense, Amount: core.Money{Cents: 1250}, Category: "Food",
			Description: `Lunch "special"`,
			Date:        core.NewDateValue(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
		},
		{
			Type: core.Income, Amount: core.Money{Cents: 250000}, Category: "Salary",
			Description: "Pay, March",
			Date:        core.DateValue{Text: "2024-03-01"},
		},
	}
	var b strings.Builder
	if err := WriteCSV(&b, ts); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "Date,Type,Category,Description,Amount\n" +
		`"3/5/2024","expense","Food","Lunch ""special""","12.5"` + "\n" +
		`"3/1/2024","income","Salary","Pay, March","2500"`
	if b.String() != want {
		t.Fatalf("unexpected csv:\n%s\nwant:\n%s", b.String(), want)
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var b strings.Builder
	if err := WriteCSV(&b, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b.String() != "Date,Type,Category,Description,Amount" {
		t.Fatalf("unexpected output %q", b.String())
	}
}

func TestFilename(t *testing.T) {
	got := Filename(time.Date(2025, 1, 9, 23, 0, 0, 0, time.UTC))
	if got != "transactions-2025-01-09.csv" {
		t.Fatalf("unexpected filename %q", got)
	}
}
