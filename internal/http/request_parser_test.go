package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
)

func TestParseTransactionRequest_JSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCents int64
		wantErr   error
	}{
		{"number amount", `{"type":"Expense","amount":12.34,"category":"Food","description":"Lunch","date":"2024-05-01"}`, 1234, nil},
		{"string amount with comma", `{"type":"expense","amount":"12,345","category":"Food","description":"Lunch","date":"2024-05-01"}`, 1235, nil},
		{"rfc3339 date", `{"type":"income","amount":"1","category":"Salary","description":"Pay","date":"2024-05-01T10:00:00Z"}`, 100, nil},
		{"bad amount", `{"type":"expense","amount":"ten","category":"Food","description":"Lunch","date":"2024-05-01"}`, 0, core.ErrInvalidAmount},
		{"bad date", `{"type":"expense","amount":"1","category":"Food","description":"Lunch","date":"01/05/2024"}`, 0, core.ErrInvalidDate},
		{"missing category", `{"type":"expense","amount":"1","description":"Lunch","date":"2024-05-01"}`, 0, core.ErrEmptyCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			p, err := parseTransactionRequest(req, 0)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer p.Close()
			if p.Draft.Amount.Cents != tt.wantCents {
				t.Errorf("cents = %d, want %d", p.Draft.Amount.Cents, tt.wantCents)
			}
			if p.Receipt != nil {
				t.Error("JSON request produced a receipt")
			}
		})
	}
}

func TestParseTransactionRequest_OffsetDateKeepsCalendarDay(t *testing.T) {
	body := `{"type":"income","amount":"1","category":"Salary","description":"Bonus","date":"2024-12-31T20:00:00-05:00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	p, err := parseTransactionRequest(req, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close()
	if got := p.Draft.DateValue().Text; got != "2024-12-31" {
		t.Fatalf("stored date = %q, want 2024-12-31", got)
	}
	if y := p.Draft.Date.Year(); y != 2024 {
		t.Fatalf("year = %d, want 2024", y)
	}
}

func TestParseTransactionRequest_SanitizesFields(t *testing.T) {
	body := `{"type":"expense","amount":"1","category":"  Food ","description":" Bus\u0000 ticket ","date":" 2024-05-01 "}`
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(body))
	p, err := parseTransactionRequest(req, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Draft.Category != "Food" || p.Draft.Description != "Bus ticket" {
		t.Errorf("draft = %+v", p.Draft)
	}
	if want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC); !p.Draft.Date.Equal(want) {
		t.Errorf("date = %v, want %v", p.Draft.Date, want)
	}
}

func TestParseTransactionRequest_MultipartWithoutReceipt(t *testing.T) {
	body, ct := multipartBody(t, map[string]string{
		"type": "income", "amount": "2500", "category": "Freelance",
		"description": "Invoice 12", "date": "2024-05-03",
	}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/transactions", body)
	req.Header.Set("Content-Type", ct)

	p, err := parseTransactionRequest(req, 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close()
	if p.Receipt != nil {
		t.Error("receipt present without file part")
	}
	if p.Draft.Type != core.Income || p.Draft.Amount.Cents != 250000 {
		t.Errorf("draft = %+v", p.Draft)
	}
}

func TestParsePredicate(t *testing.T) {
	tests := []struct {
		query string
		want  analytics.Predicate
	}{
		{"", analytics.Predicate{Type: "all", Category: "all"}},
		{"search=+Cof&type=EXPENSE&category=Food", analytics.Predicate{Search: " Cof", Type: "expense", Category: "Food"}},
		{"type=all&category=all", analytics.Predicate{Type: "all", Category: "all"}},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		if got := parsePredicate(q); got != tt.want {
			t.Errorf("parsePredicate(%q) = %+v, want %+v", tt.query, got, tt.want)
		}
	}
}

func TestParseYear(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 2025, false},
		{"year=2019", 2019, false},
		{"year=19x", 0, true},
		{"year=12", 0, true},
	}
	for _, tt := range tests {
		q, _ := url.ParseQuery(tt.query)
		got, err := parseYear(q, now)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseYear(%q) = %d, %v; want %d, err %v", tt.query, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x01b\tc \n"); got != "ab\tc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
