// Package http serves the JSON API.
//
// This file parses transaction drafts from JSON or multipart bodies and
// reads list filters from query strings.

package http

import (
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/receipts"
)

// multipartOverhead is allowed on top of the receipt size for the other
// form fields and part headers.
const multipartOverhead = 1 << 20

// transactionInput is the body of create and update requests. Amount
// accepts a JSON number or a decimal string with dot or comma separator.
type transactionInput struct {
	Type        string `json:"type"`
	Amount      any    `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
}

// draft validates the raw fields and builds the draft. Field errors are
// the core validation errors so they map to 422.
func (in transactionInput) draft() (core.Draft, error) {
	typ, err := core.ParseType(sanitizeInput(in.Type))
	if err != nil {
		return core.Draft{}, err
	}
	cents, err := core.ParseDecimalToCents(stringValue(in.Amount))
	if err != nil {
		return core.Draft{}, err
	}
	date, err := core.ParseCalendarDay(sanitizeInput(in.Date))
	if err != nil {
		return core.Draft{}, err
	}
	d := core.Draft{
		Type:        typ,
		Amount:      core.Money{Cents: cents},
		Category:    sanitizeInput(in.Category),
		Description: sanitizeInput(in.Description),
		Date:        date,
	}
	return d, d.Validate()
}

// parsedTransaction is a decoded write request. Close releases temporary
// files of multipart bodies.
type parsedTransaction struct {
	Draft   core.Draft
	Receipt *receipts.Upload

	form *multipart.Form
	file multipart.File
}

func (p *parsedTransaction) Close() {
	if p.file != nil {
		p.file.Close()
	}
	if p.form != nil {
		p.form.RemoveAll()
	}
}

// parseTransactionRequest reads a draft from a JSON body or from a
// multipart form carrying an optional "receipt" file.
func parseTransactionRequest(r *http.Request, maxReceiptBytes int64) (*parsedTransaction, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return parseMultipart(r, maxReceiptBytes)
	}

	r.Body = http.MaxBytesReader(nil, r.Body, multipartOverhead)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var in transactionInput
	if err := dec.Decode(&in); err != nil {
		return nil, badRequest{"Invalid JSON body"}
	}
	d, err := in.draft()
	if err != nil {
		return nil, err
	}
	return &parsedTransaction{Draft: d}, nil
}

func parseMultipart(r *http.Request, maxReceiptBytes int64) (*parsedTransaction, error) {
	limit := int64(multipartOverhead)
	if maxReceiptBytes > 0 {
		limit += maxReceiptBytes
	}
	r.Body = http.MaxBytesReader(nil, r.Body, limit)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, receipts.ErrTooLarge
		}
		return nil, badRequest{"Invalid multipart body"}
	}

	p := &parsedTransaction{form: r.MultipartForm}
	in := transactionInput{
		Type:        r.FormValue("type"),
		Amount:      r.FormValue("amount"),
		Category:    r.FormValue("category"),
		Description: r.FormValue("description"),
		Date:        r.FormValue("date"),
	}
	d, err := in.draft()
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Draft = d

	file, header, err := r.FormFile("receipt")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		p.Close()
		return nil, badRequest{"Invalid receipt file"}
	default:
		p.file = file
		p.Receipt = &receipts.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Body:        receipts.LimitReader(file, maxReceiptBytes),
		}
	}
	return p, nil
}

// parsePredicate reads the list filter from the query string. Missing
// values mean match-all.
func parsePredicate(query url.Values) analytics.Predicate {
	p := analytics.Predicate{
		Search:   query.Get("search"),
		Type:     strings.ToLower(strings.TrimSpace(query.Get("type"))),
		Category: strings.TrimSpace(query.Get("category")),
	}
	if p.Type == "" {
		p.Type = analytics.MatchAll
	}
	if p.Category == "" {
		p.Category = analytics.MatchAll
	}
	return p
}

// parseYear reads ?year=, defaulting to the year of now.
func parseYear(query url.Values, now time.Time) (int, error) {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return now.UTC().Year(), nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1970 || y > 9999 {
		return 0, badRequest{"Invalid year"}
	}
	return y, nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return sanitizeInput(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
