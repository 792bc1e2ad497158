package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  Type = "income"
	Expense Type = "expense"
)

// MaxDescriptionLength bounds the free-text description of a transaction.
const MaxDescriptionLength = 200

type (
	// Type partitions transactions. Amounts are always magnitudes and the
	// sign is implied by the type.
	Type string

	Money struct {
		Cents int64
	}

	// Transaction is a stored record as delivered by a store snapshot.
	Transaction struct {
		ID          string
		Type        Type
		Amount      Money
		Category    string
		Description string
		Date        DateValue
		ReceiptURL  string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Draft holds the user-editable fields of a transaction. Creates and
	// updates both take a full Draft; an update replaces every field.
	Draft struct {
		Type        Type
		Amount      Money
		Category    string
		Description string
		Date        time.Time
		ReceiptURL  string
	}
)

var (
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	ErrEmptyCategory      = errors.New("empty category")
)

// ParseType accepts "income" or "expense" in any letter case.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	}
	return "", ErrInvalidType
}

func (t Type) Validate() error {
	if t != Income && t != Expense {
		return ErrInvalidType
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents < 0 || m.Cents > MaxCents {
		return ErrInvalidAmount
	}
	return nil
}

// IsValidationError reports whether err comes from Draft validation and
// should be shown to the user rather than treated as a server failure.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidType, ErrInvalidAmount, ErrInvalidDate,
		ErrEmptyDescription, ErrDescriptionTooLong, ErrEmptyCategory,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (d Draft) Validate() error {
	if err := d.Type.Validate(); err != nil {
		return err
	}
	if err := d.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(d.Description) == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(d.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if strings.TrimSpace(d.Category) == "" {
		return ErrEmptyCategory
	}
	if d.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// DateValue returns both encodings of the draft's date, as written by every
// store on create and update.
func (d Draft) DateValue() DateValue {
	return NewDateValue(d.Date)
}

// Draft returns the editable fields of t, used to build edit forms.
func (t Transaction) Draft() Draft {
	when, _ := t.Date.Instant()
	return Draft{
		Type:        t.Type,
		Amount:      t.Amount,
		Category:    t.Category,
		Description: t.Description,
		Date:        when,
		ReceiptURL:  t.ReceiptURL,
	}
}

// When returns the normalized instant of the transaction date. The zero
// time is returned when neither encoding can be read; records pass
// validation before they are stored so this only happens on corrupt data.
func (t Transaction) When() time.Time {
	when, err := t.Date.Instant()
	if err != nil {
		return time.Time{}
	}
	return when
}
