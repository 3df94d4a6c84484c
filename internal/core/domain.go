package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Regular Kind = "Regular"
	OneOff  Kind = "OneOff"
)

type (
	// Kind distinguishes recurring day-to-day spending from one-off purchases.
	Kind string

	Category string

	// Transaction is the record every other component operates on.
	// ID is assigned by the store on creation and is empty until then.
	Transaction struct {
		ID       string    `json:"id,omitempty"`
		Title    string    `json:"note"`
		Amount   Money     `json:"amount"`
		Date     time.Time `json:"date"`
		Category Category  `json:"category"`
		Kind     Kind      `json:"kind,omitempty"`
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrMissingID     = errors.New("missing transaction id")
	ErrZeroDate      = errors.New("date cannot be zero")
)

// KnownCategories is the fixed set the UI offers. Free-text categories are
// accepted and kept as-is; consumers degrade them to the Misc presentation.
var KnownCategories = []Category{
	"Food", "Transport", "Shopping", "Entertainment", "Health", "Bills", "Misc",
}

func (c Category) Known() bool {
	for _, k := range KnownCategories {
		if c == k {
			return true
		}
	}
	return false
}

// Presentation returns the category whose icon/colour consumers should use.
func (c Category) Presentation() Category {
	if c.Known() {
		return c
	}
	return "Misc"
}

func (k Kind) Valid() bool {
	return k == Regular || k == OneOff
}

// Normalize fills the defaults the store does not enforce: an empty title
// falls back to the category name, an absent kind reads as Regular (legacy
// records predate the field).
func (t Transaction) Normalize() Transaction {
	if strings.TrimSpace(t.Title) == "" {
		t.Title = string(t.Category)
	}
	if !t.Kind.Valid() {
		t.Kind = Regular
	}
	return t
}

// Validate gates local input before any remote call is attempted.
func (t Transaction) Validate() error {
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// FilterKind returns the transactions matching kind; an invalid kind means
// no filter.
func FilterKind(list []Transaction, kind Kind) []Transaction {
	if !kind.Valid() {
		return list
	}
	out := make([]Transaction, 0, len(list))
	for _, t := range list {
		if t.Normalize().Kind == kind {
			out = append(out, t)
		}
	}
	return out
}
