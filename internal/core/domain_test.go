package core

import (
	"testing"
	"time"
)

func TestTransactionNormalize(t *testing.T) {
	tx := Transaction{Category: "Food"}.Normalize()
	if tx.Title != "Food" {
		t.Errorf("empty title should fall back to category, got %q", tx.Title)
	}
	if tx.Kind != Regular {
		t.Errorf("absent kind should default to Regular, got %q", tx.Kind)
	}

	tx = Transaction{Title: "  ", Category: "Bills", Kind: OneOff}.Normalize()
	if tx.Title != "Bills" {
		t.Errorf("blank title should fall back to category, got %q", tx.Title)
	}
	if tx.Kind != OneOff {
		t.Errorf("valid kind must survive normalization, got %q", tx.Kind)
	}

	tx = Transaction{Title: "Lunch", Category: "Food", Kind: "weird"}.Normalize()
	if tx.Title != "Lunch" {
		t.Errorf("set title must survive normalization, got %q", tx.Title)
	}
	if tx.Kind != Regular {
		t.Errorf("unknown kind should read as Regular, got %q", tx.Kind)
	}
}

func TestTransactionValidate(t *testing.T) {
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	valid := Transaction{Title: "Lunch", Amount: Money{Cents: 450}, Date: date}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid transaction should pass: %v", err)
	}

	if err := (Transaction{Title: "x", Date: date}).Validate(); err != ErrInvalidAmount {
		t.Errorf("zero amount should fail with ErrInvalidAmount, got %v", err)
	}
	if err := (Transaction{Title: "x", Amount: Money{Cents: -1}, Date: date}).Validate(); err != ErrInvalidAmount {
		t.Errorf("negative amount should fail with ErrInvalidAmount, got %v", err)
	}
	if err := (Transaction{Title: "x", Amount: Money{Cents: 450}}).Validate(); err != ErrZeroDate {
		t.Errorf("zero date should fail with ErrZeroDate, got %v", err)
	}
}

func TestCategoryPresentation(t *testing.T) {
	if got := Category("Food").Presentation(); got != "Food" {
		t.Errorf("known category should present as itself, got %q", got)
	}
	if got := Category("Spelunking").Presentation(); got != "Misc" {
		t.Errorf("unknown category should present as Misc, got %q", got)
	}
	if got := Category("").Presentation(); got != "Misc" {
		t.Errorf("empty category should present as Misc, got %q", got)
	}
}

func TestFilterKind(t *testing.T) {
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	list := []Transaction{
		{ID: "1", Title: "Lunch", Amount: Money{Cents: 450}, Date: date, Kind: Regular},
		{ID: "2", Title: "Laptop", Amount: Money{Cents: 99900}, Date: date, Kind: OneOff},
		{ID: "3", Title: "Legacy", Amount: Money{Cents: 100}, Date: date}, // no kind
	}

	regular := FilterKind(list, Regular)
	if len(regular) != 2 {
		t.Fatalf("Regular filter returned %d entries, want 2", len(regular))
	}
	if regular[0].ID != "1" || regular[1].ID != "3" {
		t.Errorf("Regular filter should include legacy records, got %v", regular)
	}

	oneOff := FilterKind(list, OneOff)
	if len(oneOff) != 1 || oneOff[0].ID != "2" {
		t.Errorf("OneOff filter = %v, want the single one-off", oneOff)
	}

	if got := FilterKind(list, "bogus"); len(got) != len(list) {
		t.Errorf("invalid kind should mean no filter, got %d entries", len(got))
	}
}

func TestDailyTotals(t *testing.T) {
	month := MonthKey("2024-03")
	list := []Transaction{
		{Amount: Money{Cents: 45000}, Date: time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)},
		{Amount: Money{Cents: 1000}, Date: time.Date(2024, time.March, 5, 18, 0, 0, 0, time.UTC)},
		{Amount: Money{Cents: 2000}, Date: time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)},
		{Amount: Money{Cents: 99999}, Date: time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC)},
	}

	totals := DailyTotals(list, month)
	if len(totals) != 31 {
		t.Fatalf("totals sized %d, want 31", len(totals))
	}
	if totals[4].Cents != 46000 {
		t.Errorf("day 5 total = %d, want 46000", totals[4].Cents)
	}
	if totals[30].Cents != 2000 {
		t.Errorf("day 31 total = %d, want 2000", totals[30].Cents)
	}
	var sum int64
	for _, m := range totals {
		sum += m.Cents
	}
	if sum != 48000 {
		t.Errorf("out-of-month transactions must be ignored, sum = %d", sum)
	}

	if got := DailyTotals(list, "bogus"); got != nil {
		t.Errorf("malformed month should yield nil, got %v", got)
	}
}

func TestSumAmounts(t *testing.T) {
	list := []Transaction{
		{Amount: Money{Cents: 100}},
		{Amount: Money{Cents: 250}},
	}
	if got := SumAmounts(list); got.Cents != 350 {
		t.Errorf("SumAmounts = %d, want 350", got.Cents)
	}
	if got := SumAmounts(nil); got.Cents != 0 {
		t.Errorf("SumAmounts(nil) = %d, want 0", got.Cents)
	}
}
