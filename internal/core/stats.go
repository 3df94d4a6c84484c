package core

// MonthlyStat is a server-side pre-aggregated total for one month. The total
// is read from the store, never recomputed client-side from raw transactions.
type MonthlyStat struct {
	Month MonthKey `json:"month"`
	Total Money    `json:"total"`
}

// SumAmounts adds up the listed transactions.
func SumAmounts(list []Transaction) Money {
	var cents int64
	for _, t := range list {
		cents += t.Amount.Cents
	}
	return Money{Cents: cents}
}

// DailyTotals buckets a month's transactions by day-of-month. The slice is
// sized to the month's length; index 0 is day 1. Transactions outside the
// month are ignored.
func DailyTotals(list []Transaction, month MonthKey) []Money {
	days := month.DaysIn()
	if days == 0 {
		return nil
	}
	out := make([]Money, days)
	start, end, _ := month.Bounds()
	for _, t := range list {
		if t.Date.Before(start) || t.Date.After(end) {
			continue
		}
		out[t.Date.Day()-1].Cents += t.Amount.Cents
	}
	return out
}
