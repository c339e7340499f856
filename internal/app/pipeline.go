package app

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"rental_insights/internal/domain"
)

// ParseTransactions runs normalize, filter, reconcile, aggregate and the
// lifetime summary over one export. The window filters transaction dates
// before reconciliation; the history always sees every row.
func ParseTransactions(rows []map[string]string, window *domain.DateRange) (domain.ParsedTransactions, error) {
	records, dropped := NormalizeRows(rows)

	inWindow, err := FilterByWindow(records, window)
	if err != nil {
		return domain.ParsedTransactions{}, fmt.Errorf("filter: %w", err)
	}

	bookings := Reconcile(inWindow)
	out := domain.ParsedTransactions{
		Transactions:       inWindow,
		TotalRevenue:       decimal.Zero,
		TotalPayouts:       decimal.Zero,
		TotalCoHostPayouts: decimal.Zero,
		PropertyNames:      []string{},
		PropertyMetrics:    Aggregate(bookings),
		HistoricalData:     Summarize(records),
		RowsSeen:           len(rows),
		RowsDropped:        dropped,
	}

	for _, b := range bookings {
		out.TotalRevenue = out.TotalRevenue.Add(b.TotalRevenue)
	}

	names := make(map[string]struct{})
	for _, r := range inWindow {
		out.DateRange = out.DateRange.Widen(r.Date)
		if r.PropertyLabel != "" {
			names[r.PropertyLabel] = struct{}{}
		}
		switch r.Type {
		case domain.TxPayout:
			out.TotalPayouts = out.TotalPayouts.Add(payoutAmount(r))
		case domain.TxCoHostPayout:
			out.TotalCoHostPayouts = out.TotalCoHostPayouts.Add(payoutAmount(r))
		}
	}
	for n := range names {
		out.PropertyNames = append(out.PropertyNames, n)
	}
	sort.Strings(out.PropertyNames)
	return out, nil
}

func payoutAmount(r domain.TransactionRecord) decimal.Decimal {
	if !r.PaidOut.IsZero() {
		return r.PaidOut
	}
	return r.Amount
}
