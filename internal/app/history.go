package app

import (
	"sort"

	"github.com/shopspring/decimal"

	"rental_insights/internal/domain"
)

// Summarize reconciles every record regardless of reporting window and
// buckets bookings by the year they were made. Nil for no records.
func Summarize(records []domain.TransactionRecord) *domain.HistoricalData {
	if len(records) == 0 {
		return nil
	}

	h := &domain.HistoricalData{
		YearlyBreakdown: []domain.YearlyBreakdown{},
		TotalRevenue:    decimal.Zero,
	}
	for _, r := range records {
		h.DateRange = h.DateRange.Widen(r.Date)
	}

	byYear := make(map[int]*domain.YearlyBreakdown)
	for _, b := range Reconcile(records) {
		h.TotalBookings++
		h.TotalNights += b.Nights
		h.TotalRevenue = h.TotalRevenue.Add(b.TotalRevenue)

		year := b.BookingDate.Year()
		y, ok := byYear[year]
		if !ok {
			y = &domain.YearlyBreakdown{Year: year, Revenue: decimal.Zero}
			byYear[year] = y
		}
		y.BookingCount++
		y.Nights += b.Nights
		y.Revenue = y.Revenue.Add(b.TotalRevenue)
	}

	for _, y := range byYear {
		h.YearlyBreakdown = append(h.YearlyBreakdown, *y)
	}
	sort.Slice(h.YearlyBreakdown, func(i, j int) bool {
		return h.YearlyBreakdown[i].Year < h.YearlyBreakdown[j].Year
	})
	return h
}
