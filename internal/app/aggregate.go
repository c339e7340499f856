package app

import (
	"sort"

	"github.com/shopspring/decimal"

	"rental_insights/internal/domain"
)

// FilterByWindow keeps records whose Date falls in the inclusive window.
// A nil window keeps everything; undated records never match a window.
func FilterByWindow(records []domain.TransactionRecord, window *domain.DateRange) ([]domain.TransactionRecord, error) {
	if window == nil {
		return append([]domain.TransactionRecord(nil), records...), nil
	}
	if err := validateWindow(*window); err != nil {
		return nil, err
	}
	out := make([]domain.TransactionRecord, 0, len(records))
	for _, r := range records {
		if window.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func validateWindow(w domain.DateRange) error {
	if w.Start.IsZero() || w.End.IsZero() || w.End.Before(w.Start) {
		return domain.ErrInvalidWindow
	}
	return nil
}

// Aggregate rolls canonical bookings up to one entry per property label,
// highest revenue first.
func Aggregate(bookings map[string]domain.CanonicalBooking) []domain.PropertyMetrics {
	byLabel := make(map[string]*domain.PropertyMetrics)

	for _, b := range bookings {
		m, ok := byLabel[b.PropertyLabel]
		if !ok {
			m = &domain.PropertyMetrics{PropertyName: b.PropertyLabel, TotalRevenue: decimal.Zero}
			byLabel[b.PropertyLabel] = m
		}
		m.BookingCount++
		m.TotalNights += b.Nights
		m.TotalRevenue = m.TotalRevenue.Add(b.TotalRevenue)
		m.DateRange = m.DateRange.Widen(b.BookingDate)
		end := b.StayEnd
		if end.IsZero() && !b.StayStart.IsZero() && b.Nights > 0 {
			end = b.StayStart.AddDate(0, 0, b.Nights)
		}
		m.StayRange = m.StayRange.Widen(b.StayStart).Widen(end)
	}

	out := make([]domain.PropertyMetrics, 0, len(byLabel))
	for _, m := range byLabel {
		if m.BookingCount > 0 {
			m.AvgStayLength = float64(m.TotalNights) / float64(m.BookingCount)
		}
		m.AvgNightlyRate = decimal.Zero
		if m.TotalNights > 0 {
			m.AvgNightlyRate = m.TotalRevenue.Div(decimal.NewFromInt(int64(m.TotalNights)))
		}
		out = append(out, *m)
	}

	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalRevenue.Cmp(out[j].TotalRevenue); c != 0 {
			return c > 0
		}
		return out[i].PropertyName < out[j].PropertyName
	})
	return out
}
