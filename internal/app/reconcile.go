package app

import (
	"fmt"

	"rental_insights/internal/domain"
)

// Reconcile folds reservation rows that share a confirmation code into one
// booking each. Rows without a code stand alone under a NUL-prefixed
// "nocode-<index>" key that no real code can collide with.
// The first row under a key seeds nights, stay dates, booking date and label;
// every row adds its revenue.
func Reconcile(records []domain.TransactionRecord) map[string]domain.CanonicalBooking {
	out := make(map[string]domain.CanonicalBooking)
	nightsSet := make(map[string]bool)

	for i, r := range records {
		if r.Type != domain.TxReservation {
			continue
		}
		key := r.ConfirmationCode
		if key == "" {
			key = fmt.Sprintf("\x00nocode-%d", i)
		}

		b, seen := out[key]
		if !seen {
			b = domain.CanonicalBooking{
				Key:              key,
				ConfirmationCode: r.ConfirmationCode,
				PropertyLabel:    r.PropertyLabel,
				StayStart:        r.StayStart,
				StayEnd:          r.StayEnd,
				BookingDate:      r.Date,
				TotalRevenue:     r.Revenue(),
				Rows:             1,
			}
			if r.Nights != nil {
				b.Nights = *r.Nights
				nightsSet[key] = true
			}
			out[key] = b
			continue
		}

		b.Rows++
		b.TotalRevenue = b.TotalRevenue.Add(r.Revenue())
		if !nightsSet[key] && r.Nights != nil {
			b.Nights = *r.Nights
			nightsSet[key] = true
		}
		if !r.StayStart.IsZero() && (b.StayStart.IsZero() || r.StayStart.Before(b.StayStart)) {
			b.StayStart = r.StayStart
		}
		if !r.StayEnd.IsZero() && (b.StayEnd.IsZero() || r.StayEnd.After(b.StayEnd)) {
			b.StayEnd = r.StayEnd
		}
		out[key] = b
	}

	for k, b := range out {
		if !b.StayStart.IsZero() && !b.StayEnd.IsZero() && b.StayEnd.Before(b.StayStart) {
			b.StayStart, b.StayEnd = b.StayEnd, b.StayStart
			out[k] = b
		}
	}
	return out
}
