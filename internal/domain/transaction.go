package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxReservation  TransactionType = "reservation"
	TxPayout       TransactionType = "payout"
	TxCoHostPayout TransactionType = "co-host-payout"
	TxOther        TransactionType = "other"
)

// TransactionRecord is one normalized row of a transaction export.
// Zero dates and empty strings mean the source left the field blank.
type TransactionRecord struct {
	Date             time.Time       `json:"date"`
	Type             TransactionType `json:"type"`
	ConfirmationCode string          `json:"confirmationCode,omitempty"`
	StayStart        time.Time       `json:"stayStart"`
	StayEnd          time.Time       `json:"stayEnd"`
	Nights           *int            `json:"nights,omitempty"`
	Guest            string          `json:"guest,omitempty"`
	PropertyLabel    string          `json:"propertyLabel"`
	Amount           decimal.Decimal `json:"amount"`
	PaidOut          decimal.Decimal `json:"paidOut"`
	ServiceFee       decimal.Decimal `json:"serviceFee"`
	CleaningFee      decimal.Decimal `json:"cleaningFee"`
	GrossEarnings    decimal.Decimal `json:"grossEarnings"`
	GrossReported    bool            `json:"-"` // Gross earnings cell was non-empty
	Currency         string          `json:"currency,omitempty"`
}

// Revenue is the amount a row contributes to a booking total.
func (r TransactionRecord) Revenue() decimal.Decimal {
	if r.GrossReported {
		return r.GrossEarnings
	}
	return r.Amount
}

// CanonicalBooking is one real-world reservation rebuilt from the rows
// sharing its confirmation code.
type CanonicalBooking struct {
	Key              string
	ConfirmationCode string
	PropertyLabel    string
	Nights           int
	TotalRevenue     decimal.Decimal
	StayStart        time.Time
	StayEnd          time.Time
	BookingDate      time.Time
	Rows             int
}

// DateRange is an inclusive calendar range. The zero value is empty.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

// Contains reports whether t falls within [Start, End] at day granularity.
func (r DateRange) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	d := truncateDay(t)
	return !d.Before(truncateDay(r.Start)) && !d.After(truncateDay(r.End))
}

// Widen extends the range to cover t. Start moves only when t is strictly
// earlier and End only when t is strictly later; zero t is ignored.
func (r DateRange) Widen(t time.Time) DateRange {
	if t.IsZero() {
		return r
	}
	if r.Start.IsZero() || t.Before(r.Start) {
		r.Start = t
	}
	if r.End.IsZero() || t.After(r.End) {
		r.End = t
	}
	return r
}

// Days is the inclusive number of calendar days covered, 0 when empty.
func (r DateRange) Days() int {
	if r.Start.IsZero() || r.End.IsZero() {
		return 0
	}
	return int(truncateDay(r.End).Sub(truncateDay(r.Start)).Hours()/24) + 1
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
