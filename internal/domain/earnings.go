package domain

import "github.com/shopspring/decimal"

// EarningsSummary is what could be recovered from the text of an earnings
// summary document. Every field is best-effort.
type EarningsSummary struct {
	GrossEarnings decimal.Decimal    `json:"grossEarnings"`
	Adjustments   decimal.Decimal    `json:"adjustments"`
	ServiceFees   decimal.Decimal    `json:"serviceFees"`
	TaxWithheld   decimal.Decimal    `json:"taxWithheld"`
	NetEarnings   decimal.Decimal    `json:"netEarnings"`
	NightsBooked  *int               `json:"nightsBooked,omitempty"`
	AvgNightStay  *float64           `json:"avgNightStay,omitempty"`
	Monthly       []MonthlyEarnings  `json:"monthly"`
	Properties    []EarningsProperty `json:"properties"`
	Period        DateRange          `json:"period"`
}

type MonthlyEarnings struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

// EarningsProperty is one line of the per-listing section. Net is zero when
// the line carried a single amount.
type EarningsProperty struct {
	Name  string          `json:"name"`
	Gross decimal.Decimal `json:"gross"`
	Net   decimal.Decimal `json:"net"`
}

func (s EarningsSummary) IsEmpty() bool {
	return len(s.Properties) == 0 && len(s.Monthly) == 0 &&
		s.GrossEarnings.IsZero() && s.NetEarnings.IsZero() &&
		s.NightsBooked == nil && s.AvgNightStay == nil
}

// PDFPropertyRecord is the per-property contribution of an earnings summary.
// Nights and average stay are estimates, never extracted values.
type PDFPropertyRecord struct {
	GrossEarnings      decimal.Decimal `json:"grossEarnings"`
	NetEarnings        decimal.Decimal `json:"netEarnings"`
	EstimatedNights    int             `json:"estimatedNights"`
	EstimatedAvgStay   float64         `json:"estimatedAvgStay"`
	EstimatedBookings  int             `json:"estimatedBookings"`
	AssumedNightlyRate decimal.Decimal `json:"assumedNightlyRate"`
	Period             DateRange       `json:"period"`
}
