package domain

import "github.com/shopspring/decimal"

// PropertyMetrics is recomputed on every aggregation run, never patched.
type PropertyMetrics struct {
	PropertyName   string          `json:"propertyName"`
	TotalNights    int             `json:"totalNights"`
	BookingCount   int             `json:"bookingCount"`
	AvgStayLength  float64         `json:"avgStayLength"`
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	AvgNightlyRate decimal.Decimal `json:"avgNightlyRate"`
	DateRange      DateRange       `json:"dateRange"`
	// StayRange spans the earliest check-in to the latest check-out.
	StayRange DateRange `json:"stayRange"`
}

type YearlyBreakdown struct {
	Year         int             `json:"year"`
	Revenue      decimal.Decimal `json:"revenue"`
	Nights       int             `json:"nights"`
	BookingCount int             `json:"bookingCount"`
}

// HistoricalData covers every transaction, ignoring any reporting window.
type HistoricalData struct {
	YearlyBreakdown []YearlyBreakdown `json:"yearlyBreakdown"`
	TotalRevenue    decimal.Decimal   `json:"totalRevenue"`
	TotalNights     int               `json:"totalNights"`
	TotalBookings   int               `json:"totalBookings"`
	DateRange       DateRange         `json:"dateRange"`
}

type ParsedTransactions struct {
	Transactions       []TransactionRecord `json:"transactions"`
	TotalRevenue       decimal.Decimal     `json:"totalRevenue"`
	TotalPayouts       decimal.Decimal     `json:"totalPayouts"`
	TotalCoHostPayouts decimal.Decimal     `json:"totalCoHostPayouts"`
	PropertyNames      []string            `json:"propertyNames"`
	PropertyMetrics    []PropertyMetrics   `json:"propertyMetrics"`
	DateRange          DateRange           `json:"dateRange"`
	HistoricalData     *HistoricalData     `json:"historicalData,omitempty"`
	RowsSeen           int                 `json:"rowsSeen"`
	RowsDropped        int                 `json:"rowsDropped"`
}
