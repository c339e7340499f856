package app

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rental_insights/internal/domain"
)

/********** column alias registry (single source of truth) **********/

var columnAliases = map[string][]string{
	"date":         {"date", "transaction date", "posted date"},
	"type":         {"type", "transaction type"},
	"confirmation": {"confirmation code", "confirmation", "reservation code", "code"},
	"start":        {"start date", "check-in", "check in", "checkin"},
	"end":          {"end date", "check-out", "check out", "checkout"},
	"nights":       {"nights", "number of nights"},
	"guest":        {"guest", "guest name"},
	"listing":      {"listing", "listing name", "property"},
	"amount":       {"amount"},
	"paid_out":     {"paid out", "payout"},
	"service_fee":  {"service fee", "host fee"},
	"cleaning_fee": {"cleaning fee"},
	"gross":        {"gross earnings", "gross"},
	"currency":     {"currency"},
}

var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"1/2/06",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

/********** tiny helpers **********/

// foldKey normalizes a header so "Gross Earnings " and "gross earnings" match.
func foldKey(k string) string {
	k = strings.TrimPrefix(k, "\ufeff")
	return strings.Join(strings.Fields(strings.ToLower(k)), " ")
}

// foldRow re-keys a raw row by folded header.
func foldRow(row map[string]string) map[string]string {
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[foldKey(k)] = strings.TrimSpace(v)
	}
	return out
}

// column returns the first non-empty value for a named alias set.
func column(row map[string]string, key string) string {
	for _, a := range columnAliases[key] {
		if v := row[a]; v != "" {
			return v
		}
	}
	return ""
}

// ParseAmount reads a currency string such as "$1,234.50", "(12.00)" or
// "USD -3". Anything it cannot read becomes zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if strings.HasPrefix(clean, "-") || strings.HasSuffix(clean, "-") {
		neg = !neg
		clean = strings.Trim(clean, "-")
	}
	if clean == "" || strings.Contains(clean, "-") {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero
	}
	if neg {
		d = d.Neg()
	}
	return d
}

// ParseDate reads a calendar date in any of the export formats seen in the
// wild. The zero time means absent.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

func parseType(s string) domain.TransactionType {
	k := strings.NewReplacer("-", " ", "_", " ").Replace(strings.ToLower(s))
	k = strings.Join(strings.Fields(k), " ")
	switch k {
	case "reservation":
		return domain.TxReservation
	case "payout":
		return domain.TxPayout
	case "co host payout", "cohost payout":
		return domain.TxCoHostPayout
	default:
		return domain.TxOther
	}
}

// parseNights accepts "3" or "3.0"; negative or fractional values are absent.
func parseNights(s string) *int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return nil
		}
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) {
		return nil
	}
	n := int(f)
	return &n
}

/********** row normalizer **********/

// NormalizeRow turns one export row into a TransactionRecord. ok is false for
// blank-line artifacts: rows with no date and no listing.
func NormalizeRow(raw map[string]string) (domain.TransactionRecord, bool) {
	row := foldRow(raw)

	rec := domain.TransactionRecord{
		Date:             ParseDate(column(row, "date")),
		Type:             parseType(column(row, "type")),
		ConfirmationCode: column(row, "confirmation"),
		StayStart:        ParseDate(column(row, "start")),
		StayEnd:          ParseDate(column(row, "end")),
		Nights:           parseNights(column(row, "nights")),
		Guest:            column(row, "guest"),
		PropertyLabel:    strings.Join(strings.Fields(column(row, "listing")), " "),
		Amount:           ParseAmount(column(row, "amount")),
		PaidOut:          ParseAmount(column(row, "paid_out")),
		ServiceFee:       ParseAmount(column(row, "service_fee")),
		CleaningFee:      ParseAmount(column(row, "cleaning_fee")),
		Currency:         strings.ToUpper(column(row, "currency")),
	}
	if g := column(row, "gross"); g != "" {
		rec.GrossEarnings = ParseAmount(g)
		rec.GrossReported = true
	}

	if rec.Date.IsZero() && rec.PropertyLabel == "" {
		return domain.TransactionRecord{}, false
	}
	return rec, true
}

// NormalizeRows keeps input order and reports how many rows were dropped.
func NormalizeRows(rows []map[string]string) ([]domain.TransactionRecord, int) {
	out := make([]domain.TransactionRecord, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		rec, ok := NormalizeRow(r)
		if !ok {
			dropped++
			continue
		}
		out = append(out, rec)
	}
	return out, dropped
}
