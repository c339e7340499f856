package app

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"rental_insights/internal/domain"
)

var (
	moneyTokenRegex = regexp.MustCompile(`\(?-?\s?[$€£¥₹]\s?-?[\d,]+(?:\.\d+)?\)?`)
	numberRegex     = regexp.MustCompile(`^\(?-?\s?(?:[A-Z]{3}\s?)?[$€£¥₹]?\s?-?[\d,]*\d(?:\.\d+)?\)?$`)
	yearPrefixRegex = regexp.MustCompile(`^(\d{4})\b\s*`)
	periodSepRegex  = regexp.MustCompile(`\s+(?:-|–|—|to)\s+|\s*[–—]\s*`)
)

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

const listingSection = "earnings by listing"

// anchor binds label phrases to a validator for the value text and a setter.
type anchor struct {
	phrases []string
	valid   func(string) bool
	set     func(s *domain.EarningsSummary, label, value string)
}

var earningsAnchors = []anchor{
	{phrases: []string{"gross earnings"}, valid: isAmount,
		set: func(s *domain.EarningsSummary, _, v string) { s.GrossEarnings = firstAmount(v) }},
	{phrases: []string{"adjustments"}, valid: isAmount,
		set: func(s *domain.EarningsSummary, _, v string) { s.Adjustments = firstAmount(v) }},
	{phrases: []string{"host service fees", "service fees"}, valid: isAmount,
		set: func(s *domain.EarningsSummary, _, v string) { s.ServiceFees = firstAmount(v) }},
	{phrases: []string{"tax withheld"}, valid: isAmount,
		set: func(s *domain.EarningsSummary, _, v string) { s.TaxWithheld = firstAmount(v) }},
	{phrases: []string{"total (usd)", "net earnings", "total paid"}, valid: isAmount,
		set: func(s *domain.EarningsSummary, _, v string) { s.NetEarnings = firstAmount(v) }},
	{phrases: []string{"nights booked"}, valid: isCount,
		set: func(s *domain.EarningsSummary, _, v string) {
			if n := parseNights(firstField(v)); n != nil {
				s.NightsBooked = n
			}
		}},
	{phrases: []string{"average night stay", "avg night stay", "avg. night stay"}, valid: isDecimal,
		set: func(s *domain.EarningsSummary, _, v string) {
			if f, err := strconv.ParseFloat(firstField(v), 64); err == nil && f >= 0 {
				s.AvgNightStay = &f
			}
		}},
	{phrases: monthNames, valid: isMonthValue, set: setMonth},
}

/********** validators **********/

func isAmount(v string) bool {
	return numberRegex.MatchString(strings.TrimSpace(v)) || moneyTokenRegex.MatchString(v)
}

func isCount(v string) bool { return parseNights(firstField(v)) != nil }

func isDecimal(v string) bool {
	_, err := strconv.ParseFloat(firstField(v), 64)
	return err == nil
}

func isMonthValue(v string) bool {
	return isAmount(yearPrefixRegex.ReplaceAllString(strings.TrimSpace(v), ""))
}

/********** value helpers **********/

func firstField(v string) string {
	f := strings.Fields(v)
	if len(f) == 0 {
		return ""
	}
	return strings.ReplaceAll(f[0], ",", "")
}

// firstAmount prefers a currency-marked token and falls back to the whole text.
func firstAmount(v string) decimal.Decimal {
	if tok := moneyTokenRegex.FindString(v); tok != "" {
		return ParseAmount(tok)
	}
	return ParseAmount(v)
}

func setMonth(s *domain.EarningsSummary, label, value string) {
	month := strings.ToUpper(label[:1]) + label[1:]
	value = strings.TrimSpace(value)
	if m := yearPrefixRegex.FindStringSubmatch(value); m != nil {
		month += " " + m[1]
		value = value[len(m[0]):]
	}
	s.Monthly = append(s.Monthly, domain.MonthlyEarnings{Month: month, Amount: firstAmount(value)})
}

// matchAnchor does an exact, case-insensitive label match: the phrase must be
// followed by nothing, punctuation or a value, never by more words.
func matchAnchor(line string) (*anchor, string, string, bool) {
	lower := strings.ToLower(line)
	for i := range earningsAnchors {
		a := &earningsAnchors[i]
		for _, p := range a.phrases {
			if !strings.HasPrefix(lower, p) {
				continue
			}
			rest := strings.TrimLeft(line[len(p):], " \t:")
			if rest != "" {
				if r := []rune(rest)[0]; unicode.IsLetter(r) && !strings.HasPrefix(rest, "USD") {
					continue
				}
			}
			return a, p, rest, true
		}
	}
	return nil, "", "", false
}

// parseListingLine reads `name $gross [$net]`.
func parseListingLine(line string) (domain.EarningsProperty, bool) {
	locs := moneyTokenRegex.FindAllStringIndex(line, -1)
	if len(locs) == 0 {
		return domain.EarningsProperty{}, false
	}
	name := strings.Join(strings.Fields(line[:locs[0][0]]), " ")
	name = strings.TrimRight(name, " :-")
	if name == "" {
		return domain.EarningsProperty{}, false
	}
	p := domain.EarningsProperty{Name: name, Gross: ParseAmount(line[locs[0][0]:locs[0][1]])}
	if len(locs) > 1 {
		p.Net = ParseAmount(line[locs[1][0]:locs[1][1]])
	}
	return p, true
}

// parsePeriod reads "Jan 1, 2024 – Dec 31, 2024", optionally after a label.
func parsePeriod(line string) (domain.DateRange, bool) {
	if i := strings.Index(line, ":"); i >= 0 && !strings.ContainsAny(line[:i], "0123456789") {
		line = line[i+1:]
	}
	parts := periodSepRegex.Split(strings.TrimSpace(line), 2)
	if len(parts) != 2 {
		return domain.DateRange{}, false
	}
	start, end := ParseDate(parts[0]), ParseDate(parts[1])
	if start.IsZero() || end.IsZero() {
		return domain.DateRange{}, false
	}
	if end.Before(start) {
		start, end = end, start
	}
	return domain.DateRange{Start: start, End: end}, true
}

/********** extractor **********/

// ParseEarningsSummary recovers what it can from the plain text of an
// earnings summary. Unrecognized text yields an empty summary.
func ParseEarningsSummary(text string) domain.EarningsSummary {
	s := domain.EarningsSummary{
		Monthly:    []domain.MonthlyEarnings{},
		Properties: []domain.EarningsProperty{},
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	inListings := false

	for i := 0; i < len(lines); i++ {
		line := strings.Join(strings.Fields(lines[i]), " ")
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		if strings.HasPrefix(lower, listingSection) {
			inListings = true
			continue
		}

		if a, label, rest, ok := matchAnchor(line); ok {
			if rest == "" {
				// value on the next non-empty line
				j := i + 1
				for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
					j++
				}
				if j < len(lines) && a.valid(strings.TrimSpace(lines[j])) {
					rest = strings.TrimSpace(lines[j])
					i = j
				}
			}
			if rest != "" && a.valid(rest) {
				a.set(&s, label, rest)
				inListings = false
				continue
			}
		}

		if inListings {
			if p, ok := parseListingLine(line); ok {
				s.Properties = append(s.Properties, p)
			}
			continue
		}

		if s.Period.IsZero() {
			if r, ok := parsePeriod(line); ok {
				s.Period = r
			}
		}
	}
	return s
}
