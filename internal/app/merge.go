package app

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"rental_insights/internal/domain"
)

type Clock func() time.Time

// RateTier assigns an assumed nightly rate to summaries grossing up to UpTo.
// A zero UpTo matches everything.
type RateTier struct {
	UpTo decimal.Decimal
	Rate decimal.Decimal
}

type MergerOptions struct {
	CSVWeight      int
	PDFWeight      int
	URLWeight      int
	ScrapedWeight  int
	RateTiers      []RateTier
	DefaultAvgStay float64
}

func DefaultMergerOptions() MergerOptions {
	return MergerOptions{
		CSVWeight:     40,
		PDFWeight:     30,
		URLWeight:     15,
		ScrapedWeight: 15,
		RateTiers: []RateTier{
			{UpTo: decimal.NewFromInt(10000), Rate: decimal.NewFromInt(100)},
			{UpTo: decimal.NewFromInt(30000), Rate: decimal.NewFromInt(150)},
			{Rate: decimal.NewFromInt(200)},
		},
		DefaultAvgStay: 3.0,
	}
}

// health weights per metric, summing to 1
const (
	weightRevenue      = 0.40
	weightOccupancy    = 0.25
	weightPricing      = 0.20
	weightSatisfaction = 0.15
)

const defaultPeriodDays = 365

var propertyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("rental_insights/property"))

type Merger struct {
	aliases domain.AliasTable
	now     Clock
	opts    MergerOptions
}

func NewMerger(aliases domain.AliasTable, now Clock, opts MergerOptions) *Merger {
	if now == nil {
		now = time.Now
	}
	def := DefaultMergerOptions()
	if len(opts.RateTiers) == 0 {
		opts.RateTiers = def.RateTiers
	}
	if opts.DefaultAvgStay <= 0 {
		opts.DefaultAvgStay = def.DefaultAvgStay
	}
	if opts.CSVWeight == 0 && opts.PDFWeight == 0 && opts.URLWeight == 0 && opts.ScrapedWeight == 0 {
		opts.CSVWeight, opts.PDFWeight = def.CSVWeight, def.PDFWeight
		opts.URLWeight, opts.ScrapedWeight = def.URLWeight, def.ScrapedWeight
	}
	return &Merger{aliases: aliases, now: now, opts: opts}
}

// StandardName resolves a source-specific label through the alias table,
// falling back to the label with whitespace collapsed.
func (m *Merger) StandardName(label string) string {
	if std, ok := m.aliases.Lookup(label); ok {
		return std
	}
	return strings.Join(strings.Fields(label), " ")
}

// identityKey resolves label and returns its NameKey. names keeps the
// lexically smallest spelling per key so the display name does not depend on
// row order.
func (m *Merger) identityKey(names map[string]string, label string) string {
	std := m.StandardName(label)
	key := domain.NameKey(std)
	if key == "" {
		return ""
	}
	if cur, ok := names[key]; !ok || std < cur {
		names[key] = std
	}
	return key
}

// PropertyID is stable for a standard name across runs and processes.
func PropertyID(standardName string) string {
	return uuid.NewSHA1(propertyNamespace, []byte(domain.NameKey(standardName))).String()
}

func (m *Merger) nightlyRate(gross decimal.Decimal) decimal.Decimal {
	for _, t := range m.opts.RateTiers {
		if t.UpTo.IsZero() || gross.LessThanOrEqual(t.UpTo) {
			return t.Rate
		}
	}
	return m.opts.RateTiers[len(m.opts.RateTiers)-1].Rate
}

// PDFRecords turns the per-listing section of a summary into records keyed
// by standard name; names sharing a NameKey fold into one record. Nights are
// estimated from gross earnings and a tiered nightly rate, and one average
// stay applies to every listing. A summary with no listing section is
// attributed whole to fallbackName when given.
func (m *Merger) PDFRecords(s domain.EarningsSummary, fallbackName string) map[string]domain.PDFPropertyRecord {
	lines := s.Properties
	if len(lines) == 0 && strings.TrimSpace(fallbackName) != "" && !s.IsEmpty() {
		lines = []domain.EarningsProperty{{Name: fallbackName, Gross: s.GrossEarnings, Net: s.NetEarnings}}
	}

	avgStay := m.opts.DefaultAvgStay
	if s.AvgNightStay != nil && *s.AvgNightStay > 0 {
		avgStay = *s.AvgNightStay
	}

	sums := make(map[string]domain.EarningsProperty)
	names := make(map[string]string)
	for _, p := range lines {
		key := m.identityKey(names, p.Name)
		if key == "" {
			continue
		}
		net := p.Net
		if net.IsZero() {
			net = p.Gross
		}
		cur := sums[key]
		cur.Gross = cur.Gross.Add(p.Gross)
		cur.Net = cur.Net.Add(net)
		sums[key] = cur
	}

	out := make(map[string]domain.PDFPropertyRecord, len(sums))
	for key, p := range sums {
		rate := m.nightlyRate(p.Gross)
		nights := 0
		if p.Gross.IsPositive() && rate.IsPositive() {
			nights = int(p.Gross.Div(rate).Round(0).IntPart())
		}
		out[names[key]] = domain.PDFPropertyRecord{
			GrossEarnings:      p.Gross,
			NetEarnings:        p.Net,
			EstimatedNights:    nights,
			EstimatedAvgStay:   avgStay,
			EstimatedBookings:  int(math.Round(float64(nights) / avgStay)),
			AssumedNightlyRate: rate,
			Period:             s.Period,
		}
	}
	return out
}

// Merge derives the full metrics bundle from every present source. Nothing
// from a previous merge is reused besides identity and creation time.
func (m *Merger) Merge(existing *domain.Property, name string, sources domain.DataSources, url string) (domain.Property, error) {
	if sources.Empty() {
		return domain.Property{}, domain.ErrNoSources
	}
	now := m.now()

	var p domain.Property
	if existing != nil {
		p.ID, p.Name, p.CreatedAt = existing.ID, existing.Name, existing.CreatedAt
		if url == "" && existing.AirbnbURL != nil {
			url = *existing.AirbnbURL
		}
	}
	if p.Name == "" {
		p.Name = strings.Join(strings.Fields(name), " ")
	}
	p.StandardName = m.StandardName(p.Name)
	if p.StandardName == "" {
		return domain.Property{}, domain.ErrEmptyName
	}
	if p.ID == "" {
		p.ID = PropertyID(p.StandardName)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if url = strings.TrimSpace(url); url != "" {
		p.AirbnbURL = &url
	}

	p.DataSources = sources
	p.Metrics = m.metrics(sources, now)
	p.Health = Health(p.Metrics)
	p.DataCompleteness = m.Completeness(sources, p.AirbnbURL != nil)
	return p, nil
}

func (m *Merger) metrics(src domain.DataSources, now time.Time) domain.Metrics {
	calculated := domain.MetricValue{Source: domain.SourceCalculated, Confidence: domain.ConfidenceNone, LastUpdated: now}
	out := domain.Metrics{Revenue: calculated, Occupancy: calculated, Pricing: calculated, Satisfaction: calculated}

	csv, pdf, scraped := src.CSV, src.PDF, src.Scraped

	// revenue: csv, then pdf net
	switch {
	case csv != nil:
		out.Revenue = metric(csv.Metrics.TotalRevenue.InexactFloat64(), domain.SourceCSV, domain.ConfidenceHigh, csv.UploadedAt)
	case pdf != nil:
		out.Revenue = metric(pdf.Record.NetEarnings.InexactFloat64(), domain.SourcePDF, domain.ConfidenceMedium, pdf.UploadedAt)
	}

	// occupancy: nights over the reporting window, else over the span of
	// stays, else the pdf estimate
	switch {
	case csv != nil && csv.Window != nil && csv.Window.Days() > 0:
		occ := occupancy(csv.Metrics.TotalNights, csv.Window.Days())
		out.Occupancy = metric(occ, domain.SourceCSV, domain.ConfidenceHigh, csv.UploadedAt)
	case csv != nil && stayNights(csv.Metrics.StayRange) > 0:
		occ := occupancy(csv.Metrics.TotalNights, stayNights(csv.Metrics.StayRange))
		out.Occupancy = metric(occ, domain.SourceCSV, domain.ConfidenceMedium, csv.UploadedAt)
	case pdf != nil:
		days := pdf.Record.Period.Days()
		if days == 0 {
			days = defaultPeriodDays
		}
		occ := occupancy(pdf.Record.EstimatedNights, days)
		out.Occupancy = metric(occ, domain.SourcePDF, domain.ConfidenceLow, pdf.UploadedAt)
	}

	// pricing
	switch {
	case csv != nil && csv.Metrics.TotalNights > 0:
		out.Pricing = metric(round2(csv.Metrics.AvgNightlyRate.InexactFloat64()), domain.SourceCSV, domain.ConfidenceHigh, csv.UploadedAt)
	case pdf != nil && pdf.Record.EstimatedNights > 0:
		rate := pdf.Record.GrossEarnings.Div(decimal.NewFromInt(int64(pdf.Record.EstimatedNights)))
		out.Pricing = metric(round2(rate.InexactFloat64()), domain.SourcePDF, domain.ConfidenceLow, pdf.UploadedAt)
	}
	if scraped != nil && scraped.Snapshot.NightlyPrice != nil {
		out.Pricing = metric(*scraped.Snapshot.NightlyPrice, domain.SourceScraped, domain.ConfidenceMedium, scraped.ScrapedAt)
	}

	// satisfaction: scraped only
	if scraped != nil && scraped.Snapshot.Rating != nil {
		conf := domain.ConfidenceMedium
		if rc := scraped.Snapshot.ReviewCount; rc == nil || *rc == 0 {
			conf = domain.ConfidenceLow
		}
		out.Satisfaction = metric(*scraped.Snapshot.Rating, domain.SourceScraped, conf, scraped.ScrapedAt)
	}
	return out
}

func metric(v float64, src domain.MetricSource, conf float64, at time.Time) domain.MetricValue {
	return domain.MetricValue{Value: v, Source: src, Confidence: conf, LastUpdated: at}
}

func occupancy(nights, days int) float64 {
	if days <= 0 || nights <= 0 {
		return 0
	}
	return round2(math.Min(100, float64(nights)/float64(days)*100))
}

// stayNights counts the nights between the first check-in and the last
// check-out.
func stayNights(r domain.DateRange) int {
	if d := r.Days(); d > 1 {
		return d - 1
	}
	return 0
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }

// Health is the weighted mean confidence of the populated metrics, scaled to
// 0-100. Metrics still at their calculated default carry no weight; with none
// populated health is 0.
func Health(mx domain.Metrics) int {
	var sum, total float64
	for _, w := range []struct {
		v      domain.MetricValue
		weight float64
	}{
		{mx.Revenue, weightRevenue},
		{mx.Occupancy, weightOccupancy},
		{mx.Pricing, weightPricing},
		{mx.Satisfaction, weightSatisfaction},
	} {
		if w.v.Source == "" || w.v.Source == domain.SourceCalculated {
			continue
		}
		sum += w.weight * w.v.Confidence
		total += w.weight
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * sum / total))
}

// Completeness counts which sources are present, never what they report.
func (m *Merger) Completeness(src domain.DataSources, hasURL bool) int {
	c := 0
	if src.CSV != nil {
		c += m.opts.CSVWeight
	}
	if src.PDF != nil {
		c += m.opts.PDFWeight
	}
	if hasURL {
		c += m.opts.URLWeight
	}
	if src.Scraped != nil {
		c += m.opts.ScrapedWeight
	}
	if c > 100 {
		c = 100
	}
	return c
}

// GroupByStandardName folds per-label metrics whose labels resolve to the
// same property, matching on NameKey. Averages are recomputed from the summed
// totals.
func (m *Merger) GroupByStandardName(pms []domain.PropertyMetrics) map[string]domain.PropertyMetrics {
	byKey := make(map[string]domain.PropertyMetrics, len(pms))
	names := make(map[string]string)
	for _, pm := range pms {
		key := m.identityKey(names, pm.PropertyName)
		if key == "" {
			continue
		}
		cur, ok := byKey[key]
		if !ok {
			byKey[key] = pm
			continue
		}
		cur.BookingCount += pm.BookingCount
		cur.TotalNights += pm.TotalNights
		cur.TotalRevenue = cur.TotalRevenue.Add(pm.TotalRevenue)
		cur.DateRange = cur.DateRange.Widen(pm.DateRange.Start).Widen(pm.DateRange.End)
		cur.StayRange = cur.StayRange.Widen(pm.StayRange.Start).Widen(pm.StayRange.End)
		cur.AvgStayLength, cur.AvgNightlyRate = 0, decimal.Zero
		if cur.BookingCount > 0 {
			cur.AvgStayLength = float64(cur.TotalNights) / float64(cur.BookingCount)
		}
		if cur.TotalNights > 0 {
			cur.AvgNightlyRate = cur.TotalRevenue.Div(decimal.NewFromInt(int64(cur.TotalNights)))
		}
		byKey[key] = cur
	}

	out := make(map[string]domain.PropertyMetrics, len(byKey))
	for key, pm := range byKey {
		pm.PropertyName = names[key]
		out[names[key]] = pm
	}
	return out
}

// SortedNames returns the keys of a record set in a stable order.
func SortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
