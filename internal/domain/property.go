package domain

import "time"

type MetricSource string

const (
	SourceCSV        MetricSource = "csv"
	SourcePDF        MetricSource = "pdf"
	SourceScraped    MetricSource = "scraped"
	SourceCalculated MetricSource = "calculated"
)

// Confidence tags, ordered csv > pdf > scraped estimate > calculated default.
const (
	ConfidenceHigh   = 0.9
	ConfidenceMedium = 0.6
	ConfidenceLow    = 0.3
	ConfidenceNone   = 0.0
)

type MetricValue struct {
	Value       float64      `json:"value"`
	Source      MetricSource `json:"source"`
	Confidence  float64      `json:"confidence"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

type Metrics struct {
	Revenue      MetricValue `json:"revenue"`
	Occupancy    MetricValue `json:"occupancy"`
	Pricing      MetricValue `json:"pricing"`
	Satisfaction MetricValue `json:"satisfaction"`
}

type CSVSource struct {
	Metrics    PropertyMetrics `json:"metrics"`
	UploadedAt time.Time       `json:"uploadedAt"`
	// Window is the reporting window the export was filtered to, if any.
	Window *DateRange `json:"window,omitempty"`
}

type PDFSource struct {
	Record     PDFPropertyRecord `json:"record"`
	UploadedAt time.Time         `json:"uploadedAt"`
}

type ScrapedSource struct {
	Snapshot  ListingSnapshot `json:"snapshot"`
	ScrapedAt time.Time       `json:"scrapedAt"`
}

// DataSources holds each source's raw contribution. Metrics are always
// derived from these, never stored independently of them.
type DataSources struct {
	CSV     *CSVSource     `json:"csv,omitempty"`
	PDF     *PDFSource     `json:"pdf,omitempty"`
	Scraped *ScrapedSource `json:"scraped,omitempty"`
}

func (d DataSources) Empty() bool { return d.CSV == nil && d.PDF == nil && d.Scraped == nil }

// Overlay replaces each source present in n and keeps the rest of d.
func (d DataSources) Overlay(n DataSources) DataSources {
	if n.CSV != nil {
		d.CSV = n.CSV
	}
	if n.PDF != nil {
		d.PDF = n.PDF
	}
	if n.Scraped != nil {
		d.Scraped = n.Scraped
	}
	return d
}

type Property struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	StandardName     string      `json:"standardName"`
	AirbnbURL        *string     `json:"airbnbUrl,omitempty"`
	DataSources      DataSources `json:"dataSources"`
	Metrics          Metrics     `json:"metrics"`
	Health           int         `json:"health"`
	DataCompleteness int         `json:"dataCompleteness"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

type PropertiesQuery struct {
	Limit  int
	Cursor *string // id to start after
}

type PropertiesPage struct {
	Items      []Property `json:"items"`
	NextCursor *string    `json:"nextCursor,omitempty"`
}

// IngestRun is the audit row written once per ingestion event.
type IngestRun struct {
	Source      MetricSource
	RowsSeen    int
	RowsDropped int
	Properties  int
	Status      string // ok|empty|failed
	Detail      string
}
