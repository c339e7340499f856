package httpserver_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	httpserver "rental_insights/internal/adapters/http_server"
	"rental_insights/internal/app"
	"rental_insights/internal/domain"
)

// ---- fakes ----

type memRepo struct {
	mu   sync.Mutex
	byID map[string]domain.Property
}

func (m *memRepo) UpsertProperty(ctx context.Context, p domain.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = p
	return nil
}
func (m *memRepo) DeleteProperty(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}
func (m *memRepo) LogIngest(ctx context.Context, run domain.IngestRun) error { return nil }
func (m *memRepo) GetProperty(ctx context.Context, id string) (domain.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, nil
}
func (m *memRepo) GetPropertyByStandardName(ctx context.Context, std string) (domain.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if domain.NameKey(p.StandardName) == domain.NameKey(std) {
			return p, nil
		}
	}
	return domain.Property{}, domain.ErrNotFound
}
func (m *memRepo) ListProperties(ctx context.Context, q domain.PropertiesQuery) (domain.PropertiesPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pg domain.PropertiesPage
	for _, p := range m.byID {
		pg.Items = append(pg.Items, p)
	}
	return pg, nil
}

type mockScraper struct {
	mock.Mock
}

func (m *mockScraper) GetListing(ctx context.Context, url string) (domain.ListingSnapshot, error) {
	args := m.Called(ctx, url)
	return args.Get(0).(domain.ListingSnapshot), args.Error(1)
}

func newTestServer(t *testing.T, sc domain.ListingScraper) (*httptest.Server, *memRepo) {
	t.Helper()
	repo := &memRepo{byID: map[string]domain.Property{}}
	merger := app.NewMerger(domain.NewAliasTable(nil), func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }, app.DefaultMergerOptions())
	h := &httpserver.Handlers{
		Q:         app.NewQueryService(repo, nil, time.Minute),
		I:         app.NewIngestionService(repo, nil, sc, merger),
		MaxUpload: 1024,
	}
	s := httpserver.New(5 * time.Second)
	s.MountHandlers(h)
	ts := httptest.NewServer(s.Mux())
	t.Cleanup(ts.Close)
	return ts, repo
}

const csvBody = "Date,Type,Confirmation code,Listing,Gross earnings,Nights\n" +
	"2024-01-05,Reservation,C1,Unit 1,100,2\n" +
	"2024-01-06,Reservation,C1,Unit 1,20,\n"

// ---- tests ----

func TestUploadTransactions_ThenGetWithETag(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/v1/uploads/transactions?start=2024-01-01&end=2024-01-31", "text/csv", strings.NewReader(csvBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out app.TransactionsResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Properties, 1)
	assert.True(t, out.Parsed.TotalRevenue.Equal(out.Properties[0].DataSources.CSV.Metrics.TotalRevenue))
	assert.Equal(t, 2, out.Parsed.RowsSeen)

	id := out.Properties[0].ID
	get, err := http.Get(ts.URL + "/v1/properties/" + id)
	require.NoError(t, err)
	get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)
	etag := get.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/properties/"+id, nil)
	req.Header.Set("If-None-Match", etag)
	cached, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	cached.Body.Close()
	assert.Equal(t, http.StatusNotModified, cached.StatusCode)
}

func TestUploadTransactions_BadWindow(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	for _, q := range []string{"?start=2024-02-01&end=2024-01-01", "?start=2024-01-01", "?start=yesterday&end=today"} {
		resp, err := http.Post(ts.URL+"/v1/uploads/transactions"+q, "text/csv", strings.NewReader(csvBody))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	}
}

func TestUploadTransactions_TooLarge(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	big := csvBody + strings.Repeat("2024-01-07,Reservation,C9,Unit 1,1,1\n", 100)
	resp, err := http.Post(ts.URL+"/v1/uploads/transactions", "text/csv", strings.NewReader(big))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestUploadEarnings_FallbackProperty(t *testing.T) {
	ts, repo := newTestServer(t, nil)
	resp, err := http.Post(ts.URL+"/v1/uploads/earnings?property=Cabin", "text/plain",
		strings.NewReader("Gross earnings $5,000.00\nNet earnings $4,500.00\n"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	p, err := repo.GetPropertyByStandardName(context.Background(), "Cabin")
	require.NoError(t, err)
	assert.Equal(t, domain.SourcePDF, p.Metrics.Revenue.Source)
	assert.Equal(t, 4500.0, p.Metrics.Revenue.Value)
}

func TestPostListing_ScrapesWhenSnapshotMissing(t *testing.T) {
	sc := &mockScraper{}
	price := 150.0
	sc.On("GetListing", mock.Anything, "https://example.com/rooms/7").
		Return(domain.ListingSnapshot{NightlyPrice: &price}, nil).Once()
	ts, _ := newTestServer(t, sc)

	body := `{"propertyName":"Loft","url":"https://example.com/rooms/7"}`
	resp, err := http.Post(ts.URL+"/v1/listings", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p domain.Property
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, 150.0, p.Metrics.Pricing.Value)
	assert.Equal(t, domain.SourceScraped, p.Metrics.Pricing.Source)
	assert.Equal(t, 30, p.DataCompleteness)
	sc.AssertExpectations(t)
}

func TestPostListing_Validation(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	for _, body := range []string{`{`, `{"url":"x"}`} {
		resp, err := http.Post(ts.URL+"/v1/listings", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestDeleteAndRefreshErrors(t *testing.T) {
	ts, _ := newTestServer(t, &mockScraper{})

	body := `{"propertyName":"No Url","snapshot":{}}`
	resp, err := http.Post(ts.URL+"/v1/listings", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	var p domain.Property
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	resp.Body.Close()

	refresh, err := http.Post(ts.URL+"/v1/properties/"+p.ID+"/refresh-listing", "application/json", nil)
	require.NoError(t, err)
	refresh.Body.Close()
	assert.Equal(t, http.StatusConflict, refresh.StatusCode)

	del := func() int {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/properties/"+p.ID, nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusNoContent, del())
	assert.Equal(t, http.StatusNotFound, del())

	missing, err := http.Get(ts.URL + "/v1/properties/" + p.ID)
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestListProperties_LimitValidation(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/v1/properties?limit=0")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ok, err := http.Get(ts.URL + "/v1/properties")
	require.NoError(t, err)
	ok.Body.Close()
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}
