package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/maltedev/fixprice-scraper/internal/crawler"
	"github.com/maltedev/fixprice-scraper/internal/database"
	"github.com/maltedev/fixprice-scraper/internal/jobs"
	"github.com/maltedev/fixprice-scraper/internal/models"
	"github.com/maltedev/fixprice-scraper/internal/parser"
	"github.com/maltedev/fixprice-scraper/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body><div class="category-content"><div class="products">
<div class="product__wrapper"><div class="details"><div class="description"><a href="/catalog/p-1">1</a></div></div></div>
<div class="product__wrapper"><div class="details"><div class="description"><a href="/catalog/p-2">2</a></div></div></div>
</div></div><div class="pagination pagination"></div></body></html>`

const detailPage = `<html><body><div class="header">
<div class="crumb"><span>Главная</span></div><div class="crumb"><span>Косметика</span></div><div class="crumb"><span>Мыло</span></div>
</div><h1 class="title">Мыло</h1>
<div class="product"><div class="product-images"><div class="slider gallery"><link href="https://img.fix-price.com/1.jpg"></div></div>
<div class="product-details"><div class="visible-part"><div class="regular-price">100 RUB</div><div class="special-price">80 RUB</div></div>
<div class="properties"><p class="property"><span class="title">Код товара</span><span class="value">777</span></p></div></div></div>
</body></html>`

type fakeRecords map[string]*models.ProductRecord

func (f fakeRecords) Get(ctx context.Context, key string) (*models.ProductRecord, error) {
	record, ok := f[key]
	if !ok {
		return nil, database.ErrRecordNotFound
	}
	return record, nil
}

func newTestServer(t *testing.T, run jobs.RunFunc) (*httptest.Server, *jobs.Manager) {
	t.Helper()
	return newTestServerWithRecords(t, run, nil)
}

func newTestServerWithRecords(t *testing.T, run jobs.RunFunc, records RecordLookup) (*httptest.Server, *jobs.Manager) {
	t.Helper()

	if run == nil {
		run = func(ctx context.Context, req jobs.Request, out sink.Sink) (*crawler.Stats, error) {
			record := models.NewProductRecord(req.CatalogURLs[0]+"/p-1", time.Unix(1718000000, 0))
			record.Title = "Мыло"
			if err := out.Emit(ctx, record); err != nil {
				return nil, err
			}
			return &crawler.Stats{Pages: 2, Records: 1}, nil
		}
	}

	p := parser.NewCatalogParser(parser.DefaultSelectors(), parser.ListingOptions{}, nil)
	manager := jobs.NewManager(run, nil)
	h := NewHandlers(p, manager, records, nil)
	h.now = func() time.Time { return time.Unix(1718000000, 0) }

	server := httptest.NewServer(NewRouter(h, RouterOptions{}))
	t.Cleanup(server.Close)
	return server, manager
}

func post(t *testing.T, target, contentType, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(target, contentType, strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestHealth(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestParseListingEndpoint(t *testing.T) {
	server, _ := newTestServer(t, nil)

	tests := []struct {
		name       string
		pageURL    string
		body       string
		wantStatus int
		wantNext   string
	}{
		{
			name:       "links and next page",
			pageURL:    "https://fix-price.com/catalog/kosmetika?page=3",
			body:       listingPage,
			wantStatus: http.StatusOK,
			wantNext:   "https://fix-price.com/catalog/kosmetika?page=4",
		},
		{
			name:       "pagination without page parameter",
			pageURL:    "https://fix-price.com/catalog/kosmetika",
			body:       listingPage,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "relative url",
			pageURL:    "/catalog/kosmetika?page=1",
			body:       listingPage,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty body",
			pageURL:    "https://fix-price.com/catalog/kosmetika?page=1",
			body:       "  ",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := server.URL + "/api/v1/parse/listing?url=" + url.QueryEscape(tt.pageURL)
			resp, body := post(t, target, "text/html", tt.body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != http.StatusOK {
				assert.Contains(t, body, "error")
				return
			}
			assert.Equal(t, tt.wantNext, body["next_page"])
			assert.Equal(t, []interface{}{"https://fix-price.com/catalog/p-1", "https://fix-price.com/catalog/p-2"}, body["links"])
		})
	}
}

func TestParseDetailEndpoint(t *testing.T) {
	server, _ := newTestServer(t, nil)
	pageURL := url.QueryEscape("https://fix-price.com/catalog/p-777")

	resp, body := post(t, server.URL+"/api/v1/parse/detail?url="+pageURL, "text/html", detailPage)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "777", body["RPC"])
	assert.Equal(t, "Мыло", body["title"])
	assert.Equal(t, float64(1718000000), body["timestamp"])
	assert.Equal(t, []interface{}{"Главная", "Косметика"}, body["section"])

	price := body["price_data"].(map[string]interface{})
	assert.Equal(t, 80.0, price["current"])
	assert.Equal(t, 100.0, price["original"])
	assert.Equal(t, "Discount 20%", price["sale_tag"])

	resp, body = post(t, server.URL+"/api/v1/parse/detail?url="+pageURL, "text/html", "<html><body><p>empty</p></body></html>")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "title")
}

func TestCrawlJobLifecycle(t *testing.T) {
	server, manager := newTestServer(t, nil)

	resp, body := post(t, server.URL+"/api/v1/crawl", "application/json",
		`{"catalog_urls":["https://fix-price.com/catalog/kosmetika"],"max_pages":2}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	jobID := body["job_id"].(string)
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		job, err := manager.GetJob(jobID)
		return err == nil && job.Status == jobs.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	getResp, err := http.Get(server.URL + "/api/v1/jobs/" + jobID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusOK, getResp.StatusCode)

	var job jobs.Job
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&job))
	assert.Equal(t, jobs.StatusCompleted, job.Status)
	require.NotNil(t, job.Stats)
	assert.Equal(t, int64(1), job.Stats.Records)

	recResp, err := http.Get(server.URL + "/api/v1/jobs/" + jobID + "/records")
	require.NoError(t, err)
	defer recResp.Body.Close()

	var records []models.ProductRecord
	require.NoError(t, json.NewDecoder(recResp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "Мыло", records[0].Title)

	listResp, err := http.Get(server.URL + "/api/v1/jobs")
	require.NoError(t, err)
	defer listResp.Body.Close()

	var list []jobs.Job
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestCrawlValidationAndMissingJob(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp, _ := post(t, server.URL+"/api/v1/crawl", "application/json", `{"catalog_urls":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, server.URL+"/api/v1/crawl", "application/json", `{"catalog_urls":["catalog/x"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, server.URL+"/api/v1/crawl", "application/json", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	getResp, err := http.Get(server.URL + "/api/v1/jobs/does-not-exist")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestGetRecord(t *testing.T) {
	record := models.NewProductRecord("https://fix-price.com/catalog/p-777", time.Unix(1718000000, 0))
	record.RPC = "777"
	record.Title = "Мыло"

	server, _ := newTestServerWithRecords(t, nil, fakeRecords{"777": record})

	resp, err := http.Get(server.URL + "/api/v1/records/777")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.ProductRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "Мыло", got.Title)
	assert.Equal(t, "777", got.RPC)

	missing, err := http.Get(server.URL + "/api/v1/records/778")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGetRecordWithoutStorage(t *testing.T) {
	server, _ := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/api/v1/records/777")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
