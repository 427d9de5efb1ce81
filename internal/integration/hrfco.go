package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hydrowatch/riverdash/internal/entities"
)

const stagePrimary = "primary"

// newHTTPClient builds the tuned client shared by all integrations.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// HRFCOClient talks to the Han River Flood Control Office water-level API,
// the primary source for every station.
type HRFCOClient struct {
	baseURL    string
	serviceKey string
	client     *http.Client
}

// NewHRFCOClient creates a primary-source client. An empty baseURL selects
// the official endpoint.
func NewHRFCOClient(baseURL, serviceKey string, timeout time.Duration) *HRFCOClient {
	if baseURL == "" {
		baseURL = "https://api.hrfco.go.kr"
	}
	return &HRFCOClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		client:     newHTTPClient(timeout),
	}
}

// FetchLatest retrieves the most recent 10-minute readings for a station.
func (c *HRFCOClient) FetchLatest(ctx context.Context, stationID string) ([]entities.Record, error) {
	url := fmt.Sprintf("%s/%s/waterlevel/list/10M/%s.json", c.baseURL, c.serviceKey, stationID)
	return c.fetch(ctx, stationID, url)
}

// FetchSeries retrieves a time-ranged series covering the trailing
// windowHours hours.
func (c *HRFCOClient) FetchSeries(ctx context.Context, stationID string, windowHours int) ([]entities.Record, error) {
	if windowHours <= 0 {
		return c.FetchLatest(ctx, stationID)
	}
	end := time.Now().In(entities.KST)
	start := end.Add(-time.Duration(windowHours) * time.Hour)
	url := fmt.Sprintf("%s/%s/waterlevel/list/10M/%s/%s/%s.json",
		c.baseURL, c.serviceKey, stationID,
		start.Format("200601021504"), end.Format("200601021504"))
	return c.fetch(ctx, stationID, url)
}

func (c *HRFCOClient) fetch(ctx context.Context, stationID, url string) ([]entities.Record, error) {
	log.Printf("Fetching primary water-level data for station %s", stationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewFetchError(stagePrimary, KindTransport, err)
	}
	res, err := c.client.Do(req)
	if err != nil {
		log.Printf("Primary request failed for station %s: %v", stationID, err)
		return nil, NewFetchError(stagePrimary, KindTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Printf("Primary source returned status %d for station %s", res.StatusCode, stationID)
		return nil, NewFetchError(stagePrimary, KindTransport,
			fmt.Errorf("unexpected status code: %d %s", res.StatusCode, res.Status))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, NewFetchError(stagePrimary, KindTransport, err)
	}

	raws, err := decodeRecordList(body)
	if err != nil {
		return nil, NewFetchError(stagePrimary, KindParse, err)
	}

	records, err := AdaptRecords(stationID, raws, entities.SourcePrimary, stagePrimary)
	if err != nil {
		return nil, err
	}
	log.Printf("Successfully fetched %d primary records for station %s", len(records), stationID)
	return records, nil
}

// decodeRecordList accepts either a bare JSON array or a content/list
// envelope and returns the element maps.
func decodeRecordList(body []byte) ([]map[string]any, error) {
	var direct []map[string]any
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}

	var envelope struct {
		Content []map[string]any `json:"content"`
		List    []map[string]any `json:"list"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("response is neither an array nor an envelope: %v", err)
	}
	if envelope.Content != nil {
		return envelope.Content, nil
	}
	if envelope.List != nil {
		return envelope.List, nil
	}
	return nil, fmt.Errorf("envelope carries no content or list field")
}
