package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hydrowatch/riverdash/internal/entities"
)

const stageFallback = "fallback"

// PortalClient queries the public data portal, the fallback source. The
// portal is queried by station display name because it exposes no stable
// station code, and its field names drift, so everything goes through the
// candidate-key adapter.
type PortalClient struct {
	baseURL string
	client  *http.Client
}

// NewPortalClient creates a fallback-source client.
func NewPortalClient(baseURL string, timeout time.Duration) *PortalClient {
	if baseURL == "" {
		baseURL = "https://www.water.or.kr"
	}
	return &PortalClient{
		baseURL: baseURL,
		client:  newHTTPClient(timeout),
	}
}

// FetchByName posts a name-filtered query and maps matching entries to
// canonical records tagged FALLBACK. Matching is substring, not equality:
// the portal renders names with river prefixes and bracketed qualifiers.
func (p *PortalClient) FetchByName(ctx context.Context, station entities.Station) ([]entities.Record, error) {
	log.Printf("Fetching fallback data for station %s (%s)", station.ID, station.Name)

	form := url.Values{}
	form.Set("name", station.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/wkw/wl_dubwlobs_list.do", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, NewFetchError(stageFallback, KindTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := p.client.Do(req)
	if err != nil {
		log.Printf("Fallback request failed for station %s: %v", station.ID, err)
		return nil, NewFetchError(stageFallback, KindTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Printf("Fallback source returned status %d for station %s", res.StatusCode, station.ID)
		return nil, NewFetchError(stageFallback, KindTransport,
			fmt.Errorf("unexpected status code: %d %s", res.StatusCode, res.Status))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, NewFetchError(stageFallback, KindTransport, err)
	}

	raws, err := decodePortalList(body)
	if err != nil {
		return nil, NewFetchError(stageFallback, KindParse, err)
	}

	matched := make([]map[string]any, 0, len(raws))
	for _, raw := range raws {
		name, ok := pickField(raw, nameKeys)
		if !ok {
			continue
		}
		if strings.Contains(name, station.Name) {
			matched = append(matched, raw)
		}
	}
	if len(matched) == 0 {
		return nil, NewFetchError(stageFallback, KindEmpty,
			fmt.Errorf("no portal entries match station name %q", station.Name))
	}

	records, err := AdaptRecords(station.ID, matched, entities.SourceFallback, stageFallback)
	if err != nil {
		return nil, err
	}
	// The portal reports whatever code it has, if any; pin the records to
	// the station we were asked about.
	for i := range records {
		records[i].StationID = station.ID
	}
	log.Printf("Successfully fetched %d fallback records for station %s", len(records), station.ID)
	return records, nil
}

func decodePortalList(body []byte) ([]map[string]any, error) {
	raws, err := decodeRecordList(body)
	if err == nil {
		return raws, nil
	}
	// Some portal deployments wrap the list one level deeper.
	var nested struct {
		Result struct {
			List []map[string]any `json:"list"`
		} `json:"result"`
	}
	if jsonErr := json.Unmarshal(body, &nested); jsonErr == nil && nested.Result.List != nil {
		return nested.Result.List, nil
	}
	return nil, err
}
