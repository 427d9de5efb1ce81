package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydrowatch/riverdash/internal/entities"
)

func mockJSONServer(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestHRFCOFetchLatestBareArray(t *testing.T) {
	server := mockJSONServer(http.StatusOK, `[
		{"wlobscd":"1018683","wl":"3.12","fw":"95.4","ymdhm":"202608311220"},
		{"wlobscd":"1018683","wl":"3.15","fw":"96.1","ymdhm":"202608311230"}
	]`)
	defer server.Close()

	client := NewHRFCOClient(server.URL, "test-key", 5*time.Second)
	records, err := client.FetchLatest(context.Background(), "1018683")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, entities.SourcePrimary, records[0].Source)
	assert.InDelta(t, 3.12, records[0].Level, 1e-9)
}

func TestHRFCOFetchLatestContentEnvelope(t *testing.T) {
	server := mockJSONServer(http.StatusOK,
		`{"content":[{"WLOBSCD":"1018683","WL":"4.01","FW":"110","YMDHM":"202608311230"}]}`)
	defer server.Close()

	client := NewHRFCOClient(server.URL, "test-key", 5*time.Second)
	records, err := client.FetchLatest(context.Background(), "1018683")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 4.01, records[0].Level, 1e-9)
	assert.InDelta(t, 110, records[0].FlowRate, 1e-9)
}

func TestHRFCOFetchLatestListEnvelope(t *testing.T) {
	server := mockJSONServer(http.StatusOK,
		`{"list":[{"wlobscd":"1018683","wl":"2.2","ymdhm":"202608311230"}]}`)
	defer server.Close()

	client := NewHRFCOClient(server.URL, "test-key", 5*time.Second)
	records, err := client.FetchLatest(context.Background(), "1018683")
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestHRFCOEmptyResponse(t *testing.T) {
	server := mockJSONServer(http.StatusOK, `[]`)
	defer server.Close()

	client := NewHRFCOClient(server.URL, "test-key", 5*time.Second)
	_, err := client.FetchLatest(context.Background(), "1018683")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindEmpty, fetchErr.Kind)
}

func TestHRFCOServerError(t *testing.T) {
	server := mockJSONServer(http.StatusInternalServerError, `oops`)
	defer server.Close()

	client := NewHRFCOClient(server.URL, "test-key", 5*time.Second)
	_, err := client.FetchLatest(context.Background(), "1018683")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindTransport, fetchErr.Kind)
}

func TestHRFCOUnreachable(t *testing.T) {
	server := mockJSONServer(http.StatusOK, `[]`)
	server.Close() // connection refused

	client := NewHRFCOClient(server.URL, "test-key", time.Second)
	_, err := client.FetchLatest(context.Background(), "1018683")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindTransport, fetchErr.Kind)
}

func TestHRFCOMalformedBody(t *testing.T) {
	server := mockJSONServer(http.StatusOK, `<html>not json</html>`)
	defer server.Close()

	client := NewHRFCOClient(server.URL, "test-key", 5*time.Second)
	_, err := client.FetchLatest(context.Background(), "1018683")

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindParse, fetchErr.Kind)
}

func TestHRFCOSeriesRequestsTimeRange(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[{"wl":"1.0","ymdhm":"202608311230"}]`))
	}))
	defer server.Close()

	client := NewHRFCOClient(server.URL, "test-key", 5*time.Second)
	_, err := client.FetchSeries(context.Background(), "1018683", 3)
	require.NoError(t, err)
	assert.Contains(t, gotPath, "/test-key/waterlevel/list/10M/1018683/")
}
