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

var portalStation = entities.Station{
	ID:       "1018683",
	Name:     "잠수교",
	Location: "한강",
	Thresholds: entities.Thresholds{
		Attention: 2.5, Caution: 5.5, Warning: 6.2, Danger: 6.5,
	},
}

func TestPortalFetchByNameFiltersAndTags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/wkw/wl_dubwlobs_list.do", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "잠수교", r.PostForm.Get("name"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"list":[
			{"obsnm":"한강 잠수교(서울)","curwl":"3.42","obsdh":"202608311200"},
			{"obsnm":"전혀 다른 관측소","curwl":"9.99","obsdh":"202608311200"}
		]}`))
	}))
	defer server.Close()

	client := NewPortalClient(server.URL, 5*time.Second)
	records, err := client.FetchByName(context.Background(), portalStation)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "1018683", records[0].StationID) // pinned to the queried station
	assert.InDelta(t, 3.42, records[0].Level, 1e-9)
	assert.Equal(t, entities.SourceFallback, records[0].Source)
}

func TestPortalNoMatchingEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"list":[{"obsnm":"다른 관측소","curwl":"1.0","obsdh":"202608311200"}]}`))
	}))
	defer server.Close()

	client := NewPortalClient(server.URL, 5*time.Second)
	_, err := client.FetchByName(context.Background(), portalStation)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindEmpty, fetchErr.Kind)
}

func TestPortalNestedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"list":[{"name":"잠수교","wl":"2.1","ymdhm":"202608311200"}]}}`))
	}))
	defer server.Close()

	client := NewPortalClient(server.URL, 5*time.Second)
	records, err := client.FetchByName(context.Background(), portalStation)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 2.1, records[0].Level, 1e-9)
}

func TestPortalTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewPortalClient(server.URL, 5*time.Second)
	_, err := client.FetchByName(context.Background(), portalStation)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindTransport, fetchErr.Kind)
}
