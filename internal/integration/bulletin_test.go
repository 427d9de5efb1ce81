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

const bulletinHTML = `
<!DOCTYPE html>
<html>
<head><title>수위 현황</title></head>
<body>
	<div class="time">2026.08.31 14:40 기준</div>
	<table>
		<tbody>
			<tr><td>1018683</td><td><a href="#">잠수교</a></td><td>3.21</td><td>98.5</td></tr>
			<tr><td>1018680</td><td>한강대교</td><td>2.85</td><td>450.2</td></tr>
			<tr><td>1018675</td><td>중랑교</td><td>-</td><td>-</td></tr>
		</tbody>
	</table>
</body>
</html>`

func mockHTMLServer(html string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(html))
	}))
}

func TestBulletinFetchAll(t *testing.T) {
	server := mockHTMLServer(bulletinHTML)
	defer server.Close()

	scraper := NewBulletinScraper(server.URL, 5*time.Second)
	rows, err := scraper.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "1018683", rows[0].Code)
	assert.Equal(t, "잠수교", rows[0].Name)
	assert.InDelta(t, 3.21, rows[0].Level, 1e-9)
	assert.InDelta(t, 98.5, rows[0].FlowRate, 1e-9)

	// "-" placeholders coerce to zero.
	assert.Zero(t, rows[2].Level)

	expected := time.Date(2026, time.August, 31, 14, 40, 0, 0, entities.KST)
	assert.True(t, rows[0].ObservedAt.Equal(expected),
		"expected %s, got %s", expected, rows[0].ObservedAt)
}

func TestBulletinFetchStation(t *testing.T) {
	server := mockHTMLServer(bulletinHTML)
	defer server.Close()

	station := entities.Station{ID: "1018680", Name: "한강대교", Location: "한강"}
	scraper := NewBulletinScraper(server.URL, 5*time.Second)
	records, err := scraper.FetchStation(context.Background(), station)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "1018680", records[0].StationID)
	assert.InDelta(t, 2.85, records[0].Level, 1e-9)
	assert.Equal(t, entities.SourceFallback, records[0].Source)
	assert.Equal(t, records[0].ObservedAt.UnixMilli(), records[0].Timestamp)
}

func TestBulletinStationNotListed(t *testing.T) {
	server := mockHTMLServer(bulletinHTML)
	defer server.Close()

	station := entities.Station{ID: "9999999", Name: "없는다리"}
	scraper := NewBulletinScraper(server.URL, 5*time.Second)
	_, err := scraper.FetchStation(context.Background(), station)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindEmpty, fetchErr.Kind)
}

func TestBulletinEmptyTable(t *testing.T) {
	server := mockHTMLServer(`<html><body><table><tbody></tbody></table></body></html>`)
	defer server.Close()

	scraper := NewBulletinScraper(server.URL, 5*time.Second)
	_, err := scraper.FetchAll(context.Background())

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, KindEmpty, fetchErr.Kind)
}

func TestBulletinMissingTimestampFallsBackToNow(t *testing.T) {
	server := mockHTMLServer(`
		<html><body>
		<table><tbody>
			<tr><td>1018683</td><td>잠수교</td><td>1.5</td><td>50</td></tr>
		</tbody></table>
		</body></html>`)
	defer server.Close()

	scraper := NewBulletinScraper(server.URL, 5*time.Second)
	rows, err := scraper.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.WithinDuration(t, time.Now(), rows[0].ObservedAt, 10*time.Second)
}
