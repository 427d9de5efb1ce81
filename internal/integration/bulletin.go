package integration

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hydrowatch/riverdash/internal/entities"
)

const stageBulletin = "bulletin"

// BulletinRow is one station row of the HTML status table.
type BulletinRow struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Level      float64   `json:"level"`
	FlowRate   float64   `json:"flowRate"`
	ObservedAt time.Time `json:"observedAt"`
}

// BulletinScraper scrapes the flood control office's HTML status table, the
// source of last resort when both JSON upstreams are down. The table carries
// one current reading per station under a page-wide observation timestamp.
type BulletinScraper struct {
	url    string
	client *http.Client
}

// NewBulletinScraper creates a bulletin scraper. An empty url selects the
// official status page.
func NewBulletinScraper(url string, timeout time.Duration) *BulletinScraper {
	if url == "" {
		url = "https://www.hrfco.go.kr/sumun/waterlevelList.do"
	}
	return &BulletinScraper{
		url:    url,
		client: newHTTPClient(timeout),
	}
}

// FetchAll scrapes every station row on the bulletin page.
func (b *BulletinScraper) FetchAll(ctx context.Context) ([]BulletinRow, error) {
	log.Printf("Fetching bulletin status table")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, NewFetchError(stageBulletin, KindTransport, err)
	}
	res, err := b.client.Do(req)
	if err != nil {
		log.Printf("Bulletin request failed: %v", err)
		return nil, NewFetchError(stageBulletin, KindTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Printf("Bulletin page returned status %d", res.StatusCode)
		return nil, NewFetchError(stageBulletin, KindTransport,
			fmt.Errorf("unexpected status code: %d %s", res.StatusCode, res.Status))
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, NewFetchError(stageBulletin, KindParse, err)
	}

	observedAt := extractBulletinTimestamp(doc)

	var rows []BulletinRow
	rowCount := 0
	doc.Find("table tbody tr").Each(func(index int, row *goquery.Selection) {
		rowCount++
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}

		code := strings.TrimSpace(cells.Eq(0).Text())
		name := strings.TrimSpace(cells.Eq(1).Text())
		if name == "" {
			name = strings.TrimSpace(cells.Eq(1).Find("a").Text())
		}
		levelStr := strings.TrimSpace(cells.Eq(2).Text())
		flowStr := strings.TrimSpace(cells.Eq(3).Text())

		// Skip header and legend rows.
		if code == "" || name == "" || strings.Contains(name, "관측소") {
			return
		}

		rows = append(rows, BulletinRow{
			Code:       code,
			Name:       name,
			Level:      coerceNumber(levelStr),
			FlowRate:   coerceNumber(flowStr),
			ObservedAt: observedAt,
		})
	})

	log.Printf("Bulletin: parsed %d rows, extracted %d station entries", rowCount, len(rows))
	if len(rows) == 0 {
		return nil, NewFetchError(stageBulletin, KindEmpty,
			fmt.Errorf("bulletin table carried no station rows"))
	}
	return rows, nil
}

// FetchStation scrapes the bulletin and keeps the rows matching one station,
// mapped to canonical records tagged FALLBACK.
func (b *BulletinScraper) FetchStation(ctx context.Context, station entities.Station) ([]entities.Record, error) {
	rows, err := b.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	var records []entities.Record
	for _, row := range rows {
		if row.Code != station.ID && !strings.Contains(row.Name, station.Name) {
			continue
		}
		records = append(records, entities.Record{
			StationID:  station.ID,
			Level:      row.Level,
			ObservedAt: row.ObservedAt,
			Timestamp:  row.ObservedAt.UnixMilli(),
			FlowRate:   row.FlowRate,
			Source:     entities.SourceFallback,
		})
	}
	if len(records) == 0 {
		return nil, NewFetchError(stageBulletin, KindEmpty,
			fmt.Errorf("no bulletin rows match station %s (%s)", station.ID, station.Name))
	}
	log.Printf("Successfully extracted %d bulletin records for station %s", len(records), station.ID)
	return records, nil
}

var bulletinTimeRe = regexp.MustCompile(`(\d{4})[.\-/](\d{1,2})[.\-/](\d{1,2})\.?\s+(\d{1,2}):(\d{2})`)

// extractBulletinTimestamp looks for the page-wide observation time. The
// page renders it in a header line like "2026.08.31 14:40 기준"; when no
// such line parses, the current time is used as the teacher-tested fallback.
func extractBulletinTimestamp(doc *goquery.Document) time.Time {
	timestamp := time.Now().In(entities.KST)
	timestampText := ""

	selectors := []string{"div.time", "span.time", "h4", "div"}
	for _, selector := range selectors {
		doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if strings.Contains(text, "기준") && bulletinTimeRe.MatchString(text) {
				timestampText = text
				return false
			}
			return true
		})
		if timestampText != "" {
			break
		}
	}

	if timestampText == "" {
		log.Printf("Bulletin timestamp not found, using current time")
		return timestamp
	}

	m := bulletinTimeRe.FindStringSubmatch(timestampText)
	parsed, err := time.ParseInLocation("2006 1 2 15 4",
		fmt.Sprintf("%s %s %s %s %s", m[1], m[2], m[3], m[4], m[5]), entities.KST)
	if err != nil {
		log.Printf("Failed to parse bulletin timestamp from %q: %v", timestampText, err)
		return timestamp
	}
	log.Printf("Successfully extracted bulletin timestamp: %s", parsed.Format(time.RFC3339))
	return parsed
}
