package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hydrowatch/riverdash/internal/entities"
)

// RainfallPoint is one hour of observed or forecast rainfall.
type RainfallPoint struct {
	Time time.Time `json:"time"`
	MM   float64   `json:"mm"`
}

// KMAClient pulls hourly rainfall from the KMA short-term service for the
// configured forecast grid point. Only the rainfall category is consumed;
// the rest of the schema is an opaque collaborator.
type KMAClient struct {
	baseURL    string
	serviceKey string
	nx, ny     int
	client     *http.Client
}

// NewKMAClient creates a KMA rainfall client.
func NewKMAClient(baseURL, serviceKey string, nx, ny int, timeout time.Duration) *KMAClient {
	if baseURL == "" {
		baseURL = "http://apis.data.go.kr/1360000/VilageFcstInfoService_2.0"
	}
	return &KMAClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		nx:         nx,
		ny:         ny,
		client:     newHTTPClient(timeout),
	}
}

type kmaResponse struct {
	Response struct {
		Body struct {
			Items struct {
				Item []struct {
					Category  string `json:"category"`
					FcstDate  string `json:"fcstDate"`
					FcstTime  string `json:"fcstTime"`
					FcstValue string `json:"fcstValue"`
				} `json:"item"`
			} `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

// FetchHourlyRainfall returns the hourly rainfall series (category RN1)
// around the current base time, sorted ascending.
func (c *KMAClient) FetchHourlyRainfall(ctx context.Context) ([]RainfallPoint, error) {
	now := time.Now().In(entities.KST)
	base := now.Add(-1 * time.Hour) // latest published base time
	apiURL := fmt.Sprintf(
		"%s/getUltraSrtFcst?serviceKey=%s&pageNo=1&numOfRows=60&dataType=JSON&base_date=%s&base_time=%s&nx=%d&ny=%d",
		c.baseURL, c.serviceKey, base.Format("20060102"), base.Format("1504"), c.nx, c.ny)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build KMA request: %v", err)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("KMA request failed: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("KMA returned status %d", res.StatusCode)
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read KMA response: %v", err)
	}

	var parsed kmaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		log.Printf("KMA JSON parse failed, body: %.200s", string(body))
		return nil, fmt.Errorf("failed to parse KMA response: %v", err)
	}

	var points []RainfallPoint
	for _, item := range parsed.Response.Body.Items.Item {
		if item.Category != "RN1" {
			continue
		}
		ts, err := time.ParseInLocation("200601021504", item.FcstDate+item.FcstTime, entities.KST)
		if err != nil {
			continue
		}
		points = append(points, RainfallPoint{Time: ts, MM: parseRainfallValue(item.FcstValue)})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("KMA response carried no rainfall items")
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	log.Printf("Fetched %d hourly rainfall points from KMA", len(points))
	return points, nil
}

// parseRainfallValue handles KMA's stringly rainfall values: "강수없음"
// (no rain) and "1mm 미만" (under 1mm) alongside plain "2.5" readings.
func parseRainfallValue(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" || v == "강수없음" {
		return 0
	}
	if strings.Contains(v, "미만") {
		return 0.5
	}
	v = strings.TrimSuffix(v, "mm")
	return coerceNumber(v)
}

// OWMClient reads current conditions from OpenWeatherMap; the dashboard uses
// its rain.1h value as the default hypothetical rainfall for predictions.
type OWMClient struct {
	baseURL string
	apiKey  string
	lat     float64
	lon     float64
	client  *http.Client
}

// NewOWMClient creates an OpenWeatherMap client.
func NewOWMClient(baseURL, apiKey string, lat, lon float64, timeout time.Duration) *OWMClient {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/data/2.5"
	}
	return &OWMClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		lat:     lat,
		lon:     lon,
		client:  newHTTPClient(timeout),
	}
}

// CurrentRainfall returns the rain accumulated over the last hour in mm.
// A response without a rain block simply means it is not raining.
func (c *OWMClient) CurrentRainfall(ctx context.Context) (float64, error) {
	apiURL := fmt.Sprintf("%s/weather?lat=%g&lon=%g&units=metric&appid=%s",
		c.baseURL, c.lat, c.lon, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build OWM request: %v", err)
	}
	res, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("OWM request failed: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("OWM returned status %d", res.StatusCode)
	}

	var parsed struct {
		Rain struct {
			OneHour float64 `json:"1h"`
		} `json:"rain"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("failed to parse OWM response: %v", err)
	}
	return parsed.Rain.OneHour, nil
}
