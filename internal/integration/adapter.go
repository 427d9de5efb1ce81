package integration

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hydrowatch/riverdash/internal/entities"
)

// The two upstreams disagree on field names and casing, and the portal's
// schema is not guaranteed stable. Each logical field therefore has an
// ordered candidate-key list; the first present, coercible value wins.
var (
	levelKeys = []string{"wl", "WL", "waterlevel", "level", "curwl"}
	flowKeys  = []string{"fw", "FW", "flow", "curfw"}
	codeKeys  = []string{"wlobscd", "WLOBSCD", "obscd", "wlobs_cd"}
	timeKeys  = []string{"ymdhm", "YMDHM", "obsdh", "ymd_hm"}
	nameKeys  = []string{"obsnm", "OBSNM", "wlobsnm", "name", "site_name"}
)

// pickField returns the first candidate key present in the map, rendered as
// a trimmed string.
func pickField(m map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			return strings.TrimSpace(t), true
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		}
	}
	return "", false
}

// coerceNumber applies the source's coercion rule: trim, treat an empty
// string as "0", parseFloat. Unparseable values coerce to 0 as well, so a
// stray "-" placeholder behaves like the empty string.
func coerceNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// parseYMDHM parses the primary source's YYYYMMDDHHMM timestamp in KST.
func parseYMDHM(s string) (time.Time, error) {
	return time.ParseInLocation("200601021504", strings.TrimSpace(s), entities.KST)
}

// AdaptRecords converts loosely-typed raw records from either source into
// canonical records sorted ascending by timestamp.
//
// Rows whose level and flow both coerce to zero are treated as placeholders
// and dropped — unless every row is like that, in which case the readings are
// taken at face value rather than failing: a genuinely dry gauge reads zero.
func AdaptRecords(stationID string, raws []map[string]any, source entities.Source, stage string) ([]entities.Record, error) {
	var records []entities.Record
	anyNonzero := false
	parseFailures := 0

	for _, raw := range raws {
		ts, ok := pickField(raw, timeKeys)
		if !ok {
			parseFailures++
			continue
		}
		observedAt, err := parseYMDHM(ts)
		if err != nil {
			parseFailures++
			continue
		}

		levelStr, _ := pickField(raw, levelKeys)
		flowStr, _ := pickField(raw, flowKeys)
		level := coerceNumber(levelStr)
		flow := coerceNumber(flowStr)
		if level != 0 || flow != 0 {
			anyNonzero = true
		}

		id := stationID
		if code, ok := pickField(raw, codeKeys); ok && code != "" {
			id = code
		}

		records = append(records, entities.Record{
			StationID:  id,
			Level:      level,
			ObservedAt: observedAt,
			Timestamp:  observedAt.UnixMilli(),
			FlowRate:   flow,
			Source:     source,
		})
	}

	if len(records) == 0 {
		if parseFailures > 0 {
			return nil, NewFetchError(stage, KindParse,
				fmt.Errorf("no recognizable fields in %d elements", len(raws)))
		}
		return nil, NewFetchError(stage, KindEmpty,
			fmt.Errorf("source returned zero parseable elements"))
	}

	// Drop all-zero placeholder rows only when a sibling carries real data.
	if anyNonzero {
		filtered := records[:0]
		for _, r := range records {
			if r.Level == 0 && r.FlowRate == 0 {
				continue
			}
			filtered = append(filtered, r)
		}
		records = filtered
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})
	return records, nil
}
