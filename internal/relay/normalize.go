package relay

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"quantlab/internal/models"
)

// epochMillisCutoff separates epoch-seconds from epoch-millis values.
// Seconds-since-epoch stays below 1e10 until year ~2286 while
// millis-since-epoch is ~13 digits, so the cutoff is unambiguous for
// plausible dates. The constant is load-bearing for compatibility with
// the engine's mixed formats; do not change it.
const epochMillisCutoff = 10_000_000_000

// Timestamp layouts the engine has been seen emitting besides epochs.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeSide coerces the engine's side vocabulary (LONG/SHORT,
// BUY/SELL, any casing) onto the two canonical tokens. When no side
// token is recognized it falls back to price direction: entry below
// exit is treated as BUY. That is a rough proxy for a directional bet,
// not a true side indicator; it is kept because the storage layer only
// accepts BUY or SELL. Total: never fails, never returns anything
// else.
func NormalizeSide(p TradePayload) string {
	switch strings.ToUpper(strings.TrimSpace(p.Side)) {
	case "LONG", "BUY":
		return models.SideBuy
	case "SHORT", "SELL":
		return models.SideSell
	}

	if p.EntryPrice != nil && p.ExitPrice != nil {
		if *p.EntryPrice < *p.ExitPrice {
			return models.SideBuy
		}
		return models.SideSell
	}

	return models.SideBuy
}

// NormalizeTimestamp coerces a decoded JSON timestamp value (null,
// number, numeric string or date string) into a concrete instant.
// Null means "now"; an unparseable string yields the zero time, which
// nullable columns accept as an explicit invalid marker. Total: never
// fails.
func NormalizeTimestamp(v interface{}) time.Time {
	switch t := v.(type) {
	case nil:
		return time.Now().UTC()
	case float64:
		return fromEpoch(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}
		}
		return fromEpoch(f)
	case int64:
		return fromEpoch(float64(t))
	case int:
		return fromEpoch(float64(t))
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return fromEpoch(f)
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.ParseInLocation(layout, strings.TrimSpace(t), time.UTC); err == nil {
				return ts
			}
		}
		return time.Time{}
	default:
		return time.Time{}
	}
}

func fromEpoch(f float64) time.Time {
	if f > epochMillisCutoff || f < -epochMillisCutoff {
		return time.UnixMilli(int64(f)).UTC()
	}
	return time.UnixMilli(int64(f * 1000)).UTC()
}
