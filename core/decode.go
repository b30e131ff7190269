package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// UnmarshalJSON decodes a stat record from any JSON shape. Both snake_case
// and camelCase keys are accepted. Missing, non-numeric or negative counters
// decode as 0 and anything that is not an object decodes as the zero record,
// so decoding never fails once the input is syntactically valid JSON.
func (r *StatRecord) UnmarshalJSON(b []byte) error {
	*r = StatRecord{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil
	}
	r.TournamentsJoined = countField(raw, "tournaments_joined", "tournamentsJoined")
	r.TournamentsWon = countField(raw, "tournaments_won", "tournamentsWon")
	r.TournamentsCreated = countField(raw, "tournaments_created", "tournamentsCreated")
	r.TotalEarnings = max(numberField(raw, "total_earnings", "totalEarnings"), 0)
	r.ExistingBadgeIDs = badgeField(raw, "existing_badge_ids", "existingBadgeIds")
	return nil
}

func lookup(raw map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func countField(raw map[string]any, keys ...string) int64 {
	v, ok := lookup(raw, keys...)
	if !ok {
		return 0
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return max(i, 0)
		}
	}
	f := toFloat(v)
	switch {
	case f <= 0:
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(f)
}

func numberField(raw map[string]any, keys ...string) float64 {
	v, ok := lookup(raw, keys...)
	if !ok {
		return 0
	}
	return toFloat(v)
}

func toFloat(v any) float64 {
	var f float64
	switch t := v.(type) {
	case json.Number:
		f, _ = t.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(t), 64)
	case float64:
		f = t
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// badgeField accepts a list of ids or of objects carrying an "id" string.
func badgeField(raw map[string]any, keys ...string) []BadgeID {
	v, ok := lookup(raw, keys...)
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	ids := make([]BadgeID, 0, len(list))
	for _, item := range list {
		switch t := item.(type) {
		case string:
			ids = append(ids, BadgeID(t))
		case map[string]any:
			if id, ok := t["id"].(string); ok {
				ids = append(ids, BadgeID(id))
			}
		}
	}
	return NormalizeBadgeIDs(ids)
}
