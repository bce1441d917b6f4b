package entitystore

import (
	"encoding/json"
	"time"
)

// probe pulls the identity and freshness fields out of one entity object.
// Timestamps are kept as strings since upstream serializers disagree on the
// exact layout.
type probe struct {
	ID          string `json:"id"`
	UpdatedAt   string `json:"updated_at"`
	LastUpdated string `json:"lastUpdated"`
	CreatedAt   string `json:"created_at"`
}

var stampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05", // naive datetime, no zone
}

// Decompose parses a listable response payload into entity records. It
// accepts a bare JSON array, an object wrapping the array under the
// collection name, or (for the user profile) a single object. Payloads of any
// other shape yield no records; the store is best effort and never blocks the
// response path.
func Decompose(collection string, payload []byte, now time.Time) []Record {
	if collection == UserData {
		if rec, ok := toRecord(payload, now); ok {
			rec.ID = ProfileID
			return []Record{rec}
		}
		return nil
	}

	items, ok := elements(collection, payload)
	if !ok {
		return nil
	}

	recs := make([]Record, 0, len(items))
	for _, item := range items {
		rec, ok := toRecord(item, now)
		if !ok || rec.ID == "" {
			continue // records are keyed by id; anonymous objects cannot be stored
		}
		recs = append(recs, rec)
	}
	return recs
}

// Reassemble builds a response payload from records, matching the shape the
// live endpoint returns: a bare array for collections, the document itself
// for the user profile.
func Reassemble(collection string, recs []Record) ([]byte, error) {
	if collection == UserData {
		if len(recs) == 0 {
			return nil, nil
		}
		newest := recs[0]
		for _, rec := range recs[1:] {
			if rec.LastUpdated.After(newest.LastUpdated) {
				newest = rec
			}
		}
		return newest.Data, nil
	}

	arr := make([]json.RawMessage, 0, len(recs))
	for _, rec := range recs {
		arr = append(arr, rec.Data)
	}
	return json.Marshal(arr)
}

// DecomposeDetail parses a single-entity response, the shape detail and
// create/update endpoints return.
func DecomposeDetail(payload []byte, now time.Time) (Record, bool) {
	rec, ok := toRecord(payload, now)
	if !ok || rec.ID == "" {
		return Record{}, false
	}
	return rec, true
}

func elements(collection string, payload []byte) ([]json.RawMessage, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(payload, &items); err == nil {
		return items, true
	}

	// Some endpoints wrap the list: {"products": [...]}.
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return nil, false
	}
	inner, found := wrapped[collection]
	if !found {
		return nil, false
	}
	if err := json.Unmarshal(inner, &items); err != nil {
		return nil, false
	}
	return items, true
}

func toRecord(item json.RawMessage, now time.Time) (Record, bool) {
	var p probe
	if err := json.Unmarshal(item, &p); err != nil {
		return Record{}, false
	}
	if p.ID == "" && p.UpdatedAt == "" && p.CreatedAt == "" {
		return Record{}, false
	}

	stamp := now
	for _, raw := range []string{p.UpdatedAt, p.LastUpdated, p.CreatedAt} {
		if ts, ok := parseStamp(raw); ok {
			stamp = ts
			break
		}
	}
	return Record{ID: p.ID, LastUpdated: stamp, Data: item}, true
}

func parseStamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range stampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
