package docstore

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"winemap/internal/adapters/observability"
	"winemap/internal/domain"
)

// reportDoc is the strict document shape for the posts collection.
type reportDoc struct {
	UserID       string   `json:"userId"`
	UserName     string   `json:"userName"`
	WineryName   string   `json:"wineryName"`
	Content      string   `json:"content"`
	ImageURL     string   `json:"imageUrl"`
	Rating       int      `json:"rating"`
	CreatedAt    int64    `json:"createdAt"`
	LocationName *string  `json:"locationName"`
	LocationLat  *float64 `json:"locationLat"`
	LocationLng  *float64 `json:"locationLng"`
}

// decodeReport turns a remote document into a Report. It is a two-stage
// parse: the strict schema decode is attempted first; if the document has
// drifted (wrong types, odd encodings) every field is reconstructed
// independently with defaults, so one bad document never fails a fetch.
func decodeReport(id string, data json.RawMessage) domain.Report {
	var d reportDoc
	if err := json.Unmarshal(data, &d); err == nil {
		return d.toReport(id)
	}

	observability.ObserveDecodeFallback()
	log.Warn().Str("doc", id).Msg("strict decode failed, rebuilding leniently")

	var raw map[string]any
	_ = json.Unmarshal(data, &raw)
	return domain.Report{
		ID:         id,
		UserID:     lookupStr(raw, "userId"),
		UserName:   lookupStr(raw, "userName"),
		WineryName: lookupStr(raw, "wineryName"),
		Content:    lookupStr(raw, "content"),
		ImageURL:   lookupStr(raw, "imageUrl"),
		Rating:     int(lookupFloat(raw, "rating")),
		CreatedAt:  int64(lookupFloat(raw, "createdAt")),
		Location:   locationFromRaw(raw),
	}
}

func (d reportDoc) toReport(id string) domain.Report {
	r := domain.Report{
		ID:         id,
		UserID:     d.UserID,
		UserName:   d.UserName,
		WineryName: d.WineryName,
		Content:    d.Content,
		ImageURL:   d.ImageURL,
		Rating:     d.Rating,
		CreatedAt:  d.CreatedAt,
	}
	// All three location fields must be present, with a non-empty name.
	if d.LocationName != nil && *d.LocationName != "" && d.LocationLat != nil && d.LocationLng != nil {
		r.Location = &domain.Location{Lat: *d.LocationLat, Lng: *d.LocationLng, Name: *d.LocationName}
	}
	return r
}

// lookupStr returns the value at key stringified, or "" when absent.
func lookupStr(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// lookupFloat accepts numbers and numeric strings (including "8,0" style
// decimal commas); anything else yields 0.
func lookupFloat(m map[string]any, key string) float64 {
	f, _ := asFloat(m[key])
	return f
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f, true
		}
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", "."))
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func locationFromRaw(raw map[string]any) *domain.Location {
	name := lookupStr(raw, "locationName")
	lat, latOK := asFloat(raw["locationLat"])
	lng, lngOK := asFloat(raw["locationLng"])
	if name == "" || !latOK || !lngOK {
		return nil
	}
	return &domain.Location{Lat: lat, Lng: lng, Name: name}
}

func sortByCreatedAtDesc(rs []domain.Report) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].CreatedAt > rs[j].CreatedAt
	})
}
