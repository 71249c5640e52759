package tokko

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type Transform string

const (
	TransformInt     Transform = "int"
	TransformDecimal Transform = "decimal"
	TransformText    Transform = "text"
	TransformURL     Transform = "url"
)

// FieldRule copies the first non-empty source attribute into metadata Key.
type FieldRule struct {
	Key       string    `yaml:"key"`
	Sources   []string  `yaml:"sources"`
	Transform Transform `yaml:"transform"`
}

func (r FieldRule) Validate() error {
	if strings.TrimSpace(r.Key) == "" {
		return fmt.Errorf("field rule: empty key")
	}
	if len(r.Sources) == 0 {
		return fmt.Errorf("field rule %s: no sources", r.Key)
	}
	switch r.Transform {
	case TransformInt, TransformDecimal, TransformText, TransformURL:
		return nil
	case "":
		return fmt.Errorf("field rule %s: missing transform", r.Key)
	default:
		return fmt.Errorf("field rule %s: unknown transform %q", r.Key, r.Transform)
	}
}

func (r FieldRule) resolve(attrs map[string]string) (string, bool) {
	for _, src := range r.Sources {
		if v, ok := r.Transform.apply(attrs[src]); ok {
			return v, true
		}
	}
	return "", false
}

func (t Transform) apply(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if isEmptyValue(v) {
		return "", false
	}
	switch t {
	case TransformInt:
		f, ok := parseDecimal(v)
		if !ok || int64(f) == 0 {
			return "", false
		}
		return strconv.FormatInt(int64(f), 10), true
	case TransformDecimal:
		f, ok := parseDecimal(v)
		if !ok || f == 0 {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	case TransformURL:
		u, err := url.Parse(v)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return "", false
		}
		return u.String(), true
	default:
		return v, true
	}
}

// isEmptyValue treats "", "0" and false as missing.
func isEmptyValue(v string) bool {
	switch v {
	case "", "0", "false":
		return true
	}
	return false
}

func parseDecimal(v string) (float64, bool) {
	return stringNumber(v).Float()
}

// Metadata keys written by the mapper itself rather than by field rules.
const (
	MetaPrice        = "es_property_price"
	MetaCurrency     = "currency"
	MetaPricePerSqft = "price_per_sqft"
	MetaArea         = "es_property_area"
	MetaLatitude     = "es_property_latitude"
	MetaLongitude    = "es_property_longitude"
	MetaGeohash      = "es_property_geohash"
)

// DefaultFields is the built-in field table.
func DefaultFields() []FieldRule {
	return []FieldRule{
		{Key: "es_property_bedrooms", Sources: []string{"suite_amount", "room_amount"}, Transform: TransformInt},
		{Key: "es_property_total_rooms", Sources: []string{"room_amount"}, Transform: TransformInt},
		{Key: "es_property_bathrooms", Sources: []string{"bathroom_amount"}, Transform: TransformInt},
		{Key: "es_property_half_baths", Sources: []string{"toilet_amount"}, Transform: TransformInt},
		{Key: "es_property_floors", Sources: []string{"floors_amount"}, Transform: TransformInt},
		{Key: "es_property_parking", Sources: []string{"parking_lot_amount"}, Transform: TransformInt},
		{Key: MetaArea, Sources: []string{"total_surface", "surface"}, Transform: TransformDecimal},
		{Key: "es_property_built_area", Sources: []string{"roofed_surface"}, Transform: TransformDecimal},
		{Key: "es_property_lot_size", Sources: []string{"unroofed_surface", "front_measure"}, Transform: TransformDecimal},
		{Key: MetaLatitude, Sources: []string{"geo_lat"}, Transform: TransformDecimal},
		{Key: MetaLongitude, Sources: []string{"geo_long"}, Transform: TransformDecimal},
		{Key: "date_added", Sources: []string{"created_at"}, Transform: TransformText},
		{Key: "es_property_expenses", Sources: []string{"expenses"}, Transform: TransformDecimal},
		{Key: "tokko_public_url", Sources: []string{"public_url"}, Transform: TransformURL},
		{Key: "tokko_reference", Sources: []string{"reference_code"}, Transform: TransformText},
		{Key: "es_property_address", Sources: []string{"address", "real_address", "fake_address"}, Transform: TransformText},
		{Key: "year_built", Sources: []string{"year_built"}, Transform: TransformInt},
		{Key: "year_remodeled", Sources: []string{"year_remodeled"}, Transform: TransformInt},
	}
}

// MergeFields overrides base rules by key and appends new ones.
func MergeFields(base, overrides []FieldRule) []FieldRule {
	out := append([]FieldRule(nil), base...)
	idx := make(map[string]int, len(out))
	for i, r := range out {
		idx[r.Key] = i
	}
	for _, r := range overrides {
		if i, ok := idx[r.Key]; ok {
			out[i] = r
			continue
		}
		idx[r.Key] = len(out)
		out = append(out, r)
	}
	return out
}
