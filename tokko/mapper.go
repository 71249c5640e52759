package tokko

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mmcloughlin/geohash"
)

// Axis names a destination taxonomy.
type Axis string

const (
	AxisCategory   Axis = "es_category"
	AxisType       Axis = "es_type"
	AxisStatus     Axis = "es_status"
	AxisRentPeriod Axis = "es_rent_period"
	AxisAmenity    Axis = "es_amenity"
	AxisFeature    Axis = "es_feature"
)

// Axes lists every axis in assignment order.
var Axes = []Axis{AxisCategory, AxisType, AxisStatus, AxisRentPeriod, AxisAmenity, AxisFeature}

// TermLabel is a taxonomy label as it appears in the source. Fallback is the
// name used when a term has to be created and differs from Label.
type TermLabel struct {
	Label    string
	Fallback string
}

func (t TermLabel) Name() string { return firstNonEmpty(t.Fallback, t.Label) }

// Listing is a Property translated into destination fields.
type Listing struct {
	ExternalID    string
	Title         string
	Address       string
	Body          string
	Price         *float64
	Currency      string
	OperationType string
	RentPeriod    string
	Meta          map[string]string
	Terms         map[Axis][]TermLabel
	Photos        []Photo
}

const (
	DefaultCurrency     = "USD"
	defaultStatusLabel  = "active"
	defaultStatusName   = "Activo"
	temporaryRentPeriod = "temporary"
	amenityTagType      = 3
)

type Mapper struct {
	Fields          []FieldRule
	BodySources     []string
	DefaultCurrency string
	GeohashChars    uint
}

func NewMapper(fields []FieldRule) *Mapper {
	if len(fields) == 0 {
		fields = DefaultFields()
	}
	return &Mapper{
		Fields:          fields,
		BodySources:     []string{"description", "rich_description"},
		DefaultCurrency: DefaultCurrency,
		GeohashChars:    9,
	}
}

// Map is pure: it performs no I/O.
func (m *Mapper) Map(p *Property) Listing {
	attrs := p.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	l := Listing{
		ExternalID: p.ID.String(),
		Title:      strings.TrimSpace(p.PublicationTitle),
		Address:    strings.TrimSpace(p.Address),
		Meta:       map[string]string{},
		Terms:      map[Axis][]TermLabel{},
		Photos:     p.Photos,
	}
	for _, src := range m.BodySources {
		if v := strings.TrimSpace(attrs[src]); v != "" {
			l.Body = v
			break
		}
	}

	for _, rule := range m.Fields {
		if v, ok := rule.resolve(attrs); ok {
			l.Meta[rule.Key] = v
		}
	}

	m.mapPrice(p, &l)
	m.mapPricePerSqft(attrs, &l)
	m.mapGeohash(&l)
	mapTerms(p, &l)
	return l
}

func (m *Mapper) mapPrice(p *Property, l *Listing) {
	var entry *PriceEntry
	if op, ok := selectOperation(p.Operations); ok {
		l.OperationType = strings.TrimSpace(op.OperationType)
		if len(op.Prices) > 0 {
			entry = &op.Prices[0]
		}
	}

	var amount float64
	var currency string
	var ok bool
	if entry != nil {
		amount, ok = entry.Price.Float()
		currency = strings.TrimSpace(entry.Currency)
		if v := entry.Period.String(); !isEmptyValue(v) {
			l.RentPeriod = v
		}
	}
	if !ok || amount == 0 {
		amount, ok = p.Price.Float()
		currency = string(p.Currency)
	}
	if l.RentPeriod == "" && p.HasTemporaryRent {
		l.RentPeriod = temporaryRentPeriod
	}
	if !ok || amount == 0 {
		return
	}
	if currency == "" {
		currency = m.DefaultCurrency
	}
	l.Price = &amount
	l.Currency = currency
	l.Meta[MetaPrice] = strconv.FormatFloat(amount, 'f', -1, 64)
	l.Meta[MetaCurrency] = currency
}

// selectOperation prefers sale, then rent, then whatever comes first.
func selectOperation(ops []Operation) (Operation, bool) {
	if len(ops) == 0 {
		return Operation{}, false
	}
	for _, want := range []string{"sale", "rent"} {
		for _, op := range ops {
			if strings.EqualFold(strings.TrimSpace(op.OperationType), want) {
				return op, true
			}
		}
	}
	return ops[0], true
}

func (m *Mapper) mapPricePerSqft(attrs map[string]string, l *Listing) {
	area, _ := parseDecimal(l.Meta[MetaArea])
	if l.Price != nil && area > 0 {
		l.Meta[MetaPricePerSqft] = fmt.Sprintf("%.2f", math.Round(*l.Price/area*100)/100)
		return
	}
	if v, ok := TransformDecimal.apply(attrs["price_per_sqft"]); ok {
		l.Meta[MetaPricePerSqft] = v
	}
}

func (m *Mapper) mapGeohash(l *Listing) {
	if m.GeohashChars == 0 {
		return
	}
	lat, okLat := parseDecimal(l.Meta[MetaLatitude])
	lng, okLng := parseDecimal(l.Meta[MetaLongitude])
	if !okLat || !okLng || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return
	}
	l.Meta[MetaGeohash] = geohash.EncodeWithPrecision(lat, lng, m.GeohashChars)
}

func mapTerms(p *Property, l *Listing) {
	if l.OperationType != "" {
		l.Terms[AxisCategory] = []TermLabel{{Label: l.OperationType}}
	}
	if p.Type != nil {
		if name := strings.TrimSpace(p.Type.Name); name != "" {
			l.Terms[AxisType] = []TermLabel{{Label: name}}
		}
	}

	status := TermLabel{Label: defaultStatusLabel, Fallback: defaultStatusName}
	if p.Status.Present() {
		if p.Status.Numeric {
			status = TermLabel{Label: "status_" + p.Status.Value}
		} else {
			status = TermLabel{Label: p.Status.Value}
		}
	}
	l.Terms[AxisStatus] = []TermLabel{status}

	if l.RentPeriod != "" {
		l.Terms[AxisRentPeriod] = []TermLabel{{Label: l.RentPeriod}}
	}

	for _, tag := range p.Tags {
		name := strings.TrimSpace(tag.Name)
		if name == "" {
			continue
		}
		kind, _ := tag.Type.Int()
		switch {
		case kind == amenityTagType:
			l.Terms[AxisAmenity] = append(l.Terms[AxisAmenity], TermLabel{Label: name})
		case kind == 1 || kind == 2:
			l.Terms[AxisFeature] = append(l.Terms[AxisFeature], TermLabel{Label: name})
		}
	}
}
