package tokko

import (
	"encoding/json"
	"testing"

	"github.com/mmcloughlin/geohash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *Property {
	t.Helper()
	p, err := Parse(json.RawMessage(doc))
	require.NoError(t, err)
	return p
}

func TestMapPrefersSaleOperation(t *testing.T) {
	p := mustParse(t, `{
		"id": 101,
		"publication_title": "Casa en Palermo",
		"operations": [
			{"operation_type": "Rent", "prices": [{"price": 1500, "currency": "ARS", "period": "monthly"}]},
			{"operation_type": "Sale", "prices": [{"price": 200000, "currency": "USD"}]}
		]
	}`)
	l := NewMapper(nil).Map(p)

	require.NotNil(t, l.Price)
	assert.Equal(t, 200000.0, *l.Price)
	assert.Equal(t, "USD", l.Currency)
	assert.Equal(t, "200000", l.Meta[MetaPrice])
	assert.Equal(t, "Sale", l.OperationType)
	assert.Equal(t, []TermLabel{{Label: "Sale"}}, l.Terms[AxisCategory])
	assert.Empty(t, l.RentPeriod)
}

func TestMapRentOperation(t *testing.T) {
	p := mustParse(t, `{
		"id": "7",
		"operations": [
			{"operation_type": "Temporary", "prices": [{"price": 90}]},
			{"operation_type": "Rent", "prices": [{"price": "1500", "period": "monthly"}]}
		]
	}`)
	l := NewMapper(nil).Map(p)

	require.NotNil(t, l.Price)
	assert.Equal(t, 1500.0, *l.Price)
	assert.Equal(t, DefaultCurrency, l.Currency)
	assert.Equal(t, "monthly", l.RentPeriod)
	assert.Equal(t, []TermLabel{{Label: "monthly"}}, l.Terms[AxisRentPeriod])
}

func TestMapTopLevelPriceFallback(t *testing.T) {
	cases := map[string]string{
		"string currency": `{"id": 1, "price": 500, "currency": "ARS"}`,
		"object currency": `{"id": 1, "price": "500", "currency": {"name": "ARS"}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			l := NewMapper(nil).Map(mustParse(t, doc))
			require.NotNil(t, l.Price)
			assert.Equal(t, 500.0, *l.Price)
			assert.Equal(t, "ARS", l.Currency)
			assert.Empty(t, l.Terms[AxisCategory])
		})
	}
}

func TestMapNoPrice(t *testing.T) {
	l := NewMapper(nil).Map(mustParse(t, `{"id": 1, "operations": []}`))
	assert.Nil(t, l.Price)
	assert.NotContains(t, l.Meta, MetaPrice)
	assert.NotContains(t, l.Meta, MetaCurrency)
}

func TestMapPricePerSqft(t *testing.T) {
	t.Run("computed", func(t *testing.T) {
		l := NewMapper(nil).Map(mustParse(t, `{
			"id": 1, "total_surface": "100",
			"operations": [{"operation_type": "Sale", "prices": [{"price": 200000, "currency": "USD"}]}]
		}`))
		assert.Equal(t, "2000.00", l.Meta[MetaPricePerSqft])
		assert.Equal(t, "100", l.Meta[MetaArea])
	})
	t.Run("rounded", func(t *testing.T) {
		l := NewMapper(nil).Map(mustParse(t, `{
			"id": 1, "surface": 3,
			"operations": [{"operation_type": "Sale", "prices": [{"price": 1000}]}]
		}`))
		assert.Equal(t, "333.33", l.Meta[MetaPricePerSqft])
	})
	t.Run("omitted without area", func(t *testing.T) {
		l := NewMapper(nil).Map(mustParse(t, `{
			"id": 1,
			"operations": [{"operation_type": "Sale", "prices": [{"price": 200000}]}]
		}`))
		assert.NotContains(t, l.Meta, MetaPricePerSqft)
	})
	t.Run("omitted with zero area", func(t *testing.T) {
		l := NewMapper(nil).Map(mustParse(t, `{
			"id": 1, "total_surface": "0",
			"operations": [{"operation_type": "Sale", "prices": [{"price": 200000}]}]
		}`))
		assert.NotContains(t, l.Meta, MetaPricePerSqft)
		assert.NotContains(t, l.Meta, MetaArea)
	})
	t.Run("source value", func(t *testing.T) {
		l := NewMapper(nil).Map(mustParse(t, `{"id": 1, "price_per_sqft": "1250.5"}`))
		assert.Equal(t, "1250.5", l.Meta[MetaPricePerSqft])
	})
}

func TestMapMeasurements(t *testing.T) {
	l := NewMapper(nil).Map(mustParse(t, `{
		"id": 1,
		"suite_amount": 0, "room_amount": 4, "bathroom_amount": "2", "toilet_amount": null,
		"parking_lot_amount": 1, "floors_amount": "",
		"surface": "85,5", "roofed_surface": 70, "front_measure": 10,
		"public_url": "https://ficha.info/p/abc", "reference_code": "PH-1",
		"created_at": "2023-05-01T10:00:00"
	}`))

	assert.Equal(t, "4", l.Meta["es_property_bedrooms"], "falls back to room_amount")
	assert.Equal(t, "4", l.Meta["es_property_total_rooms"])
	assert.Equal(t, "2", l.Meta["es_property_bathrooms"])
	assert.NotContains(t, l.Meta, "es_property_half_baths")
	assert.NotContains(t, l.Meta, "es_property_floors")
	assert.Equal(t, "1", l.Meta["es_property_parking"])
	assert.Equal(t, "85.5", l.Meta[MetaArea])
	assert.Equal(t, "70", l.Meta["es_property_built_area"])
	assert.Equal(t, "10", l.Meta["es_property_lot_size"])
	assert.Equal(t, "https://ficha.info/p/abc", l.Meta["tokko_public_url"])
	assert.Equal(t, "PH-1", l.Meta["tokko_reference"])
	assert.Equal(t, "2023-05-01T10:00:00", l.Meta["date_added"])
}

func TestMapGeohash(t *testing.T) {
	l := NewMapper(nil).Map(mustParse(t, `{"id": 1, "geo_lat": "-34.6037", "geo_long": -58.3816}`))
	assert.Equal(t, "-34.6037", l.Meta[MetaLatitude])
	assert.Equal(t, geohash.EncodeWithPrecision(-34.6037, -58.3816, 9), l.Meta[MetaGeohash])

	l = NewMapper(nil).Map(mustParse(t, `{"id": 1, "geo_lat": "0", "geo_long": "0"}`))
	assert.NotContains(t, l.Meta, MetaGeohash)
}

func TestMapTaxonomyLabels(t *testing.T) {
	l := NewMapper(nil).Map(mustParse(t, `{
		"id": 1,
		"type": {"id": 2, "name": "Departamento"},
		"status": 2,
		"has_temporary_rent": true,
		"tags": [
			{"name": "Pileta", "type": 3},
			{"name": "Luminoso", "type": 1},
			{"name": "Apto crédito", "type": 2},
			{"name": "Otro", "type": 9},
			{"name": " ", "type": 3}
		]
	}`))

	assert.Equal(t, []TermLabel{{Label: "Departamento"}}, l.Terms[AxisType])
	assert.Equal(t, []TermLabel{{Label: "status_2"}}, l.Terms[AxisStatus])
	assert.Equal(t, []TermLabel{{Label: "temporary"}}, l.Terms[AxisRentPeriod])
	assert.Equal(t, []TermLabel{{Label: "Pileta"}}, l.Terms[AxisAmenity])
	assert.Equal(t, []TermLabel{{Label: "Luminoso"}, {Label: "Apto crédito"}}, l.Terms[AxisFeature])
}

func TestMapStatus(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want TermLabel
	}{
		{"missing", `{"id": 1}`, TermLabel{Label: "active", Fallback: "Activo"}},
		{"literal", `{"id": 1, "status": "pending"}`, TermLabel{Label: "pending"}},
		{"numeric string", `{"id": 1, "status": "3"}`, TermLabel{Label: "status_3"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewMapper(nil).Map(mustParse(t, tc.doc))
			assert.Equal(t, []TermLabel{tc.want}, l.Terms[AxisStatus])
		})
	}
}

func TestMapBodyFallback(t *testing.T) {
	l := NewMapper(nil).Map(mustParse(t, `{"id": 1, "description": "", "rich_description": "<p>Hermosa</p>"}`))
	assert.Equal(t, "<p>Hermosa</p>", l.Body)

	l = NewMapper(nil).Map(mustParse(t, `{"id": 1, "description": "Simple", "rich_description": "<p>Rica</p>"}`))
	assert.Equal(t, "Simple", l.Body)
}

func TestMapUsesConfiguredFields(t *testing.T) {
	fields := MergeFields(DefaultFields(), []FieldRule{
		{Key: "es_property_bedrooms", Sources: []string{"room_amount"}, Transform: TransformInt},
		{Key: "tokko_branch", Sources: []string{"branch_name"}, Transform: TransformText},
	})
	l := NewMapper(fields).Map(mustParse(t, `{"id": 1, "suite_amount": 2, "room_amount": 5, "branch_name": "Centro"}`))
	assert.Equal(t, "5", l.Meta["es_property_bedrooms"])
	assert.Equal(t, "Centro", l.Meta["tokko_branch"])
}

func TestFieldRuleValidate(t *testing.T) {
	assert.NoError(t, FieldRule{Key: "k", Sources: []string{"a"}, Transform: TransformURL}.Validate())
	assert.Error(t, FieldRule{Key: "k", Sources: []string{"a"}, Transform: "upper"}.Validate())
	assert.Error(t, FieldRule{Key: "k", Transform: TransformText}.Validate())
	assert.Error(t, FieldRule{Sources: []string{"a"}, Transform: TransformText}.Validate())
}
