package tokko

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// stringNumber accepts string or number JSON and stores as string
type stringNumber string

func (s *stringNumber) UnmarshalJSON(b []byte) error {
	// empty/null -> empty string
	if string(b) == "null" {
		*s = ""
		return nil
	}
	// If already a quoted string
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = stringNumber(strings.TrimSpace(str))
		return nil
	}
	// Try as number, keep textual form
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = stringNumber(num.String())
	return nil
}

func (s stringNumber) String() string { return string(s) }

func (s stringNumber) Float() (float64, bool) {
	v := strings.ReplaceAll(strings.TrimSpace(string(s)), ",", ".")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func (s stringNumber) Int() (int, bool) {
	f, ok := s.Float()
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Property is one listing object from the Tokko property endpoint.
type Property struct {
	ID               stringNumber  `json:"id"`
	PublicationTitle string        `json:"publication_title"`
	Address          string        `json:"address"`
	Description      string        `json:"description"`
	RichDescription  string        `json:"rich_description"`
	Operations       []Operation   `json:"operations"`
	Type             *PropertyType `json:"type"`
	Status           Status        `json:"status"`
	Tags             []Tag         `json:"tags"`
	Photos           []Photo       `json:"photos"`
	HasTemporaryRent bool          `json:"has_temporary_rent"`
	Price            stringNumber  `json:"price"`
	Currency         Currency      `json:"currency"`
	CreatedAt        string        `json:"created_at"`

	// Attributes holds every top-level scalar field in textual form, keyed by
	// its source name. Field rules read from here.
	Attributes map[string]string `json:"-"`
}

type Operation struct {
	OperationType string       `json:"operation_type"`
	Prices        []PriceEntry `json:"prices"`
}

type PriceEntry struct {
	Price    stringNumber `json:"price"`
	Currency string       `json:"currency"`
	Period   stringNumber `json:"period"`
}

type PropertyType struct {
	ID   stringNumber `json:"id"`
	Code string       `json:"code"`
	Name string       `json:"name"`
}

type Tag struct {
	ID   stringNumber `json:"id"`
	Name string       `json:"name"`
	Type stringNumber `json:"type"`
}

type Photo struct {
	Image        string       `json:"image"`
	Original     string       `json:"original"`
	Thumb        string       `json:"thumb"`
	Description  string       `json:"description"`
	Order        stringNumber `json:"order"`
	IsFrontCover bool         `json:"is_front_cover"`
}

// Status is numeric (a Tokko status code) or a literal label.
type Status struct {
	Value   string
	Numeric bool
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw stringNumber
	if err := raw.UnmarshalJSON(b); err != nil {
		return err
	}
	s.Value = string(raw)
	_, err := strconv.ParseFloat(s.Value, 64)
	s.Numeric = s.Value != "" && err == nil
	return nil
}

func (s Status) Present() bool { return s.Value != "" }

// Currency accepts "USD" or {"name": "USD"}.
type Currency string

func (c *Currency) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*c = ""
	case b[0] == '{':
		var obj struct {
			Name string `json:"name"`
			ISO  string `json:"iso"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		*c = Currency(strings.TrimSpace(firstNonEmpty(obj.Name, obj.ISO)))
	default:
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Currency(strings.TrimSpace(s))
	}
	return nil
}

// scalarAttributes flattens top-level strings, numbers and booleans.
func scalarAttributes(raw []byte) (map[string]string, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		v = bytes.TrimSpace(v)
		if len(v) == 0 {
			continue
		}
		switch v[0] {
		case '"':
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				out[k] = strings.TrimSpace(s)
			}
		case 't', 'f':
			out[k] = string(v)
		case '{', '[', 'n':
			// objects, arrays and null are not scalar attributes
		default:
			out[k] = string(v)
		}
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
