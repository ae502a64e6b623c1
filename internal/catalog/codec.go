package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrEmptyPayload   = errors.New("empty payload")
	ErrInvalidPayload = errors.New("invalid payload")
)

const (
	keyID         = "id"
	keyProductNum = "productNum"
	keyName       = "name"
	keyPrice      = "price"
)

type dtoFields uint8

const (
	hasID dtoFields = 1 << iota
	hasProductNum
	hasName
	hasPrice

	hasAllData = hasProductNum | hasName | hasPrice
)

// MarshalJSON writes {"id","productNum","name","price"} in that order.
// An empty ID is written as null.
func (d ProductDTO) MarshalJSON() ([]byte, error) {
	if math.IsNaN(d.Price) || math.IsInf(d.Price, 0) {
		return nil, fmt.Errorf("price %v has no json representation", d.Price)
	}

	b := make([]byte, 0, 96)
	b = append(b, `{"`+keyID+`":`...)
	if d.ID == "" {
		b = append(b, "null"...)
	} else {
		b = appendString(b, d.ID)
	}
	b = append(b, `,"`+keyProductNum+`":`...)
	b = appendString(b, d.ProductNum)
	b = append(b, `,"`+keyName+`":`...)
	b = appendString(b, d.Name)
	b = append(b, `,"`+keyPrice+`":`...)
	b = strconv.AppendFloat(b, d.Price, 'g', -1, 64)
	b = append(b, '}')
	return b, nil
}

// UnmarshalJSON accepts only the four known keys with their exact JSON
// types. Absent keys leave the zero value.
func (d *ProductDTO) UnmarshalJSON(data []byte) error {
	v, _, err := decodeProductDTO(data)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ParseProductDTO decodes a full product payload. productNum, name and price
// must all be present; id is optional.
func ParseProductDTO(payload string) (ProductDTO, error) {
	if payload == "" {
		return ProductDTO{}, ErrEmptyPayload
	}

	d, seen, err := decodeProductDTO([]byte(payload))
	if err != nil {
		return ProductDTO{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if missing := missingFields(seen & hasAllData); len(missing) > 0 {
		return ProductDTO{}, fmt.Errorf("%w: missing %s", ErrInvalidPayload, strings.Join(missing, ", "))
	}
	return d, nil
}

// ParseProductRef extracts the id from a product payload. The rest of the
// product shape is accepted but not required.
func ParseProductRef(payload string) (string, error) {
	if payload == "" {
		return "", ErrEmptyPayload
	}

	d, _, err := decodeProductDTO([]byte(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if d.ID == "" {
		return "", fmt.Errorf("%w: missing %s", ErrInvalidPayload, keyID)
	}
	return d.ID, nil
}

func decodeProductDTO(data []byte) (ProductDTO, dtoFields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ProductDTO{}, 0, err
	}
	if raw == nil {
		return ProductDTO{}, 0, errors.New("product must be a json object")
	}

	var (
		d    ProductDTO
		seen dtoFields
	)
	for k, v := range raw {
		switch k {
		case keyID:
			if isNull(v) {
				continue
			}
			if err := decodeString(k, v, &d.ID); err != nil {
				return ProductDTO{}, 0, err
			}
			seen |= hasID
		case keyProductNum:
			if err := decodeString(k, v, &d.ProductNum); err != nil {
				return ProductDTO{}, 0, err
			}
			seen |= hasProductNum
		case keyName:
			if err := decodeString(k, v, &d.Name); err != nil {
				return ProductDTO{}, 0, err
			}
			seen |= hasName
		case keyPrice:
			if err := decodeNumber(k, v, &d.Price); err != nil {
				return ProductDTO{}, 0, err
			}
			seen |= hasPrice
		default:
			return ProductDTO{}, 0, fmt.Errorf("unknown field %q", k)
		}
	}
	return d, seen, nil
}

func decodeString(key string, v json.RawMessage, dst *string) error {
	if len(v) == 0 || v[0] != '"' {
		return fmt.Errorf("field %q must be a string", key)
	}
	return json.Unmarshal(v, dst)
}

func decodeNumber(key string, v json.RawMessage, dst *float64) error {
	if len(v) == 0 || (v[0] != '-' && (v[0] < '0' || v[0] > '9')) {
		return fmt.Errorf("field %q must be a number", key)
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return string(v) == "null"
}

func missingFields(seen dtoFields) []string {
	var out []string
	if seen&hasProductNum == 0 {
		out = append(out, keyProductNum)
	}
	if seen&hasName == 0 {
		out = append(out, keyName)
	}
	if seen&hasPrice == 0 {
		out = append(out, keyPrice)
	}
	return out
}

func appendString(b []byte, s string) []byte {
	q, _ := json.Marshal(s)
	return append(b, q...)
}
