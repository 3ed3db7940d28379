// internal/domain/catalog/attributes.go
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Attributes holds schema-less variant properties such as size or color
type Attributes map[string]AttributeValue

// AttributeKind is the scalar type carried by an AttributeValue
type AttributeKind int

const (
	KindString AttributeKind = iota + 1
	KindNumber
	KindBool
)

// AttributeValue is a string, number or bool. Objects, arrays and null are rejected.
type AttributeValue struct {
	kind AttributeKind
	str  string
	num  float64
	b    bool
}

func StringValue(s string) AttributeValue  { return AttributeValue{kind: KindString, str: s} }
func NumberValue(n float64) AttributeValue { return AttributeValue{kind: KindNumber, num: n} }
func BoolValue(b bool) AttributeValue      { return AttributeValue{kind: KindBool, b: b} }

func (v AttributeValue) Kind() AttributeKind { return v.kind }

func (v AttributeValue) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return fmt.Sprintf("%g", v.num)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	}
	return ""
}

// AsNumber returns the numeric value and whether the attribute is a number
func (v AttributeValue) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// AsBool returns the boolean value and whether the attribute is a bool
func (v AttributeValue) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v AttributeValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	}
	return nil, fmt.Errorf("attribute value has no kind")
}

func (v *AttributeValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty attribute value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case '{', '[', 'n':
		return fmt.Errorf("attribute values must be scalars, got %s", data)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = NumberValue(n)
	}
	return nil
}
