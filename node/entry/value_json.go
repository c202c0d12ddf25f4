package entry

import (
	"encoding/base64"
	"encoding/json"
	"math"

	"github.com/tidwall/gjson"
)

type jsonValue struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// Doubles JSON numbers cannot carry are written as these strings
const (
	jsonNaN         = "NaN"
	jsonInfinity    = "Infinity"
	jsonNegInfinity = "-Infinity"
)

// MarshalJSON encodes the value as {"type": <name>, "value": <payload>}.
// Raw payloads are base64 encoded. NaN and the infinities are
// written as the strings "NaN", "Infinity" and "-Infinity".
func (v EntryValue) MarshalJSON() ([]byte, error) {
	out := jsonValue{Type: v.Type.String()}
	switch v.Type {
	case TypeBoolean:
		out.Value = v.Boolean
	case TypeDouble:
		out.Value = jsonDouble(v.Double)
	case TypeString:
		out.Value = v.Text
	case TypeRaw:
		out.Value = base64.StdEncoding.EncodeToString(v.Raw)
	case TypeBooleanArray:
		out.Value = nonNilBools(v.BooleanArray)
	case TypeDoubleArray:
		doubles := make([]interface{}, 0, len(v.DoubleArray))
		for _, d := range v.DoubleArray {
			doubles = append(doubles, jsonDouble(d))
		}
		out.Value = doubles
	case TypeStringArray:
		out.Value = nonNilStrings(v.StringArray)
	case TypeRPC:
		out.Value = v.RPC
	default:
		return nil, &InvalidEntryTypeError{Type: v.Type}
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON
func (v *EntryValue) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return &InvalidValueError{Reason: "malformed JSON"}
	}
	entryType, parseErr := ParseEntryType(gjson.GetBytes(data, "type").String())
	if parseErr != nil {
		return parseErr
	}
	value, valueErr := ValueFromJSON(entryType, gjson.GetBytes(data, "value"))
	if valueErr != nil {
		return valueErr
	}
	*v = value
	return nil
}

// ValueFromJSON builds a value of the given type out of a JSON
// fragment. The fragment must have the matching JSON shape: a
// boolean, a number, a string (base64 for raw) or an array of those.
// Doubles may also be given as "NaN", "Infinity" or "-Infinity".
func ValueFromJSON(t EntryType, raw gjson.Result) (EntryValue, error) {
	if !raw.Exists() && t != TypeRPC {
		return EntryValue{}, &InvalidValueError{Type: t, Reason: "value is missing"}
	}
	switch t {
	case TypeBoolean:
		if raw.Type != gjson.True && raw.Type != gjson.False {
			return EntryValue{}, &InvalidValueError{Type: t, Reason: "expected a boolean"}
		}
		return BooleanValue(raw.Bool()), nil
	case TypeDouble:
		d, ok := doubleFromJSON(raw)
		if !ok {
			return EntryValue{}, &InvalidValueError{Type: t, Reason: "expected a number"}
		}
		return DoubleValue(d), nil
	case TypeString:
		if raw.Type != gjson.String {
			return EntryValue{}, &InvalidValueError{Type: t, Reason: "expected a string"}
		}
		return StringValue(raw.String()), nil
	case TypeRaw:
		if raw.Type != gjson.String {
			return EntryValue{}, &InvalidValueError{Type: t, Reason: "expected a base64 string"}
		}
		decoded, decodeErr := base64.StdEncoding.DecodeString(raw.String())
		if decodeErr != nil {
			return EntryValue{}, &InvalidValueError{Type: t, Reason: decodeErr.Error()}
		}
		return RawValue(decoded), nil
	case TypeBooleanArray:
		elements, err := jsonArray(t, raw)
		if err != nil {
			return EntryValue{}, err
		}
		booleans := make([]bool, 0, len(elements))
		for _, element := range elements {
			if element.Type != gjson.True && element.Type != gjson.False {
				return EntryValue{}, &InvalidValueError{Type: t, Reason: "expected an array of booleans"}
			}
			booleans = append(booleans, element.Bool())
		}
		return BooleanArrayValue(booleans), nil
	case TypeDoubleArray:
		elements, err := jsonArray(t, raw)
		if err != nil {
			return EntryValue{}, err
		}
		doubles := make([]float64, 0, len(elements))
		for _, element := range elements {
			d, ok := doubleFromJSON(element)
			if !ok {
				return EntryValue{}, &InvalidValueError{Type: t, Reason: "expected an array of numbers"}
			}
			doubles = append(doubles, d)
		}
		return DoubleArrayValue(doubles), nil
	case TypeStringArray:
		elements, err := jsonArray(t, raw)
		if err != nil {
			return EntryValue{}, err
		}
		strs := make([]string, 0, len(elements))
		for _, element := range elements {
			if element.Type != gjson.String {
				return EntryValue{}, &InvalidValueError{Type: t, Reason: "expected an array of strings"}
			}
			strs = append(strs, element.String())
		}
		return StringArrayValue(strs), nil
	case TypeRPC:
		if version := raw.Get("version"); version.Exists() && version.Uint() != 0 {
			return EntryValue{}, &InvalidValueError{Type: t, Reason: "only version 0 procedures are supported"}
		}
		return RPCValue(), nil
	}
	return EntryValue{}, &InvalidEntryTypeError{Type: t}
}

func jsonArray(t EntryType, raw gjson.Result) ([]gjson.Result, error) {
	if !raw.IsArray() {
		return nil, &InvalidValueError{Type: t, Reason: "expected an array"}
	}
	return raw.Array(), nil
}

func nonNilBools(b []bool) []bool {
	if b == nil {
		return []bool{}
	}
	return b
}

func jsonDouble(d float64) interface{} {
	switch {
	case math.IsNaN(d):
		return jsonNaN
	case math.IsInf(d, 1):
		return jsonInfinity
	case math.IsInf(d, -1):
		return jsonNegInfinity
	}
	return d
}

func doubleFromJSON(raw gjson.Result) (float64, bool) {
	switch raw.Type {
	case gjson.Number:
		return raw.Float(), true
	case gjson.String:
		switch raw.String() {
		case jsonNaN:
			return math.NaN(), true
		case jsonInfinity:
			return math.Inf(1), true
		case jsonNegInfinity:
			return math.Inf(-1), true
		}
	}
	return 0, false
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
