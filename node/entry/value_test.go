package entry

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseEntryType(t *testing.T) {
	parsed, err := ParseEntryType("Double")
	require.NoError(t, err)
	assert.Equal(t, TypeDouble, parsed)

	parsed, err = ParseEntryType("string[]")
	require.NoError(t, err)
	assert.Equal(t, TypeStringArray, parsed)

	_, err = ParseEntryType("integer")
	assert.IsType(t, &InvalidEntryTypeError{}, err)
	assert.False(t, EntryType(0x42).Valid())
}

func TestValueJSONEncoding(t *testing.T) {
	encoded, err := json.Marshal(DoubleValue(2.5))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"double","value":2.5}`, string(encoded))

	encoded, err = json.Marshal(RawValue([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"raw","value":"AQID"}`, string(encoded))

	encoded, err = json.Marshal(StringArrayValue(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"string[]","value":[]}`, string(encoded))
}

func TestValueJSONDecoding(t *testing.T) {
	var value EntryValue
	require.NoError(t, json.Unmarshal([]byte(`{"type":"boolean[]","value":[true,false]}`), &value))
	assert.True(t, value.Equal(BooleanArrayValue([]bool{true, false})))

	require.NoError(t, json.Unmarshal([]byte(`{"type":"rpc"}`), &value))
	assert.True(t, value.Equal(RPCValue()))

	err := json.Unmarshal([]byte(`{"type":"double","value":"fast"}`), &value)
	assert.Error(t, err)
}

func TestValueFromJSONRejectsMixedArrays(t *testing.T) {
	_, err := ValueFromJSON(TypeDoubleArray, gjson.Parse(`[1, "two"]`))
	assert.IsType(t, &InvalidValueError{}, err)

	value, err := ValueFromJSON(TypeDoubleArray, gjson.Parse(`[1, 2.5]`))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5}, value.DoubleArray)
}

func TestEntryJSONFlattensData(t *testing.T) {
	encoded, err := json.Marshal(Entry{ID: 3, EntryData: NewEntryData("/x", FlagPersistent, BooleanValue(true))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"name":"/x","flags":1,"seqnum":1,"value":{"type":"boolean","value":true}}`, string(encoded))
}

func TestNonFiniteDoublesSurviveJSON(t *testing.T) {
	encoded, err := json.Marshal(DoubleValue(math.NaN()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"double","value":"NaN"}`, string(encoded))

	var decoded EntryValue
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.True(t, math.IsNaN(decoded.Double))

	encoded, err = json.Marshal(DoubleArrayValue([]float64{math.Inf(1), 1.5, math.Inf(-1)}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"double[]","value":["Infinity",1.5,"-Infinity"]}`, string(encoded))
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, []float64{math.Inf(1), 1.5, math.Inf(-1)}, decoded.DoubleArray)

	_, err = ValueFromJSON(TypeDouble, gjson.Parse(`"infinity"`))
	assert.IsType(t, &InvalidValueError{}, err)
}
