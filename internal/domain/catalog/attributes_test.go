package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes_DecodeScalars(t *testing.T) {
	var attrs Attributes
	require.NoError(t, json.Unmarshal([]byte(`{"color":"red","size":42,"organic":true}`), &attrs))

	assert.Equal(t, KindString, attrs["color"].Kind())
	assert.Equal(t, "red", attrs["color"].String())

	n, ok := attrs["size"].AsNumber()
	require.True(t, ok)
	assert.Equal(t, 42.0, n)

	b, ok := attrs["organic"].AsBool()
	require.True(t, ok)
	assert.True(t, b)
}

func TestAttributes_RejectsNonScalars(t *testing.T) {
	for _, raw := range []string{
		`{"dims":{"w":1}}`,
		`{"tags":["a","b"]}`,
		`{"missing":null}`,
	} {
		var attrs Attributes
		assert.Error(t, json.Unmarshal([]byte(raw), &attrs), raw)
	}
}

func TestAttributes_Encode(t *testing.T) {
	attrs := Attributes{
		"color": StringValue("blue"),
		"size":  NumberValue(9.5),
		"gift":  BoolValue(false),
	}

	data, err := json.Marshal(attrs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"color":"blue","size":9.5,"gift":false}`, string(data))
}
