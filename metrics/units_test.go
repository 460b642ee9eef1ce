package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"B", "B"},
		{"B,", "B"},
		{"kB/s", "kB"},
		{"MBytes", "MB"},
		{"MB,", "MB"},
		{"GB", "GB"},
		{"YB", "YB"},
	}
	for _, tt := range tests {
		got, err := NormalizeUnit(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := NormalizeUnit("s")
	assert.True(t, errors.Is(err, ErrUnknownUnit))
	_, err = NormalizeUnit("")
	assert.True(t, errors.Is(err, ErrUnknownUnit))
}

func TestConvertUnits(t *testing.T) {
	v, err := ConvertUnits(1, "GB", "MB")
	require.NoError(t, err)
	assert.InDelta(t, 1000, v, 1e-9)

	v, err = ConvertUnits(500000, "MB", "GB")
	require.NoError(t, err)
	assert.InDelta(t, 500, v, 1e-9)

	_, err = ConvertUnits(1, "parsecs", "MB")
	assert.Error(t, err)
}

func TestConvertUnits_RoundTrip(t *testing.T) {
	values := []float64{0, 1, 3.14159, 512, 1000000, 123456.789}
	for _, from := range Scale {
		for _, to := range Scale {
			for _, v := range values {
				there, err := ConvertUnits(v, from, to)
				require.NoError(t, err)
				back, err := ConvertUnits(there, to, from)
				require.NoError(t, err)
				assert.InEpsilon(t, v+1, back+1, 1e-9, "%v %s->%s", v, from, to)
			}
		}
	}
}

func TestParseQuantity(t *testing.T) {
	q, err := ParseQuantity("12345", "kB/s")
	require.NoError(t, err)
	assert.Equal(t, Quantity{Value: 12345, Unit: "kB", Rate: true}, q)
	assert.Equal(t, "12345 kB/s", q.String())

	q, err = ParseQuantity("1,024", "MB,")
	require.NoError(t, err)
	assert.Equal(t, Quantity{Value: 1024, Unit: "MB"}, q)

	_, err = ParseQuantity("abc", "MB")
	assert.Error(t, err)
	_, err = ParseQuantity("-1", "MB")
	assert.Error(t, err)
}

func TestQuantity_Unknown(t *testing.T) {
	var q Quantity
	assert.False(t, q.Known())
	assert.Equal(t, Unknown, q.String())
	_, err := q.In("MB")
	assert.Error(t, err)
}

func TestCompletionRatio(t *testing.T) {
	capacity := Quantity{Value: 1000000, Unit: "MB"}

	ratio, ok := CompletionRatio(Quantity{Value: 500000, Unit: "MB"}, capacity)
	require.True(t, ok)
	assert.InDelta(t, 0.5, ratio, 1e-12)

	ratio, ok = CompletionRatio(Quantity{Value: 250, Unit: "GB"}, capacity)
	require.True(t, ok)
	assert.InDelta(t, 0.25, ratio, 1e-12)

	_, ok = CompletionRatio(Quantity{}, capacity)
	assert.False(t, ok)
	_, ok = CompletionRatio(Quantity{Value: 1, Unit: "MB"}, Quantity{Unit: "MB"})
	assert.False(t, ok)
}
