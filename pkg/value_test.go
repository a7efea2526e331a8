package minic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueString(t *testing.T) {
	cases := []struct {
		val    Value
		expect string
	}{
		{IntValue(42), "42"},
		{IntValue(-7), "-7"},
		{BoolValue(true), "true"},
		{FloatValue(3), "3.0"},
		{FloatValue(-0.5), "-0.5"},
		{FloatValue(0), "0.0"},
		{FloatValue(1e-5), "1e-05"},
		{FloatValue(1e16), "1e+16"},
		{FloatValue(123456.789), "123456.789"},
		{FloatValue(math.Inf(1)), "inf"},
		{FloatValue(math.NaN()), "nan"},
		{ZeroValue(KindFloat), "0.0"},
	}

	for _, c := range cases {
		assert.Equal(t, c.expect, c.val.String())
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "float", KindFloat.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
