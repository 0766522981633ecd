package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScalarStringFormatting(t *testing.T) {
	assert.Equal(t, "42", Int(42).String())
	assert.Equal(t, "51.33", Float(51.33).String())
	assert.Equal(t, "Faust", String("Faust").String())
}

func TestScalarAsFloat64(t *testing.T) {
	f, ok := Int(7).AsFloat64()
	assert.True(t, ok)
	assert.Equal(t, 7.0, f)

	_, ok = String("not-a-number").AsFloat64()
	assert.False(t, ok)
}

func TestScalarFromAnyNormalizesJSONShapes(t *testing.T) {
	assert.Equal(t, KindFloat, ScalarFromAny(1999.0).Kind)
	assert.Equal(t, KindString, ScalarFromAny("x").Kind)
	assert.Equal(t, "true", ScalarFromAny(true).String())
}

func TestNewPopulatesMarcViewWhenPresent(t *testing.T) {
	marc := map[string]MarcField{"245": {Repetitions: []MarcSubfields{{"a": []Scalar{String("Title")}}}}}
	rec := New(map[string]any{"fullrecord": marc}, "fullrecord")
	assert.NotNil(t, rec.Marc)
	assert.Equal(t, marc, rec.Marc)
}

func TestNewIgnoresMarcKeyWhenUnconfigured(t *testing.T) {
	rec := New(map[string]any{"id": "1"}, "")
	assert.Nil(t, rec.Marc)
}
