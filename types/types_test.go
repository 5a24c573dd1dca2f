package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampledValueAcceptsStringAndNumber(t *testing.T) {
	var meterValue MeterValue
	require.NoError(t, json.Unmarshal([]byte(`{"sampledValue":[
		{"value":"100","measurand":"Voltage","unit":"V","phase":"L1"},
		{"value":200},
		{"value":12.5e3}
	]}`), &meterValue))

	require.Len(t, meterValue.SampledValue, 3)
	first := meterValue.SampledValue[0]
	assert.False(t, first.Malformed)
	assert.Equal(t, "100", first.Value)
	assert.Equal(t, MeasurandVoltage, first.Measurand)
	assert.Equal(t, UnitOfMeasureV, first.Unit)
	assert.Equal(t, PhaseL1, first.Phase)

	assert.False(t, meterValue.SampledValue[1].Malformed)
	assert.Equal(t, "200", meterValue.SampledValue[1].Value)
	assert.Equal(t, "12.5e3", meterValue.SampledValue[2].Value)
}

func TestSampledValueMarksMalformedReadings(t *testing.T) {
	var meterValue MeterValue
	require.NoError(t, json.Unmarshal([]byte(`{"sampledValue":[
		{"value":true},
		{"value":null},
		{"unit":"Wh"},
		{"value":""},
		{"value":"5","unit":7},
		"text",
		null,
		{"value":"6"}
	]}`), &meterValue))

	require.Len(t, meterValue.SampledValue, 8)
	for i, sampledValue := range meterValue.SampledValue[:7] {
		assert.True(t, sampledValue.Malformed, "reading %d", i)
	}
	last := meterValue.SampledValue[7]
	assert.False(t, last.Malformed)
	assert.Equal(t, "6", last.Value)
}
