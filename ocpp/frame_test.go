package ocpp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCall(t *testing.T) {
	frame := Decode([]byte(`[2,"m1","Heartbeat",{}]`))
	call, ok := frame.(*CallRequest)
	require.True(t, ok, "expected call, got %s", frame.Kind())
	assert.Equal(t, "m1", call.UniqueId)
	assert.Equal(t, "Heartbeat", call.Action)
	assert.JSONEq(t, `{}`, string(call.Payload))
}

func TestDecodeCallResultAndError(t *testing.T) {
	result, ok := Decode([]byte(`[3,"m2",{"status":"Accepted"}]`)).(*CallResult)
	require.True(t, ok)
	assert.Equal(t, "m2", result.UniqueId)
	assert.JSONEq(t, `{"status":"Accepted"}`, string(result.Payload))

	callError, ok := Decode([]byte(`[4,"m3","NotSupported","no such action",{"a":1}]`)).(*CallError)
	require.True(t, ok)
	assert.Equal(t, "m3", callError.UniqueId)
	assert.Equal(t, NotSupported, callError.ErrorCode)
	assert.Equal(t, "no such action", callError.ErrorDescription)
	assert.JSONEq(t, `{"a":1}`, string(callError.Details))
}

func TestDecodeMissingTrailingElements(t *testing.T) {
	call, ok := Decode([]byte(`[2,"m1","Heartbeat"]`)).(*CallRequest)
	require.True(t, ok)
	assert.JSONEq(t, `{}`, string(call.Payload))

	result, ok := Decode([]byte(`[3,"m2",null]`)).(*CallResult)
	require.True(t, ok)
	assert.JSONEq(t, `{}`, string(result.Payload))

	callError, ok := Decode([]byte(`[4,"m3","InternalError"]`)).(*CallError)
	require.True(t, ok)
	assert.Equal(t, "", callError.ErrorDescription)
	assert.JSONEq(t, `{}`, string(callError.Details))
}

func TestDecodeUnknown(t *testing.T) {
	inputs := []string{
		`["X","id1"]`,
		`[5,"id1",{}]`,
		`[2.5,"id1","Heartbeat",{}]`,
		`[]`,
		`{"a":1}`,
		`"text"`,
		`null`,
	}
	for _, input := range inputs {
		frame := Decode([]byte(input))
		assert.Equal(t, KindUnknown, frame.Kind(), input)
	}
}

func TestDecodeParseError(t *testing.T) {
	for _, input := range []string{`not json`, `[2,"m1"`, ``} {
		frame := Decode([]byte(input))
		parseError, ok := frame.(*ParseError)
		require.True(t, ok, input)
		assert.NotEmpty(t, parseError.Reason)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	inputs := []string{
		`[2,"m1","BootNotification",{"chargePointVendor":"V","chargePointModel":"M"}]`,
		`[3,"m2",{"currentTime":"2024-01-01T00:00:00Z","interval":300,"status":"Accepted"}]`,
		`[4,"m3","FormationViolation","bad payload",{}]`,
	}
	for _, input := range inputs {
		data, err := Encode(Decode([]byte(input)))
		require.NoError(t, err)
		assert.JSONEq(t, input, string(data))
	}
}

func TestEncodeRejectsNonProtocolFrames(t *testing.T) {
	_, err := Encode(Decode([]byte(`not json`)))
	assert.Error(t, err)
	_, err = Encode(Decode([]byte(`[9]`)))
	assert.Error(t, err)
	_, err = Encode(nil)
	assert.Error(t, err)
}

func TestNewCallErrorEncoding(t *testing.T) {
	data, err := Encode(NewCallError("m9", ProtocolError, "unexpected"))
	require.NoError(t, err)
	var fields []interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	require.Len(t, fields, 5)
	assert.EqualValues(t, 4, fields[0])
	assert.Equal(t, "m9", fields[1])
	assert.Equal(t, "ProtocolError", fields[2])
	assert.Equal(t, "unexpected", fields[3])
	assert.Equal(t, map[string]interface{}{}, fields[4])
}

func TestNewCallResultNilResponse(t *testing.T) {
	result, err := NewCallResult("m1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(result.Payload))
}
