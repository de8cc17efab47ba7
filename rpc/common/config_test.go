package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfigLabel(t *testing.T) {
	single := ClientConfig{ClientInfo: "Pool test", MaxConnections: 1}
	assert.Equal(t, "Pool test", single.Label(1))

	multi := ClientConfig{ClientInfo: "Pool test", MaxConnections: 3}
	assert.Equal(t, "Pool test 2/3", multi.Label(2))
}

func TestClientConfigDefaults(t *testing.T) {
	c := ClientConfig{}.WithDefaults()
	assert.Equal(t, DefaultAddress, c.Address)
	assert.Equal(t, DefaultPort, c.Port)
	assert.Equal(t, DefaultClientInfo, c.ClientInfo)
	assert.Equal(t, DefaultMaxConnections, c.MaxConnections)

	c = ClientConfig{Address: "plc", Port: 1, MaxConnections: 4}.WithDefaults()
	assert.Equal(t, "plc", c.Address)
	assert.Equal(t, 1, c.Port)
	assert.Equal(t, 4, c.MaxConnections)
}

// TestRequestWireShape checks the exact JSON of every request type
func TestRequestWireShape(t *testing.T) {
	write, err := NewWriteRequest("sim1", []Param{{Name: "3x0005", Value: 12}, {Name: "mode", Value: "auto"}})
	require.NoError(t, err)
	emptyWrite, err := NewWriteRequest("sim1", nil)
	require.NoError(t, err)

	tests := []struct {
		msg  *Message
		want string
	}{
		{NewClientInfoRequest("Pool test 1/3"), `{"r":"client-info","name":"Pool test 1/3"}`},
		{NewDeviceListRequest(), `{"r":"device-list"}`},
		{NewReadRequest("sim1", []string{"3x0005", "3x0010"}), `{"r":"read","device":"sim1","p":["3x0005","3x0010"]}`},
		{NewReadRequest("sim1", nil), `{"r":"read","device":"sim1","p":[]}`},
		{write, `{"r":"write","device":"sim1","p":[["3x0005",12],["mode","auto"]]}`},
		{emptyWrite, `{"r":"write","device":"sim1","p":[]}`},
	}

	for _, tt := range tests {
		b, err := json.Marshal(tt.msg)
		require.NoError(t, err)
		assert.JSONEq(t, tt.want, string(b))
	}
}

// TestWriteParamsAreArray checks that write parameters go out as a JSON array of pairs
func TestWriteParamsAreArray(t *testing.T) {
	write, err := NewWriteRequest("sim1", []Param{{Name: "3x0005", Value: 7}})
	require.NoError(t, err)

	var p []any
	require.NoError(t, json.Unmarshal(write.P, &p), "write p is not a JSON array: %s", write.P)
	assert.Equal(t, []any{[]any{"3x0005", float64(7)}}, p)
}

func TestParamUnmarshal(t *testing.T) {
	var params []Param
	require.NoError(t, json.Unmarshal([]byte(`[["a",1],["b",[true,null]]]`), &params))
	assert.Equal(t, []Param{
		{Name: "a", Value: float64(1)},
		{Name: "b", Value: []any{true, nil}},
	}, params)

	for _, in := range []string{`[{"a":1}]`, `[["a"]]`, `[["a",1,2]]`, `[[1,1]]`, `["a"]`} {
		assert.Error(t, json.Unmarshal([]byte(in), &params), "input %s", in)
	}
}

func TestResponseHasError(t *testing.T) {
	var ok Message
	require.NoError(t, json.Unmarshal([]byte(`{"result":{"3x0005":1}}`), &ok))
	assert.False(t, ok.HasError())
	assert.JSONEq(t, `{"3x0005":1}`, string(ok.Result))

	var failed Message
	require.NoError(t, json.Unmarshal([]byte(`{"error":"unknown device"}`), &failed))
	assert.True(t, failed.HasError())

	assert.True(t, NewErrorResponse("boom").HasError())
}

func TestFrameLimit(t *testing.T) {
	assert.Equal(t, uint64(DefaultMaxFrameSize), (&ClientConfig{}).FrameLimit())
	assert.Equal(t, uint64(0), (&ClientConfig{MaxFrameSize: -1}).FrameLimit())
	assert.Equal(t, uint64(512), (&ServerConfig{MaxFrameSize: 512}).FrameLimit())
}
