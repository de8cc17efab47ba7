package serializer

import (
	"encoding/json"
	"github.com/ValentinKolb/netcom/rpc/common"
	"reflect"
	"testing"
)

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	write, _ := common.NewWriteRequest("boom1", []common.Param{{Name: "0", Value: 1.5}})
	result, _ := common.NewResultResponse(map[string]any{"0": 1.5})
	return []common.Message{
		*common.NewClientInfoRequest("Pool test 1/3"),
		*common.NewDeviceListRequest(),
		*common.NewReadRequest("boom1", []string{"0", "1"}),
		*write,
		*result,
		*common.NewErrorResponse("unknown device"),
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	serializer := NewJSONSerializer()

	for i, msg := range testMessages() {
		data, err := serializer.Serialize(msg)
		if err != nil {
			t.Errorf("Failed to serialize message %d: %v", i, err)
			continue
		}

		var result common.Message
		if err := serializer.Deserialize(data, &result); err != nil {
			t.Errorf("Failed to deserialize message %d: %v", i, err)
			continue
		}

		if !reflect.DeepEqual(msg, result) {
			t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v", i, msg, result)
		}
	}
}

// TestDeserializeForeignFields makes sure unknown response fields are ignored
func TestDeserializeForeignFields(t *testing.T) {
	var msg common.Message
	err := NewJSONSerializer().Deserialize([]byte(`{"result":[1,2],"seq":7}`), &msg)
	if err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}

	var result []int
	if err := json.Unmarshal(msg.Result, &result); err != nil || len(result) != 2 {
		t.Errorf("Unexpected result %s (%v)", msg.Result, err)
	}
}

// TestDeserializeInvalid tests that malformed payloads are rejected
func TestDeserializeInvalid(t *testing.T) {
	var msg common.Message
	if err := NewJSONSerializer().Deserialize([]byte(`{"result":`), &msg); err == nil {
		t.Errorf("Expected an error for truncated JSON")
	}
}
