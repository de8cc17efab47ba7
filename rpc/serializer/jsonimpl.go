package serializer

import (
	"encoding/json"
	"errors"
	"github.com/ValentinKolb/netcom/rpc/common"
)

// NewJSONSerializer creates a new serializer speaking the JSON payloads of the device protocol
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	if len(b) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(b, msg)
}
