package serializer

import "github.com/ValentinKolb/netcom/rpc/common"

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize encodes a Message into the payload of a frame
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes a frame payload into msg
	// It returns an error if the payload is not a valid message
	Deserialize(b []byte, msg *common.Message) error
}
