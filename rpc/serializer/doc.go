// Package serializer converts protocol messages to and from the payload bytes
// carried inside netstring frames.
//
// Key Components:
//
//   - IRPCSerializer: Interface used by the client and the simulator, so the
//     encoding can be swapped in tests.
//
//   - jsonSerializerImpl: JSON encoding, the only format the device protocol
//     speaks. Request parameters and response results stay raw JSON.
//
// Thread Safety:
//
//	Serializers are stateless and safe for concurrent use.
package serializer
