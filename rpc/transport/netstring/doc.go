// Package netstring implements the frame codec of the device protocol.
//
// Every message on the wire (except the initial protocol upgrade token) is a
// netstring: the payload length as ASCII decimal digits, a colon, the payload
// and a terminating comma.
//
//	"Hello" => "5:Hello,"
//	""      => "0:,"
//
// Key Components:
//
//   - Decode / DecodeWithLimits: parse a single frame at the start of a buffer.
//     Incomplete input is not an error, it returns zero bytes consumed.
//
//   - Encode: wrap a payload into a frame.
//
//   - Reassembler: accumulates arbitrary chunks read from a socket and yields
//     complete payloads in stream order. A buffer may hold zero, one or many
//     frames; callers never see partial ones.
//
// Limits:
//
//	The declared length is checked against Limits.MaxPayloadBytes while the
//	header is parsed, so a peer cannot force unbounded buffering by announcing
//	a huge frame. DefaultLimits allows 16 MiB.
package netstring
