package netstring

import (
	"fmt"
	"math"
	"strconv"
)

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// FramingError is returned when a buffer does not hold a well-formed netstring.
// A framing error is not recoverable: the stream position is lost.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string {
	return "netstring: " + e.Reason
}

var (
	// ErrNoDigits is returned if the colon is the first byte of the frame
	ErrNoDigits = &FramingError{Reason: "no digits before colon"}

	// ErrNonDigit is returned if anything but ASCII digits precedes the colon
	ErrNonDigit = &FramingError{Reason: "non-digit before colon"}

	// ErrBadTerminator is returned if the byte after the payload is not a comma
	ErrBadTerminator = &FramingError{Reason: "bad terminator"}

	// ErrTooLarge is returned if the declared length exceeds Limits.MaxPayloadBytes
	ErrTooLarge = &FramingError{Reason: "declared length exceeds limit"}
)

// --------------------------------------------------------------------------
// Limits
// --------------------------------------------------------------------------

// Limits constrains how much a single frame may make the decoder buffer.
type Limits struct {
	// MaxPayloadBytes is the largest accepted declared length, 0 disables the check
	MaxPayloadBytes uint64
}

// DefaultLimits returns the limits used by Decode
func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 16 * 1024 * 1024,
	}
}

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

const (
	colon = ':'
	comma = ','

	// minFrameSize is the size of the smallest frame "0:,"
	minFrameSize = 3
)

// Encode wraps the payload into a netstring: "<len>:<payload>,"
func Encode(payload []byte) []byte {
	header := strconv.AppendInt(nil, int64(len(payload)), 10)
	frame := make([]byte, 0, len(header)+len(payload)+2)
	frame = append(frame, header...)
	frame = append(frame, colon)
	frame = append(frame, payload...)
	return append(frame, comma)
}

// Decode parses the netstring at the start of buf using DefaultLimits.
//
// It returns the payload and the number of bytes consumed (header, payload and
// terminator). If buf does not yet hold a complete frame, Decode returns
// (nil, 0, nil). The payload aliases buf.
func Decode(buf []byte) (payload []byte, consumed int, err error) {
	return DecodeWithLimits(buf, DefaultLimits())
}

// DecodeWithLimits is Decode with explicit limits
func DecodeWithLimits(buf []byte, limits Limits) (payload []byte, consumed int, err error) {
	// nothing is judged before a whole frame could fit, so ":" or "1X" still wait
	if len(buf) < minFrameSize {
		return nil, 0, nil
	}

	var length uint64
	i := 0
	for ; i < len(buf); i++ {
		c := buf[i]
		if c == colon {
			if i == 0 {
				return nil, 0, ErrNoDigits
			}
			break
		}
		if c < '0' || c > '9' {
			return nil, 0, ErrNonDigit
		}

		if length > (math.MaxUint64-9)/10 {
			return nil, 0, ErrTooLarge
		}
		length = length*10 + uint64(c-'0')
		if limits.MaxPayloadBytes > 0 && length > limits.MaxPayloadBytes {
			return nil, 0, ErrTooLarge
		}
	}

	// no colon yet
	if i == len(buf) {
		return nil, 0, nil
	}

	// payload and terminator must follow the colon
	start := i + 1
	available := uint64(len(buf) - start)
	if available == 0 || length > available-1 {
		return nil, 0, nil
	}

	end := start + int(length)
	if buf[end] != comma {
		return nil, 0, ErrBadTerminator
	}

	return buf[start:end], end + 1, nil
}

// --------------------------------------------------------------------------
// Reassembler
// --------------------------------------------------------------------------

// Reassembler turns arbitrary chunks of a byte stream back into frames.
// It is not safe for concurrent use.
type Reassembler struct {
	limits Limits
	buffer []byte
}

// NewReassembler creates a reassembler enforcing the given limits
func NewReassembler(limits Limits) *Reassembler {
	return &Reassembler{limits: limits}
}

// Feed appends chunk to the receive buffer and returns all payloads that are
// now complete, in stream order. The returned payloads are copies and stay
// valid after further calls.
//
// After an error the reassembler holds no data and must not be fed again:
// payloads decoded before the error are returned alongside it.
func (r *Reassembler) Feed(chunk []byte) ([][]byte, error) {
	r.buffer = append(r.buffer, chunk...)

	var payloads [][]byte
	for len(r.buffer) > 0 {
		payload, consumed, err := DecodeWithLimits(r.buffer, r.limits)
		if err != nil {
			r.buffer = nil
			return payloads, fmt.Errorf("decode frame: %w", err)
		}
		if consumed == 0 {
			break
		}

		payloads = append(payloads, append([]byte(nil), payload...))
		r.buffer = r.buffer[consumed:]
	}

	// drop the backing array once everything is consumed
	if len(r.buffer) == 0 {
		r.buffer = nil
	}
	return payloads, nil
}

// Buffered returns the number of bytes waiting for the rest of their frame
func (r *Reassembler) Buffered() int {
	return len(r.buffer)
}
