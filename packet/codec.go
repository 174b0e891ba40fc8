package packet

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/cyberinferno/go-gameserver/utils"
)

const (
	// HeaderSize is the size of the length prefix in bytes.
	HeaderSize = 2

	// MaxBodySize is the largest serialized body a frame can carry.
	MaxBodySize = math.MaxUint16
)

var (
	// ErrPayloadTooLarge is returned by Encode when the serialized body does
	// not fit in the 2-byte length prefix.
	ErrPayloadTooLarge = errors.New("packet body exceeds 65535 bytes")

	// ErrShortFrame is returned by Decode when the stream ends before the
	// full prefix or body has been read.
	ErrShortFrame = errors.New("short frame")

	// ErrMalformed is returned by Decode when a complete body is not a valid
	// packet.
	ErrMalformed = errors.New("malformed packet")
)

// Encode serializes p into a single frame ready to be written to a stream.
//
// Parameters:
//   - p: The packet to encode
//
// Returns:
//   - The frame bytes (length prefix followed by the JSON body)
//   - ErrPayloadTooLarge if the body exceeds MaxBodySize, or a marshal error
func Encode(p Packet) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal packet: %w", err)
	}

	if len(body) > MaxBodySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(body))
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint16(header, uint16(len(body)))
	return utils.JoinBytes(header, body), nil
}

// Decode reads exactly one frame from r and parses it. It blocks until the
// whole frame is available or r fails; callers that must not block check for
// available data first (see connection.Connection.Receive).
//
// Parameters:
//   - r: The stream to read from
//
// Returns:
//   - The decoded packet, or the zero Packet on error
//   - An error wrapping ErrShortFrame if the stream ended mid-frame, or
//     ErrMalformed if the body could not be parsed
func Decode(r io.Reader) (Packet, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Packet{}, fmt.Errorf("%w: reading header: %w", ErrShortFrame, err)
	}

	body := make([]byte, binary.LittleEndian.Uint16(header))
	if _, err := io.ReadFull(r, body); err != nil {
		return Packet{}, fmt.Errorf("%w: reading %d byte body: %w", ErrShortFrame, len(body), err)
	}

	var p Packet
	if err := json.Unmarshal(body, &p); err != nil {
		if errors.Is(err, ErrMalformed) {
			return Packet{}, err
		}

		return Packet{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return p, nil
}
