// Package telegram implements the framing of the Term remote protocol.
//
// Every telegram on the wire is
//
//	uint16 payload length | uint8 channel | payload
//
// The length counts only payload bytes, its byte order comes from the ProtocolVersion.
// Text payloads use a single byte Windows character set, see EncodeText and DecodeText.
package telegram

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize is the number of bytes preceding the payload.
	HeaderSize = 3
	// MaxPayloadSize is the largest payload the length field can describe.
	MaxPayloadSize = math.MaxUint16
)

// Telegram is one framed message.
type Telegram struct {
	Channel Channel
	Payload []byte
}

// Text returns the payload decoded as text.
func (t Telegram) Text() string {
	return DecodeText(t.Payload)
}

// Encode builds the wire frame for payload on channel ch.
func Encode(ch Channel, payload []byte, order binary.ByteOrder) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	frame := make([]byte, HeaderSize+len(payload))
	order.PutUint16(frame[0:2], uint16(len(payload)))
	frame[2] = byte(ch)
	copy(frame[HeaderSize:], payload)

	return frame, nil
}

// EncodeString encodes s to the wire character set and builds its frame on channel ch.
func EncodeString(ch Channel, s string, order binary.ByteOrder) ([]byte, error) {
	payload, err := EncodeText(s)
	if err != nil {
		return nil, err
	}

	return Encode(ch, payload, order)
}

// Read reads exactly one telegram from r. hdr is an optional scratch buffer of at least
// HeaderSize bytes, a nil hdr allocates one.
//
// Any short read or socket error is returned as is, wrapped with the phase that failed.
// A zero length telegram is valid and returned with an empty payload.
func Read(r io.Reader, order binary.ByteOrder, hdr []byte) (Telegram, error) {
	if len(hdr) < HeaderSize {
		hdr = make([]byte, HeaderSize)
	}
	hdr = hdr[:HeaderSize]

	if _, err := io.ReadFull(r, hdr); err != nil {
		return Telegram{}, fmt.Errorf("read telegram header: %w", err)
	}

	length := int(order.Uint16(hdr[0:2]))
	t := Telegram{Channel: Channel(hdr[2]), Payload: make([]byte, length)}
	if length == 0 {
		return t, nil
	}

	if _, err := io.ReadFull(r, t.Payload); err != nil {
		return Telegram{}, fmt.Errorf("read telegram payload: %w", err)
	}

	return t, nil
}
