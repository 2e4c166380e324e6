package telegram

import "errors"

var (
	// ErrPayloadTooLarge is returned when a payload does not fit the 16-bit length field.
	ErrPayloadTooLarge = errors.New("telegram payload exceeds 65535 bytes")

	// ErrUnencodable is returned when text contains characters outside the wire character set.
	ErrUnencodable = errors.New("text not encodable in wire character set")

	// ErrInvalidName is returned for an empty or unencodable connection name.
	ErrInvalidName = errors.New("invalid connection name")

	// ErrUnknownProtocol is returned for an unsupported ProtocolVersion value.
	ErrUnknownProtocol = errors.New("unknown protocol version")
)
