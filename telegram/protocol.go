package telegram

import (
	"encoding/binary"
	"fmt"
)

// ProtocolVersion selects the framing generation spoken by the Term software.
//
// The generations differ in the byte order of the registration length, the registration tag
// and whether the client announces its close on the control channel before saying goodbye.
// Telegram lengths are little-endian in every generation.
type ProtocolVersion uint8

const (
	// ProtocolV2 is the current generation and the default.
	ProtocolV2 ProtocolVersion = iota
	// ProtocolV1 is the legacy generation used by old Term releases.
	ProtocolV1
)

// registration tags, sent between the name length and the name
var (
	registrationTagV2 = [6]byte{0x12, 0xD0, 0xFF, 0xFF, 0xFF, 0xFF}
	registrationTagV1 = [6]byte{0x02, 0xD0, 0xFF, 0xFF, 0xFF, 0xFF}
)

// goodbyePayload is sent on ChannelGoodbye when a connection closes.
var goodbyePayload = []byte{0xFF, 0xFF}

func (v ProtocolVersion) String() string {
	switch v {
	case ProtocolV2:
		return "v2"
	case ProtocolV1:
		return "v1"
	default:
		return fmt.Sprintf("ProtocolVersion(%d)", uint8(v))
	}
}

// Validate returns ErrUnknownProtocol if v is not a supported generation.
func (v ProtocolVersion) Validate() error {
	if v != ProtocolV2 && v != ProtocolV1 {
		return fmt.Errorf("%w: %d", ErrUnknownProtocol, uint8(v))
	}
	return nil
}

// LengthOrder returns the byte order of the telegram length field.
func (v ProtocolVersion) LengthOrder() binary.ByteOrder {
	return binary.LittleEndian
}

// RegistrationOrder returns the byte order of the registration frame length field.
func (v ProtocolVersion) RegistrationOrder() binary.ByteOrder {
	if v == ProtocolV1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// RegistrationTag returns the 6 byte tag that follows the registration length.
func (v ProtocolVersion) RegistrationTag() [6]byte {
	if v == ProtocolV1 {
		return registrationTagV1
	}
	return registrationTagV2
}

// AnnouncesClose reports whether the client sends "3,<name>,0,RS" on the control channel
// and waits for the reply before the goodbye telegram.
func (v ProtocolVersion) AnnouncesClose() bool {
	return v == ProtocolV2
}

// RegistrationFrame builds the frame that registers a connection under name:
// a 2 byte length of the name, the 6 byte tag and the name itself.
// The length counts only the name bytes.
func (v ProtocolVersion) RegistrationFrame(name string) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ErrInvalidName
	}

	nameBytes, err := EncodeText(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidName, err)
	}
	if len(nameBytes) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	tag := v.RegistrationTag()
	frame := make([]byte, 2, 2+len(tag)+len(nameBytes))
	v.RegistrationOrder().PutUint16(frame, uint16(len(nameBytes)))
	frame = append(frame, tag[:]...)
	frame = append(frame, nameBytes...)

	return frame, nil
}

// GoodbyeFrame returns the telegram announcing that the client leaves.
func (v ProtocolVersion) GoodbyeFrame() []byte {
	frame, _ := Encode(ChannelGoodbye, goodbyePayload, v.LengthOrder())
	return frame
}
