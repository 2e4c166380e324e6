// Package livedata reads the online display stream of the Thales software.
//
// While a measurement runs, Thales sends its live values to a connection registered as
// "Logging". Every telegram carries one packet: a type byte followed by ASCII text.
package livedata

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-thales/telegram"
)

// ErrEmptyPacket is returned for a telegram without a type byte.
var ErrEmptyPacket = errors.New("empty live data packet")

// PacketType identifies the content of a Packet.
type PacketType uint8

const (
	InitMeasurement PacketType = 1
	MeasurementEnd  PacketType = 2
	DataNames       PacketType = 4
	DataUnits       PacketType = 5
	ASCIIData       PacketType = 6
)

func (t PacketType) String() string {
	switch t {
	case InitMeasurement:
		return "InitMeasurement"
	case MeasurementEnd:
		return "MeasurementEnd"
	case DataNames:
		return "DataNames"
	case DataUnits:
		return "DataUnits"
	case ASCIIData:
		return "ASCIIData"
	default:
		return fmt.Sprintf("PacketType(%d)", uint8(t))
	}
}

// Known reports whether t is one of the documented packet types.
func (t PacketType) Known() bool {
	switch t {
	case InitMeasurement, MeasurementEnd, DataNames, DataUnits, ASCIIData:
		return true
	}
	return false
}

// Packet is one online display message.
type Packet struct {
	Type PacketType
	Data []byte
}

// Text returns the packet data as text.
func (p Packet) Text() string {
	return telegram.DecodeText(p.Data)
}

// ParsePacket splits a telegram payload into type and data. Unknown types are returned as
// they are, callers check Known.
func ParsePacket(payload []byte) (Packet, error) {
	if len(payload) == 0 {
		return Packet{}, ErrEmptyPacket
	}

	return Packet{Type: PacketType(payload[0]), Data: payload[1:]}, nil
}
