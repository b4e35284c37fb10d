package rtp

import "fmt"

// HeaderSize is the packed size of Header in bytes.
const HeaderSize = 2

// MaxPayloadSize is the largest payload the radio buffers accept.
const MaxPayloadSize = 120

// Reserved link addresses.
const (
	// BroadcastAddress is accepted by every robot.
	BroadcastAddress uint8 = 0x00
	// RobotAddress is shared by all robots; individual robots are told apart by UID in the payload.
	RobotAddress uint8 = 0x01
	// LoopbackAddress marks packets that never leave the robot.
	LoopbackAddress uint8 = 0x02
	// BaseStationAddress is the destination of every robot reply.
	BaseStationAddress uint8 = 0xFF - 1
)

// InvalidRobotUID is the "unset" robot identity. Zero is a valid robot id.
const InvalidRobotUID uint8 = 0xFF

// Port selects the handler pair a packet is routed to.
type Port uint8

// Reserved ports.
const (
	PortSink Port = iota
	PortLink
	PortControl
	PortLegacy
	PortPing
)

// String returns the port name.
func (p Port) String() string {
	switch p {
	case PortSink:
		return "sink"
	case PortLink:
		return "link"
	case PortControl:
		return "control"
	case PortLegacy:
		return "legacy"
	case PortPing:
		return "ping"
	default:
		return fmt.Sprintf("port(%d)", uint8(p))
	}
}

// MessageType is an auxiliary classification carried next to the port.
type MessageType uint8

const (
	TypeControl MessageType = iota
	TypeTuning
	TypeFirmwareUpdate
	TypeMisc
)

// String returns the message type name.
func (t MessageType) String() string {
	switch t {
	case TypeControl:
		return "control"
	case TypeTuning:
		return "tuning"
	case TypeFirmwareUpdate:
		return "firmware-update"
	case TypeMisc:
		return "misc"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Header is the fixed packet header.
//
// Port and Type occupy four bits each on the wire. Values wider than four bits are truncated
// to their low nibble when packed; they are not otherwise validated.
type Header struct {
	Address uint8
	Port    Port
	Type    MessageType
}

// appendTo appends the packed header to dst.
func (h Header) appendTo(dst []byte) []byte {
	return append(dst, h.Address, byte(h.Port)&0x0F|(byte(h.Type)&0x0F)<<4)
}

// decodeHeader reinterprets the first HeaderSize bytes of buf. The caller checks the length.
func decodeHeader(buf []byte) Header {
	return Header{
		Address: buf[0],
		Port:    Port(buf[1] & 0x0F),
		Type:    MessageType(buf[1] >> 4),
	}
}
