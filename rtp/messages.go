package rtp

import (
	"encoding/binary"
	"fmt"
)

// Payload schema sizes.
const (
	// ControlMessageSize is the packed size of ControlMessage.
	ControlMessageSize = 10
	// RobotStatusMessageSize is the packed size of RobotStatusMessage.
	RobotStatusMessageSize = 4
	// MaxControlMessages is the number of robots one forward frame can address.
	MaxControlMessages = 6

	// ForwardSize is the size of a full forward (base station to robot) packet.
	ForwardSize = HeaderSize + MaxControlMessages*ControlMessageSize
	// ReverseSize is the size of a reverse (robot to base station) packet.
	ReverseSize = HeaderSize + RobotStatusMessageSize
)

// VelocityScaleFactor is applied to body velocities before they are sent as integers.
// Receivers divide BodyX, BodyY and BodyW by it to recover the float value.
const VelocityScaleFactor = 1000

// BatteryReadingScaleFactor converts the raw ADC reading in RobotStatusMessage.BattVoltage to volts.
const BatteryReadingScaleFactor = 0.09884

// Shoot modes.
const (
	ShootKick uint8 = 0
	ShootChip uint8 = 1
)

// Kicker trigger modes.
const (
	TriggerOff       uint8 = 0
	TriggerImmediate uint8 = 1
	TriggerBreakBeam uint8 = 2
)

// FPGA status values.
const (
	FPGAGood           uint8 = 0
	FPGANotInitialized uint8 = 1
	FPGAError          uint8 = 2
)

// ControlMessage is one robot's command inside a forward frame.
//
// Wire layout (10 bytes): uid, bodyX(i16), bodyY(i16), bodyW(i16), dribbler(i8),
// kickStrength, flags. flags packs ShootMode in bit 0, TriggerMode in bits 1-2 and
// Song in bits 3-4.
type ControlMessage struct {
	UID          uint8
	BodyX        int16
	BodyY        int16
	BodyW        int16
	Dribbler     int8
	KickStrength uint8
	ShootMode    uint8 // 1 bit
	TriggerMode  uint8 // 2 bits
	Song         uint8 // 2 bits
}

// AppendTo appends the packed message to dst.
func (m ControlMessage) AppendTo(dst []byte) []byte {
	dst = append(dst, m.UID)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(m.BodyX))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(m.BodyY))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(m.BodyW))
	flags := m.ShootMode&0x01 | (m.TriggerMode&0x03)<<1 | (m.Song&0x03)<<3

	return append(dst, byte(m.Dribbler), m.KickStrength, flags)
}

// DecodeControlMessage decodes one ControlMessage from the start of buf.
func DecodeControlMessage(buf []byte) (ControlMessage, error) {
	if len(buf) < ControlMessageSize {
		return ControlMessage{}, fmt.Errorf("control message: %w", ErrShortBuffer)
	}

	flags := buf[9]

	return ControlMessage{
		UID:          buf[0],
		BodyX:        int16(binary.LittleEndian.Uint16(buf[1:3])),
		BodyY:        int16(binary.LittleEndian.Uint16(buf[3:5])),
		BodyW:        int16(binary.LittleEndian.Uint16(buf[5:7])),
		Dribbler:     int8(buf[7]),
		KickStrength: buf[8],
		ShootMode:    flags & 0x01,
		TriggerMode:  (flags >> 1) & 0x03,
		Song:         (flags >> 3) & 0x03,
	}, nil
}

// EncodeControlFrame packs up to MaxControlMessages control messages into a forward payload.
func EncodeControlFrame(msgs []ControlMessage) ([]byte, error) {
	if len(msgs) > MaxControlMessages {
		return nil, ErrTooManyMessages
	}

	buf := make([]byte, 0, len(msgs)*ControlMessageSize)
	for _, m := range msgs {
		buf = m.AppendTo(buf)
	}

	return buf, nil
}

// DecodeControlFrame decodes the complete control messages in a forward payload.
//
// Trailing bytes that do not form a whole message are ignored, as is anything past the
// MaxControlMessages-th record.
func DecodeControlFrame(payload []byte) []ControlMessage {
	n := len(payload) / ControlMessageSize
	if n > MaxControlMessages {
		n = MaxControlMessages
	}

	msgs := make([]ControlMessage, 0, n)
	for i := 0; i < n; i++ {
		m, _ := DecodeControlMessage(payload[i*ControlMessageSize:])
		msgs = append(msgs, m)
	}

	return msgs
}

// RobotStatusMessage is the reverse payload a robot sends in its reply slot.
//
// Wire layout (4 bytes): uid, battVoltage, then BallSenseStatus in bits 0-1 and MotorErrors
// in bits 2-6 of byte 2, and FPGAStatus in bits 0-1 of byte 3.
type RobotStatusMessage struct {
	UID             uint8
	BattVoltage     uint8 // raw ADC reading, see Voltage
	BallSenseStatus uint8 // 2 bits
	MotorErrors     uint8 // 5 bits, one per motor, 1 = error
	FPGAStatus      uint8 // 2 bits
}

// Voltage converts the raw battery reading to volts.
func (m RobotStatusMessage) Voltage() float64 {
	return float64(m.BattVoltage) * BatteryReadingScaleFactor
}

// AppendTo appends the packed message to dst.
func (m RobotStatusMessage) AppendTo(dst []byte) []byte {
	return append(dst,
		m.UID,
		m.BattVoltage,
		m.BallSenseStatus&0x03|(m.MotorErrors&0x1F)<<2,
		m.FPGAStatus&0x03,
	)
}

// Bytes returns the packed message.
func (m RobotStatusMessage) Bytes() []byte {
	return m.AppendTo(make([]byte, 0, RobotStatusMessageSize))
}

// DecodeRobotStatusMessage decodes a RobotStatusMessage from the start of buf.
func DecodeRobotStatusMessage(buf []byte) (RobotStatusMessage, error) {
	if len(buf) < RobotStatusMessageSize {
		return RobotStatusMessage{}, fmt.Errorf("robot status message: %w", ErrShortBuffer)
	}

	return RobotStatusMessage{
		UID:             buf[0],
		BattVoltage:     buf[1],
		BallSenseStatus: buf[2] & 0x03,
		MotorErrors:     (buf[2] >> 2) & 0x1F,
		FPGAStatus:      buf[3] & 0x03,
	}, nil
}
