// Package rtp implements the real-time packet format carried over the robot radio link.
//
// A packet is a fixed two byte header followed by a variable payload:
//
//	offset 0: address              (1 byte)
//	offset 1: port(bits 0-3) | type(bits 4-7)
//	offset 2: payload              (0..MaxPayloadSize bytes)
//
// There is no framing, escaping or checksum at this layer; the radio MAC handles integrity.
//
// Two payload schemas ride on the control port:
//   - Forward (base station to robots): up to MaxControlMessages ControlMessage records, one
//     per addressed robot, see EncodeControlFrame and DecodeControlFrame.
//   - Reverse (robot to base station): a single RobotStatusMessage.
//
// All multi-byte fields are little-endian.
package rtp
