package rtp

import "fmt"

// Packet is one RTP packet: header plus payload.
//
// Packets are passed by value between goroutines. Pack and Unpack copy the payload, so a
// decoded packet never aliases the receive buffer it came from.
type Packet struct {
	Header  Header
	Payload []byte
}

// NewPacket creates a packet for port with a copy of payload.
func NewPacket(port Port, payload []byte) Packet {
	pkt := Packet{Header: Header{Port: port, Type: TypeControl}}
	if len(payload) > 0 {
		pkt.Payload = append([]byte(nil), payload...)
	}

	return pkt
}

// NewStringPacket creates a packet whose payload is s followed by a NUL terminator.
func NewStringPacket(port Port, s string) Packet {
	payload := make([]byte, 0, len(s)+1)
	payload = append(payload, s...)
	payload = append(payload, 0)

	return Packet{Header: Header{Port: port, Type: TypeControl}, Payload: payload}
}

// Size returns the packed size of the packet.
func (p Packet) Size() int {
	return HeaderSize + len(p.Payload)
}

// Pack serializes the packet: header bytes followed by payload bytes.
func (p Packet) Pack() []byte {
	return p.AppendPack(make([]byte, 0, p.Size()))
}

// AppendPack appends the serialized packet to dst and returns the extended slice.
func (p Packet) AppendPack(dst []byte) []byte {
	dst = p.Header.appendTo(dst)
	return append(dst, p.Payload...)
}

// Clone returns a deep copy of the packet.
func (p Packet) Clone() Packet {
	c := p
	if p.Payload != nil {
		c.Payload = append([]byte(nil), p.Payload...)
	}

	return c
}

// String returns a short description for logging.
func (p Packet) String() string {
	return fmt.Sprintf("rtp{addr=0x%02X port=%s type=%s len=%d}",
		p.Header.Address, p.Header.Port, p.Header.Type, len(p.Payload))
}

// Unpack decodes buf into a packet.
//
// A buffer shorter than HeaderSize yields the zero Packet and ErrShortBuffer. Otherwise the
// header is taken from the first HeaderSize bytes and the remaining bytes are copied into the
// payload. Header enum values are passed through unvalidated.
func Unpack(buf []byte) (Packet, error) {
	if len(buf) < HeaderSize {
		return Packet{}, ErrShortBuffer
	}

	pkt := Packet{Header: decodeHeader(buf)}
	if len(buf) > HeaderSize {
		pkt.Payload = append([]byte(nil), buf[HeaderSize:]...)
	}

	return pkt, nil
}
