package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_Layout(t *testing.T) {
	pkt := Packet{Header: Header{Address: BaseStationAddress, Port: PortLegacy, Type: TypeFirmwareUpdate}}
	buf := pkt.Pack()

	require.Len(t, buf, HeaderSize)
	assert.Equal(t, byte(0xFE), buf[0])
	assert.Equal(t, byte(0x03), buf[1]&0x0F, "port lives in the low nibble")
	assert.Equal(t, byte(0x02), buf[1]>>4, "type lives in the high nibble")
}

func TestHeader_TruncatesWideFields(t *testing.T) {
	pkt := Packet{Header: Header{Port: Port(0x1F), Type: MessageType(0xF3)}}
	buf := pkt.Pack()

	assert.Equal(t, byte(0x3F), buf[1])

	got, err := Unpack(buf)
	require.NoError(t, err)
	assert.Equal(t, Port(0x0F), got.Header.Port)
	assert.Equal(t, MessageType(0x03), got.Header.Type)
}

func TestPacket_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pkt  Packet
	}{
		{"empty payload", Packet{Header: Header{Address: BroadcastAddress, Port: PortSink}}},
		{"control", Packet{Header: Header{Address: RobotAddress, Port: PortControl, Type: TypeControl}, Payload: []byte{1, 2, 3}}},
		{"tuning", Packet{Header: Header{Address: LoopbackAddress, Port: PortLink, Type: TypeTuning}, Payload: []byte{0xFF}}},
		{"unknown port passes through", Packet{Header: Header{Address: 0x7A, Port: Port(14), Type: MessageType(9)}, Payload: make([]byte, MaxPayloadSize)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := tt.pkt.Pack()
			require.Len(t, buf, tt.pkt.Size())

			got, err := Unpack(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.pkt.Header, got.Header)
			assert.Equal(t, tt.pkt.Payload, got.Payload)
		})
	}
}

func TestUnpack_Truncated(t *testing.T) {
	for _, buf := range [][]byte{nil, {}, {0x01}} {
		got, err := Unpack(buf)
		require.ErrorIs(t, err, ErrShortBuffer)
		assert.Equal(t, Packet{}, got)
	}
}

func TestUnpack_DoesNotAliasInput(t *testing.T) {
	buf := []byte{BroadcastAddress, byte(PortControl), 1, 2, 3}
	pkt, err := Unpack(buf)
	require.NoError(t, err)

	buf[2] = 99
	assert.Equal(t, []byte{1, 2, 3}, pkt.Payload)
}

func TestPacket_AppendPack(t *testing.T) {
	pkt := NewPacket(PortPing, []byte{9, 8})
	out := pkt.AppendPack([]byte{0xAA})

	assert.Equal(t, []byte{0xAA, 0x00, byte(PortPing), 9, 8}, out)
}

func TestNewStringPacket(t *testing.T) {
	pkt := NewStringPacket(PortLink, "hi")

	assert.Equal(t, PortLink, pkt.Header.Port)
	assert.Equal(t, []byte{'h', 'i', 0}, pkt.Payload)
	assert.Equal(t, HeaderSize+3, pkt.Size())
}

func TestPacket_Clone(t *testing.T) {
	pkt := NewPacket(PortControl, []byte{1})
	c := pkt.Clone()
	c.Payload[0] = 2

	assert.Equal(t, byte(1), pkt.Payload[0])
}

func TestPortString(t *testing.T) {
	assert.Equal(t, "control", PortControl.String())
	assert.Equal(t, "port(9)", Port(9).String())
	assert.Equal(t, "firmware-update", TypeFirmwareUpdate.String())
}
