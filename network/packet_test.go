package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/comm/address"
	"github.com/opd-ai/comm/limits"
	"github.com/opd-ai/comm/messaging"
)

func TestPacketSerialize(t *testing.T) {
	sender := address.ForString("sender")
	recipient := address.ForString("recipient")
	frame := messaging.Encode(messaging.NewTextMessage(sender, "hi"))

	tests := []struct {
		name   string
		packet *Packet
	}{
		{name: "data", packet: &Packet{PacketType: PacketData, Recipient: recipient, Body: frame}},
		{name: "relay", packet: &Packet{PacketType: PacketRelay, Recipient: recipient, Body: frame}},
		{name: "announce", packet: &Packet{PacketType: PacketAnnounce, Body: sender.Bytes()}},
		{name: "empty text", packet: &Packet{PacketType: PacketData, Recipient: recipient, Body: sender.Bytes()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.packet.Serialize()
			require.NoError(t, err)
			require.Len(t, data, limits.EnvelopeHeaderSize+len(tt.packet.Body))
			assert.Equal(t, byte(tt.packet.PacketType), data[0])
			assert.Equal(t, tt.packet.Recipient[:], data[1:limits.EnvelopeHeaderSize])

			parsed, err := ParsePacket(data)
			require.NoError(t, err)
			assert.Equal(t, tt.packet.PacketType, parsed.PacketType)
			assert.Equal(t, tt.packet.Recipient, parsed.Recipient)
			assert.Equal(t, []byte(tt.packet.Body), parsed.Body)

			got, err := parsed.Sender()
			require.NoError(t, err)
			assert.Equal(t, sender, got)
		})
	}
}

func TestParsePacketErrors(t *testing.T) {
	recipient := address.ForString("recipient")
	header := func(pt PacketType) []byte {
		return append([]byte{byte(pt)}, recipient[:]...)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short header", data: []byte{byte(PacketData), 1, 2, 3}},
		{name: "unknown type", data: append(header(PacketType(0x7f)), make([]byte, address.Size)...)},
		{name: "zero type", data: append(header(PacketType(0)), make([]byte, address.Size)...)},
		{name: "data without sender", data: append(header(PacketData), 1, 2, 3)},
		{name: "relay without sender", data: header(PacketRelay)},
		{name: "short announce", data: append(header(PacketAnnounce), 1)},
		{name: "long announce", data: append(header(PacketAnnounce), make([]byte, address.Size+1)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePacket(tt.data)
			assert.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestSerializeRejectsOversizedFrame(t *testing.T) {
	packet := &Packet{PacketType: PacketData, Body: make([]byte, limits.MaxFrameSize+1)}
	_, err := packet.Serialize()
	assert.ErrorIs(t, err, ErrMalformedPacket)
	assert.ErrorIs(t, err, limits.ErrMessageTooLarge)

	packet.Body = make([]byte, limits.MaxFrameSize)
	data, err := packet.Serialize()
	require.NoError(t, err)
	assert.Len(t, data, limits.MaxPacketSize)
}

func TestParsePacketDoesNotAlias(t *testing.T) {
	frame := messaging.Encode(messaging.NewTextMessage(address.ForString("a"), "text"))
	data, err := (&Packet{PacketType: PacketData, Body: frame}).Serialize()
	require.NoError(t, err)

	parsed, err := ParsePacket(data)
	require.NoError(t, err)
	data[len(data)-1] = 'X'
	assert.Equal(t, []byte(frame), parsed.Body)
}

func TestPacketTypeString(t *testing.T) {
	assert.Equal(t, "data", PacketData.String())
	assert.Equal(t, "announce", PacketAnnounce.String())
	assert.Equal(t, "relay", PacketRelay.String())
	assert.Equal(t, "unknown(9)", PacketType(9).String())
}
