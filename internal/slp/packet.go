package slp

import (
	"encoding/binary"

	"github.com/woozymasta/mcping/internal/varint"
)

const (
	// PacketHandshake is the serverbound handshake id (also the status request id).
	PacketHandshake = 0x00

	// PacketStatusRequest asks for the status payload after the handshake.
	PacketStatusRequest = 0x00

	// PacketStatusResponse carries the JSON status payload.
	PacketStatusResponse = 0x00

	// NextStateStatus selects the status state in the handshake.
	NextStateStatus = 1
)

// Frame encodes one packet as VarInt(len(id ++ payload)) ++ VarInt(id) ++ payload.
func Frame(id uint32, payload []byte) []byte {
	n := varint.Size(id) + len(payload)
	out := make([]byte, 0, varint.MaxLen+n)
	out = varint.Append(out, uint32(n))
	out = varint.Append(out, id)
	return append(out, payload...)
}

// HandshakePacket builds the framed handshake selecting the status state.
func HandshakePacket(protocol int32, host string, port uint16) []byte {
	payload := varint.Append(nil, uint32(protocol))
	payload = varint.AppendString(payload, host)
	payload = binary.BigEndian.AppendUint16(payload, port)
	payload = varint.Append(payload, NextStateStatus)
	return Frame(PacketHandshake, payload)
}

// StatusRequestPacket builds the framed, empty status request.
func StatusRequestPacket() []byte {
	return Frame(PacketStatusRequest, nil)
}
