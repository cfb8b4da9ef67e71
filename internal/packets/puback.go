package packets

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PubackPacket represents an MQTT PUBACK control packet (QoS 1 acknowledgment).
type PubackPacket struct {
	PacketID uint16
}

func (p *PubackPacket) Type() uint8 { return PUBACK }

func (p *PubackPacket) WriteTo(w io.Writer) (int64, error) {
	return writePacketIDOnly(w, PUBACK, 0, p.PacketID)
}

// DecodePuback decodes a PUBACK packet from buf.
func DecodePuback(buf []byte) (*PubackPacket, error) {
	id, err := decodePacketIDOnly(buf, "PUBACK")
	if err != nil {
		return nil, err
	}
	return &PubackPacket{PacketID: id}, nil
}

func writePacketIDOnly(w io.Writer, packetType uint8, flags uint8, packetID uint16) (int64, error) {
	header := FixedHeader{PacketType: packetType, Flags: flags, RemainingLength: 2}
	total, err := header.WriteTo(w)
	if err != nil {
		return total, err
	}
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], packetID)
	n, err := w.Write(buf[:])
	return total + int64(n), err
}

func decodePacketIDOnly(buf []byte, name string) (uint16, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("buffer too short for %s packet", name)
	}
	return binary.BigEndian.Uint16(buf[0:2]), nil
}
