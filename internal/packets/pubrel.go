package packets

import "io"

// PubrelPacket represents an MQTT PUBREL control packet (QoS 2, step 2).
// Its fixed header flags MUST be 0x02 per the MQTT spec.
type PubrelPacket struct {
	PacketID uint16
}

func (p *PubrelPacket) Type() uint8 { return PUBREL }

func (p *PubrelPacket) WriteTo(w io.Writer) (int64, error) {
	return writePacketIDOnly(w, PUBREL, 0x02, p.PacketID)
}

// DecodePubrel decodes a PUBREL packet from buf.
func DecodePubrel(buf []byte) (*PubrelPacket, error) {
	id, err := decodePacketIDOnly(buf, "PUBREL")
	if err != nil {
		return nil, err
	}
	return &PubrelPacket{PacketID: id}, nil
}
