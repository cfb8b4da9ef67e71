package packets

import "io"

// PubrecPacket represents an MQTT PUBREC control packet (QoS 2, step 1).
type PubrecPacket struct {
	PacketID uint16
}

func (p *PubrecPacket) Type() uint8 { return PUBREC }

func (p *PubrecPacket) WriteTo(w io.Writer) (int64, error) {
	return writePacketIDOnly(w, PUBREC, 0, p.PacketID)
}

// DecodePubrec decodes a PUBREC packet from buf.
func DecodePubrec(buf []byte) (*PubrecPacket, error) {
	id, err := decodePacketIDOnly(buf, "PUBREC")
	if err != nil {
		return nil, err
	}
	return &PubrecPacket{PacketID: id}, nil
}
