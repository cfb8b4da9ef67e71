package packets

import "io"

// PubcompPacket represents an MQTT PUBCOMP control packet (QoS 2, step 3).
type PubcompPacket struct {
	PacketID uint16
}

func (p *PubcompPacket) Type() uint8 { return PUBCOMP }

func (p *PubcompPacket) WriteTo(w io.Writer) (int64, error) {
	return writePacketIDOnly(w, PUBCOMP, 0, p.PacketID)
}

// DecodePubcomp decodes a PUBCOMP packet from buf.
func DecodePubcomp(buf []byte) (*PubcompPacket, error) {
	id, err := decodePacketIDOnly(buf, "PUBCOMP")
	if err != nil {
		return nil, err
	}
	return &PubcompPacket{PacketID: id}, nil
}
