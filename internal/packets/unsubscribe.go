package packets

import (
	"encoding/binary"
	"fmt"
	"io"
)

// UnsubscribePacket represents an MQTT UNSUBSCRIBE control packet.
type UnsubscribePacket struct {
	PacketID uint16
	Topics   []string
}

func (p *UnsubscribePacket) Type() uint8 { return UNSUBSCRIBE }

func (p *UnsubscribePacket) WriteTo(w io.Writer) (int64, error) {
	payloadLen := 0
	topicBytes := make([][]byte, len(p.Topics))
	for i, topic := range p.Topics {
		topicBytes[i] = appendString(nil, topic)
		payloadLen += len(topicBytes[i])
	}

	header := FixedHeader{PacketType: UNSUBSCRIBE, Flags: 0x02, RemainingLength: 2 + payloadLen}
	total, err := header.WriteTo(w)
	if err != nil {
		return total, err
	}

	var packetID [2]byte
	binary.BigEndian.PutUint16(packetID[:], p.PacketID)
	n, err := w.Write(packetID[:])
	total += int64(n)
	if err != nil {
		return total, err
	}

	for _, tb := range topicBytes {
		n, err = w.Write(tb)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// DecodeUnsubscribe decodes an UNSUBSCRIBE packet from buf.
func DecodeUnsubscribe(buf []byte) (*UnsubscribePacket, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("buffer too short for UNSUBSCRIBE packet")
	}
	pkt := &UnsubscribePacket{PacketID: binary.BigEndian.Uint16(buf[0:2])}
	offset := 2

	for offset < len(buf) {
		topic, n, err := decodeString(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("decode topic filter: %w", err)
		}
		offset += n
		pkt.Topics = append(pkt.Topics, topic)
	}

	return pkt, nil
}
