package packets

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SubscribePacket represents an MQTT SUBSCRIBE control packet.
type SubscribePacket struct {
	PacketID uint16
	Topics   []string
	QoS      []uint8 // QoS level requested for each topic, same length as Topics
}

func (p *SubscribePacket) Type() uint8 { return SUBSCRIBE }

func (p *SubscribePacket) WriteTo(w io.Writer) (int64, error) {
	payloadLen := 0
	topicBytes := make([][]byte, len(p.Topics))
	for i, topic := range p.Topics {
		topicBytes[i] = appendString(nil, topic)
		payloadLen += len(topicBytes[i]) + 1 // topic + QoS byte
	}

	header := FixedHeader{PacketType: SUBSCRIBE, Flags: 0x02, RemainingLength: 2 + payloadLen}
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

	for i, tb := range topicBytes {
		n, err = w.Write(tb)
		total += int64(n)
		if err != nil {
			return total, err
		}
		qos := uint8(QoS0)
		if i < len(p.QoS) {
			qos = p.QoS[i]
		}
		if err := binary.Write(w, binary.BigEndian, qos&0x03); err != nil {
			return total, err
		}
		total++
	}

	return total, nil
}

// DecodeSubscribe decodes a SUBSCRIBE packet from buf.
func DecodeSubscribe(buf []byte) (*SubscribePacket, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("buffer too short for SUBSCRIBE packet")
	}
	pkt := &SubscribePacket{PacketID: binary.BigEndian.Uint16(buf[0:2])}
	offset := 2

	for offset < len(buf) {
		topic, n, err := decodeString(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("decode topic filter: %w", err)
		}
		offset += n

		if offset >= len(buf) {
			return nil, fmt.Errorf("buffer too short for QoS byte")
		}
		qos := buf[offset] & 0x03
		offset++

		pkt.Topics = append(pkt.Topics, topic)
		pkt.QoS = append(pkt.QoS, qos)
	}

	return pkt, nil
}
