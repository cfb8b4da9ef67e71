package packets

import (
	"fmt"
	"io"
)

// FixedHeader is the 2-5 byte header present on every MQTT control packet:
// [PacketType+Flags (1 byte)][Remaining Length (1-4 bytes)].
type FixedHeader struct {
	PacketType      uint8
	Flags           uint8
	RemainingLength int
}

// WriteTo writes the fixed header to w.
func (h *FixedHeader) WriteTo(w io.Writer) (int64, error) {
	firstByte := (h.PacketType << 4) | (h.Flags & 0x0F)

	if bw, ok := w.(io.ByteWriter); ok {
		var total int64
		if err := bw.WriteByte(firstByte); err != nil {
			return total, err
		}
		total++

		x := h.RemainingLength
		for {
			b := byte(x % 128)
			x /= 128
			if x > 0 {
				b |= 128
			}
			if err := bw.WriteByte(b); err != nil {
				return total, err
			}
			total++
			if x == 0 {
				break
			}
		}
		return total, nil
	}

	var buf [5]byte
	buf[0] = firstByte
	n := 1
	x := h.RemainingLength
	for {
		b := byte(x % 128)
		x /= 128
		if x > 0 {
			b |= 128
		}
		buf[n] = b
		n++
		if x == 0 {
			break
		}
	}
	nw, err := w.Write(buf[:n])
	return int64(nw), err
}

// DecodeFixedHeader reads and decodes a fixed header from r.
func DecodeFixedHeader(r io.Reader) (FixedHeader, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return FixedHeader{}, err
	}

	packetType := buf[0] >> 4
	flags := buf[0] & 0x0F

	remainingLength, err := decodeVarInt(r)
	if err != nil {
		return FixedHeader{}, fmt.Errorf("decode remaining length: %w", err)
	}

	return FixedHeader{PacketType: packetType, Flags: flags, RemainingLength: remainingLength}, nil
}
