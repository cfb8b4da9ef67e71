package packets

import "io"

// Packet is the interface every MQTT control packet implements.
type Packet interface {
	// Type returns the MQTT control packet type.
	Type() uint8

	// WriteTo writes the packet to w, fixed header included.
	WriteTo(w io.Writer) (int64, error)
}
