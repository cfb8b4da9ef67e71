package mqtt

import "github.com/nimblemq/mqtt/internal/packets"

// Direction tags an ApplicationMessage with which side of a QoS flow
// applies to it.
type Direction uint8

const (
	// Outgoing messages are ones this handler is publishing.
	Outgoing Direction = iota
	// Incoming messages are ones a peer published to this handler.
	Incoming
)

func (d Direction) String() string {
	if d == Outgoing {
		return "outgoing"
	}
	return "incoming"
}

// Message is the application-facing view of a publication: what a caller
// hands to Publish, and what DeliverNextMessage hands back.
type Message struct {
	Topic   string
	Payload []byte
	QoS     QoS
	Retain  bool
}

// ApplicationMessage is the handler's internal record of one publication
// moving through a QoS flow. It carries the packets already emitted for
// its flow so that retransmission can reuse them and completion can be
// detected without re-deriving state from the wire.
type ApplicationMessage struct {
	PacketID  uint16 // 0 for QoS 0, meaningless outside a flow
	Topic     string
	Payload   []byte
	QoS       QoS
	Retain    bool
	Dup       bool
	Direction Direction

	// Packets already emitted or recorded for this flow. Only the ones
	// relevant to this message's QoS and direction are ever set.
	PublishPacket *packets.PublishPacket
	PubrecPacket  *packets.PubrecPacket
	PubrelPacket  *packets.PubrelPacket
	PubcompPacket *packets.PubcompPacket
	PubackPacket  *packets.PubackPacket
}

// acknowledged reports whether this outgoing message's flow has reached
// its terminal acknowledgement and is safe to drop from inflight_out.
func (m *ApplicationMessage) acknowledged() bool {
	switch m.QoS {
	case AtLeastOnce:
		return m.PubackPacket != nil
	case ExactlyOnce:
		return m.PubcompPacket != nil
	default:
		return true
	}
}

// toMessage projects an ApplicationMessage onto the public Message type
// handed back from DeliverNextMessage.
func (m *ApplicationMessage) toMessage() Message {
	return Message{Topic: m.Topic, Payload: m.Payload, QoS: m.QoS, Retain: m.Retain}
}
