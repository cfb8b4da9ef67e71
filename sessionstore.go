package mqtt

import "github.com/nimblemq/mqtt/internal/packets"

// PersistedPublish is the on-disk (or in-memory) shape of one outgoing
// QoS-1/2 publish awaiting acknowledgement, as handed to a SessionStore.
type PersistedPublish struct {
	Topic          string
	Payload        []byte
	QoS            QoS
	Retain         bool
	Dup            bool
	PubrecReceived bool // true once PUBREC has been recorded for a QoS-2 flow
}

// SessionStore persists inflight_out across process restarts for sessions
// started with clean-session=false. Handler.Start loads it on every start
// (reconnects within one process included) and puts each loaded entry into
// inflightOut over any entry with the same id; Save and Delete are called
// as each outgoing flow advances. Save/Delete may be asynchronous; Load
// must be synchronous, since retryDeliveries needs the result immediately.
type SessionStore interface {
	SavePendingPublish(packetID uint16, pub *PersistedPublish) error
	DeletePendingPublish(packetID uint16) error
	LoadPendingPublishes() (map[uint16]*PersistedPublish, error)
	ClearPendingPublishes() error
}

// toPersisted projects an outgoing ApplicationMessage onto the shape a
// SessionStore persists.
func toPersisted(app *ApplicationMessage) *PersistedPublish {
	return &PersistedPublish{
		Topic:          app.Topic,
		Payload:        app.Payload,
		QoS:            app.QoS,
		Retain:         app.Retain,
		Dup:            app.Dup,
		PubrecReceived: app.PubrecPacket != nil,
	}
}

// fromPersisted rebuilds the in-memory ApplicationMessage (and the
// PUBLISH/PUBREC packets retryDeliveries expects) for one pending publish
// loaded from a SessionStore at Start. The rebuilt PUBLISH always carries
// DUP=true: by definition this message was sent on a prior connection and
// never reached its terminal acknowledgement.
func fromPersisted(id uint16, p *PersistedPublish) *ApplicationMessage {
	wireQoS := uint8(packets.QoS0)
	switch p.QoS {
	case AtLeastOnce:
		wireQoS = packets.QoS1
	case ExactlyOnce:
		wireQoS = packets.QoS2
	}

	app := &ApplicationMessage{
		PacketID:  id,
		Topic:     p.Topic,
		Payload:   p.Payload,
		QoS:       p.QoS,
		Retain:    p.Retain,
		Dup:       true,
		Direction: Outgoing,
		PublishPacket: &packets.PublishPacket{
			Topic: p.Topic, Payload: p.Payload, QoS: wireQoS, Retain: p.Retain, PacketID: id, Dup: true,
		},
	}
	if p.PubrecReceived {
		app.PubrecPacket = &packets.PubrecPacket{PacketID: id}
	}
	return app
}
