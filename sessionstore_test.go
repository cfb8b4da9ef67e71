package mqtt

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nimblemq/mqtt/internal/packets"
)

// A QoS-1 publish seeded into a SessionStore before Start is retransmitted
// (DUP=true) exactly as a publish left over from a live session would be,
// and removed from the store once its PUBACK arrives.
func TestSessionStoreResumesQoS1OnStart(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SavePendingPublish(5, &PersistedPublish{Topic: "t/restore", Payload: []byte("x"), QoS: AtLeastOnce}); err != nil {
		t.Fatalf("SavePendingPublish: %v", err)
	}

	local, peer := net.Pipe()
	t.Cleanup(func() { local.Close(); peer.Close() })

	session := NewSessionState("restored-client", 0, 0)
	h := NewHandler(session, local, local, WithLogger(discardLogger()), WithAckTimeout(2*time.Second), WithSessionStore(store))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Start sends the retransmission before it returns, and net.Pipe has no
	// buffer, so Start runs alongside the read below.
	startErr := make(chan error, 1)
	go func() { startErr <- h.Start(ctx) }()

	pub := readPacket(t, peer).(*packets.PublishPacket)
	if pub.PacketID != 5 || !pub.Dup || pub.Topic != "t/restore" {
		t.Fatalf("expected DUP retransmit of id 5 from store, got %+v", pub)
	}
	if err := <-startErr; err != nil {
		t.Fatalf("Start: %v", err)
	}

	ack := &packets.PubackPacket{PacketID: 5}
	if _, err := ack.WriteTo(peer); err != nil {
		t.Fatalf("write puback: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.pending[5]; !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected pending publish removed from store after ack")
}

// Publish persists its QoS-1 entry to the configured store immediately, and
// removes it once acknowledged, independent of any restart.
func TestSessionStorePersistsAndForgetsQoS1Publish(t *testing.T) {
	store := NewMemoryStore()
	local, peer := net.Pipe()
	t.Cleanup(func() { local.Close(); peer.Close() })

	session := NewSessionState("c1", 0, 0)
	h := NewHandler(session, local, local, WithLogger(discardLogger()), WithAckTimeout(2*time.Second), WithSessionStore(store))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resultCh := make(chan error, 1)
	go func() {
		_, err := h.Publish(ctx, "t/1", []byte("hi"), AtLeastOnce, false)
		resultCh <- err
	}()

	pub := readPacket(t, peer).(*packets.PublishPacket)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.pending[pub.PacketID]; ok {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := store.pending[pub.PacketID]; !ok {
		t.Fatal("expected publish persisted to store before ack")
	}

	ack := &packets.PubackPacket{PacketID: pub.PacketID}
	if _, err := ack.WriteTo(peer); err != nil {
		t.Fatalf("write puback: %v", err)
	}
	if err := <-resultCh; err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, ok := store.pending[pub.PacketID]; ok {
		t.Fatal("expected publish removed from store after ack")
	}
}
