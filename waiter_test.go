package mqtt

import (
	"testing"

	"github.com/nimblemq/mqtt/internal/packets"
)

func TestWaiterRegistryFulfillDeliversPacket(t *testing.T) {
	r := newWaiterRegistry()
	slot, err := r.register(ackPuback, 1)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	want := &packets.PubackPacket{PacketID: 1}
	if err := r.fulfill(ackPuback, 1, want); err != nil {
		t.Fatalf("fulfill: %v", err)
	}

	select {
	case got := <-slot:
		if got != packets.Packet(want) {
			t.Fatalf("got %v, want %v", got, want)
		}
	default:
		t.Fatal("slot was not fulfilled")
	}
}

func TestWaiterRegistryDuplicateRegistrationFails(t *testing.T) {
	r := newWaiterRegistry()
	if _, err := r.register(ackPubrec, 5); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := r.register(ackPubrec, 5); err != ErrFlowDuplicate {
		t.Fatalf("expected ErrFlowDuplicate, got %v", err)
	}
}

func TestWaiterRegistryUnknownAckOnMissingWaiter(t *testing.T) {
	r := newWaiterRegistry()
	err := r.fulfill(ackPubcomp, 99, &packets.PubcompPacket{PacketID: 99})
	if err != ErrUnknownAck {
		t.Fatalf("expected ErrUnknownAck, got %v", err)
	}
}

func TestWaiterRegistryDuplicateAckIsUnknown(t *testing.T) {
	// A second acknowledgement for an id whose waiter already fired (and
	// was removed) looks exactly like an unknown pending message, which
	// matches the spec's scenario 5 (duplicate PUBACK logged as unknown).
	r := newWaiterRegistry()
	if _, err := r.register(ackPuback, 1); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.fulfill(ackPuback, 1, &packets.PubackPacket{PacketID: 1}); err != nil {
		t.Fatalf("first fulfill: %v", err)
	}
	if err := r.fulfill(ackPuback, 1, &packets.PubackPacket{PacketID: 1}); err != ErrUnknownAck {
		t.Fatalf("expected ErrUnknownAck on duplicate, got %v", err)
	}
}

func TestWaiterRegistryCancelAllowsReregistration(t *testing.T) {
	r := newWaiterRegistry()
	if _, err := r.register(ackPubrel, 3); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.cancel(ackPubrel, 3)
	if _, err := r.register(ackPubrel, 3); err != nil {
		t.Fatalf("re-register after cancel: %v", err)
	}
}

func TestWaiterRegistryIndependentKinds(t *testing.T) {
	r := newWaiterRegistry()
	if _, err := r.register(ackPuback, 1); err != nil {
		t.Fatalf("register puback: %v", err)
	}
	// The same packet id under a different ack kind must not collide.
	if _, err := r.register(ackPubrec, 1); err != nil {
		t.Fatalf("register pubrec: %v", err)
	}
}
