package mqtt

import "testing"

func TestNextPacketIDSkipsInUseIds(t *testing.T) {
	s := NewSessionState("c1", 60, 0)
	s.putOutgoing(&ApplicationMessage{PacketID: 1})
	s.putIncoming(&ApplicationMessage{PacketID: 2})

	id, err := s.nextPacketID()
	if err != nil {
		t.Fatalf("nextPacketID: %v", err)
	}
	if id == 0 || id == 1 || id == 2 {
		t.Fatalf("expected an id other than 0, 1, 2, got %d", id)
	}
}

func TestNextPacketIDWrapsAroundSkippingInUse(t *testing.T) {
	s := NewSessionState("c1", 60, 0)
	s.nextID = 0xFFFE // next allocation will be 0xFFFF, then wrap to 1

	s.putOutgoing(&ApplicationMessage{PacketID: 0xFFFF})
	s.putOutgoing(&ApplicationMessage{PacketID: 1})

	id, err := s.nextPacketID()
	if err != nil {
		t.Fatalf("nextPacketID: %v", err)
	}
	if id == 0xFFFF || id == 1 || id == 0 {
		t.Fatalf("expected allocator to skip in-use ids on wrap, got %d", id)
	}
}

func TestNextPacketIDExhaustion(t *testing.T) {
	s := NewSessionState("c1", 60, 0)
	for i := 1; i < 1<<16; i++ {
		s.putOutgoing(&ApplicationMessage{PacketID: uint16(i)})
	}

	if _, err := s.nextPacketID(); err != errPacketIDExhausted {
		t.Fatalf("expected errPacketIDExhausted, got %v", err)
	}
}

func TestOutgoingSnapshotAscendingOrder(t *testing.T) {
	s := NewSessionState("c1", 60, 0)
	for _, id := range []uint16{50, 3, 17} {
		s.putOutgoing(&ApplicationMessage{PacketID: id})
	}

	snapshot := s.outgoingSnapshot()
	var ids []uint16
	for _, m := range snapshot {
		ids = append(ids, m.PacketID)
	}
	want := []uint16{3, 17, 50}
	for i, id := range ids {
		if id != want[i] {
			t.Fatalf("snapshot order = %v, want %v", ids, want)
		}
	}
}

func TestSessionResetClearsInflightAndWaiters(t *testing.T) {
	s := NewSessionState("c1", 60, 0)

	s.putOutgoing(&ApplicationMessage{PacketID: 1, QoS: AtLeastOnce})
	pubackSlot, err := s.waiters.register(ackPuback, 1)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	s.putIncoming(&ApplicationMessage{PacketID: 2, QoS: ExactlyOnce})
	pubrelSlot, err := s.waiters.register(ackPubrel, 2)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	s.Reset()

	if _, ok := s.getOutgoing(1); ok {
		t.Fatal("expected inflightOut cleared after Reset")
	}
	if _, ok := s.getIncoming(2); ok {
		t.Fatal("expected inflightIn cleared after Reset")
	}
	if _, ok := <-pubackSlot; ok {
		t.Fatal("expected puback waiter slot closed by Reset")
	}
	if _, ok := <-pubrelSlot; ok {
		t.Fatal("expected pubrel waiter slot closed by Reset")
	}
	if _, err := s.waiters.register(ackPuback, 1); err != nil {
		t.Fatalf("expected waiter freed after Reset, register failed: %v", err)
	}
	if _, err := s.waiters.register(ackPubrel, 2); err != nil {
		t.Fatalf("expected waiter freed after Reset, register failed: %v", err)
	}
}
