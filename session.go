package mqtt

import "sync"

// SessionState holds per-endpoint state that outlives a single connection
// when the MQTT CONNECT clean-session flag is false: the client identifier,
// keep-alive interval, in-flight QoS-1/2 flows, and the queue of messages
// waiting for the application to consume via DeliverNextMessage.
//
// It is created by the surrounding endpoint before Start and is otherwise
// owned exclusively by the Handler while a connection is live.
type SessionState struct {
	ClientID  string
	KeepAlive int // seconds; 0 disables the keep-alive timer

	mu          sync.Mutex
	inflightOut map[uint16]*ApplicationMessage // outgoing QoS 1/2, PUBLISH-sent through terminal ack
	inflightIn  map[uint16]*ApplicationMessage // incoming QoS 2, PUBLISH-received through PUBCOMP-sent
	nextID      uint16

	delivered chan Message // queue of fully-settled incoming messages ready for the application

	// waiters outlives any single Handler, same as inflightOut/inflightIn:
	// a Publish call suspended on a waiter when Stop is called is still
	// suspended on the same slot when a later Handler resumes this
	// session, since both share this registry. Stop cancels only the
	// PUBREL waiters of open inbound QoS-2 flows (the next Start re-arms
	// them); Reset cancels every waiter.
	waiters *waiterRegistry
}

// NewSessionState creates a fresh SessionState. delivered is bounded to
// queueSize entries; a bounded queue provides application back-pressure,
// per the spec's delivered-message queue. queueSize <= 0 means unbounded
// for practical purposes (a very large buffer).
func NewSessionState(clientID string, keepAlive int, queueSize int) *SessionState {
	if queueSize <= 0 {
		queueSize = 1 << 16
	}
	return &SessionState{
		ClientID:    clientID,
		KeepAlive:   keepAlive,
		inflightOut: make(map[uint16]*ApplicationMessage),
		inflightIn:  make(map[uint16]*ApplicationMessage),
		delivered:   make(chan Message, queueSize),
		waiters:     newWaiterRegistry(),
	}
}

// nextPacketID allocates the next free packet id, skipping 0 (reserved for
// "no identifier") and any id currently in use in either inflightOut or
// inflightIn. It returns an error if the id space is exhausted.
func (s *SessionState) nextPacketID() (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextPacketIDLocked()
}

func (s *SessionState) nextPacketIDLocked() (uint16, error) {
	for i := 0; i < 1<<16; i++ {
		s.nextID++
		if s.nextID == 0 {
			s.nextID = 1
		}
		if _, outUsed := s.inflightOut[s.nextID]; outUsed {
			continue
		}
		if _, inUsed := s.inflightIn[s.nextID]; inUsed {
			continue
		}
		return s.nextID, nil
	}
	return 0, errPacketIDExhausted
}

func (s *SessionState) putOutgoing(msg *ApplicationMessage) {
	s.mu.Lock()
	s.inflightOut[msg.PacketID] = msg
	s.mu.Unlock()
}

func (s *SessionState) getOutgoing(id uint16) (*ApplicationMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.inflightOut[id]
	return msg, ok
}

func (s *SessionState) deleteOutgoing(id uint16) {
	s.mu.Lock()
	delete(s.inflightOut, id)
	s.mu.Unlock()
}

func (s *SessionState) putIncoming(msg *ApplicationMessage) {
	s.mu.Lock()
	s.inflightIn[msg.PacketID] = msg
	s.mu.Unlock()
}

func (s *SessionState) getIncoming(id uint16) (*ApplicationMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.inflightIn[id]
	return msg, ok
}

func (s *SessionState) deleteIncoming(id uint16) {
	s.mu.Lock()
	delete(s.inflightIn, id)
	s.mu.Unlock()
}

// outgoingSnapshot returns the current inflightOut entries in ascending
// packet-id order, for retryDeliveries to walk deterministically.
func (s *SessionState) outgoingSnapshot() []*ApplicationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint16, 0, len(s.inflightOut))
	for id := range s.inflightOut {
		ids = append(ids, id)
	}
	sortUint16s(ids)

	out := make([]*ApplicationMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.inflightOut[id])
	}
	return out
}

// incomingSnapshot returns the current inflightIn entries in ascending
// packet-id order, for the handler to re-arm PUBREL waiters on resume.
func (s *SessionState) incomingSnapshot() []*ApplicationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint16, 0, len(s.inflightIn))
	for id := range s.inflightIn {
		ids = append(ids, id)
	}
	sortUint16s(ids)

	out := make([]*ApplicationMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.inflightIn[id])
	}
	return out
}

func sortUint16s(ids []uint16) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// deliver pushes msg onto the delivered queue, blocking while it is full
// (application back-pressure). It takes no context and waits until the
// application makes room.
func (s *SessionState) deliver(msg Message) {
	s.delivered <- msg
}

// Reset clears in-flight state and cancels every registered waiter for
// this session, for use by callers that implement a clean-session
// reconnect (case (a) of the Stop/resume design choice: Stop alone leaves
// inflight state and waiters intact for resume; Reset is what discards
// them). It deliberately does not touch the delivered-message queue:
// messages already queued for the application are still owed to it.
func (s *SessionState) Reset() {
	s.mu.Lock()
	s.inflightOut = make(map[uint16]*ApplicationMessage)
	s.inflightIn = make(map[uint16]*ApplicationMessage)
	s.mu.Unlock()

	s.waiters.cancelAll(ackPuback)
	s.waiters.cancelAll(ackPubrec)
	s.waiters.cancelAll(ackPubrel)
	s.waiters.cancelAll(ackPubcomp)
}
