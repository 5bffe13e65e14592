package signal

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/pion/webrtc/v3"
)

// Offer is the wire snapshot of one in-flight negotiation. Field names
// mirror what clients already exchange: the offerer is "src", the
// answerer "dest".
type Offer struct {
	Offerer            string                     `json:"src"`
	Offer              webrtc.SessionDescription  `json:"offer"`
	OffererCandidates  []webrtc.ICECandidateInit  `json:"offerIceCandidates"`
	Answerer           string                     `json:"dest,omitempty"`
	Answer             *webrtc.SessionDescription `json:"answer,omitempty"`
	AnswererCandidates []webrtc.ICECandidateInit  `json:"answerIceCandidates"`
}

// pendingOffer is the broker's mutable record of a negotiation. The
// candidate deques preserve submission order; the offerer side buffers
// until the answerer identity is known.
type pendingOffer struct {
	offerer       string
	offer         webrtc.SessionDescription
	offererCands  deque.Deque
	answerer      string
	answer        *webrtc.SessionDescription
	answererCands deque.Deque
}

func (p *pendingOffer) snapshot() *Offer {
	return &Offer{
		Offerer:            p.offerer,
		Offer:              p.offer,
		OffererCandidates:  candidateSlice(&p.offererCands),
		Answerer:           p.answerer,
		Answer:             p.answer,
		AnswererCandidates: candidateSlice(&p.answererCands),
	}
}

func candidateSlice(d *deque.Deque) []webrtc.ICECandidateInit {
	out := make([]webrtc.ICECandidateInit, d.Len())
	for i := 0; i < d.Len(); i++ {
		out[i] = d.At(i).(webrtc.ICECandidateInit)
	}
	return out
}

// Broker owns the single in-flight offer/answer exchange per room and
// the candidate buffers around it. It never touches the network:
// methods return what must be delivered and to whom, callers deliver.
type Broker struct {
	mu       sync.Mutex
	registry *Registry
	offers   map[string]*pendingOffer
}

// NewBroker creates a broker consulting the registry for membership.
func NewBroker(registry *Registry) *Broker {
	return &Broker{
		registry: registry,
		offers:   make(map[string]*pendingOffer),
	}
}

// SubmitOffer records a fresh negotiation for the sender's room,
// replacing any prior one. Only one negotiation per room exists at a
// time; a second offer supersedes the first rather than merging. The
// target must be the other member of the sender's room.
func (b *Broker) SubmitOffer(from string, sdp webrtc.SessionDescription, target string) (string, *Offer, error) {
	roomID := b.registry.RoomOf(from)
	if roomID == "" {
		return "", nil, ErrRoomNotFound
	}
	if b.registry.OtherMember(roomID, from) != target {
		return "", nil, ErrUnknownTarget
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	po := &pendingOffer{offerer: from, offer: sdp}
	b.offers[roomID] = po
	offersTotal.Inc()
	return roomID, po.snapshot(), nil
}

// SubmitAnswer records the answer on the room's live negotiation. It
// returns the ordered offerer candidates buffered so far (the
// synchronous ack that rides back on the answerer's own request) and
// the updated snapshot to push to the offerer. The echoed offer lets
// the broker reject answers to a superseded negotiation.
func (b *Broker) SubmitAnswer(from string, echo Offer) ([]webrtc.ICECandidateInit, *Offer, error) {
	roomID := b.registry.RoomOf(from)
	if roomID == "" {
		return nil, nil, ErrRoomNotFound
	}
	if b.registry.MemberCount(roomID) < maxRoomMembers {
		return nil, nil, ErrNoPendingOffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	po := b.offers[roomID]
	if po == nil {
		return nil, nil, ErrNoPendingOffer
	}
	if echo.Offerer != "" && echo.Offerer != po.offerer {
		return nil, nil, ErrStaleOffer
	}
	po.answerer = from
	po.answer = echo.Answer
	answersTotal.Inc()
	return candidateSlice(&po.offererCands), po.snapshot(), nil
}

// AddCandidate buffers the candidate on the sender's side of the
// negotiation and returns the connection it must also be forwarded to
// eagerly. Offerer candidates sit buffered until an answerer is known;
// answerer candidates always have a destination, the offerer initiated
// the record.
func (b *Broker) AddCandidate(from string, candidate webrtc.ICECandidateInit, isOfferer bool) (string, error) {
	roomID := b.registry.RoomOf(from)
	if roomID == "" {
		return "", ErrNoPendingOffer
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	po := b.offers[roomID]
	if po == nil {
		return "", ErrNoPendingOffer
	}
	if isOfferer {
		po.offererCands.PushBack(candidate)
		candidatesTotal.WithLabelValues("offerer").Inc()
		return po.answerer, nil
	}
	po.answererCands.PushBack(candidate)
	candidatesTotal.WithLabelValues("answerer").Inc()
	return po.offerer, nil
}

// ClearOffer drops the room's negotiation, if any. Idempotent; used by
// call end, leave and room destruction.
func (b *Broker) ClearOffer(roomID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.offers[roomID]; !ok {
		return false
	}
	delete(b.offers, roomID)
	return true
}

// HasOffer reports whether the room has a live negotiation.
func (b *Broker) HasOffer(roomID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.offers[roomID] != nil
}
