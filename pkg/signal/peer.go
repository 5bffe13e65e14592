package signal

import (
	"sync"
	"sync/atomic"

	"github.com/gammazero/workerpool"
	"github.com/lucsky/cuid"
	"github.com/pion/webrtc/v3"
)

type atomicBool int32

func (a *atomicBool) set(value bool) {
	var i int32
	if value {
		i = 1
	}
	atomic.StoreInt32((*int32)(a), i)
}

func (a *atomicBool) get() bool {
	return atomic.LoadInt32((*int32)(a)) != 0
}

// RoomUpdate is the room status push seen by one member.
type RoomUpdate struct {
	IsRoomFull  bool   `json:"isRoomFull"`
	OtherParty  string `json:"otherParty"`
	ShowMessage bool   `json:"showMessage"`
}

// ChatMessage is the chat relay payload, delivered to sender and
// target alike.
type ChatMessage struct {
	EventType string `json:"eventType"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
}

// Peer represents one signaling connection. The transport layer sets
// the On* callbacks once after the connection is live; the peer
// delivers every push through a single-worker queue so a slow consumer
// never blocks a lock and never sees its own stream reordered.
type Peer struct {
	sync.Mutex
	id          string
	coordinator *Coordinator
	queue       *workerpool.WorkerPool
	closed      atomicBool

	OnRoomUpdate   func(RoomUpdate)
	OnMessage      func(ChatMessage)
	OnOffer        func(*Offer)
	OnAnswer       func(*Offer)
	OnICECandidate func(webrtc.ICECandidateInit)
	OnCallAnswered func()
	OnCallEnded    func()
}

// NewPeer creates a peer with a fresh connection id and registers it
// with the coordinator.
func NewPeer(c *Coordinator) *Peer {
	p := &Peer{
		id:          cuid.New(),
		coordinator: c,
		queue:       workerpool.New(1),
	}
	c.addPeer(p)
	Logger.Info("peer connected", "peer", p.id)
	return p
}

// ID returns the connection id other members address this peer by.
func (p *Peer) ID() string {
	return p.id
}

// ICEServers returns the configured ice servers for client bootstrap.
func (p *Peer) ICEServers() []ICEServerConfig {
	return p.coordinator.ICEServers()
}

// Register allocates and binds a user id for this connection.
func (p *Peer) Register() string {
	return p.coordinator.registry.BindUser(p.id)
}

// CreateRoom allocates an empty room.
func (p *Peer) CreateRoom() string {
	roomID := p.coordinator.registry.CreateRoom()
	Logger.Info("room created", "peer", p.id, "room", roomID)
	return roomID
}

// Join adds this connection to the room and broadcasts the new status
// to every member. Join errors are the only user-visible failures in
// the protocol.
func (p *Peer) Join(roomID, displayName string) error {
	if err := p.coordinator.registry.JoinRoom(p.id, roomID, displayName); err != nil {
		return err
	}
	Logger.Info("peer joined room", "peer", p.id, "room", roomID)
	p.coordinator.broadcastStatus(roomID, p.id)
	return nil
}

// RefreshStatus re-broadcasts the room status on client request.
// Requests are debounced per room.
func (p *Peer) RefreshStatus(roomID string) {
	p.coordinator.refreshStatus(roomID, p.id)
}

// SendMessage relays a chat message to the target connection and
// echoes it back to the sender, stamped with the sender's identity.
func (p *Peer) SendMessage(otherParty, eventType, text string) {
	registry := p.coordinator.registry
	msg := ChatMessage{
		EventType: eventType,
		Message:   text,
		UserID:    registry.UserID(p.id),
		UserName:  registry.DisplayName(p.id),
	}
	chatMessagesTotal.Inc()
	p.deliverMessage(msg)
	if target := p.coordinator.peer(otherParty); target != nil {
		target.deliverMessage(msg)
	} else {
		Logger.Info("chat target not connected, dropping", "peer", p.id, "target", otherParty)
	}
}

// Offer starts a negotiation: the offer replaces any in-flight one for
// the room and is pushed to the target. Failures are logged drops, the
// caller's UI is expected to time out and retry.
func (p *Peer) Offer(sdp webrtc.SessionDescription, targetConnID string) error {
	_, snapshot, err := p.coordinator.broker.SubmitOffer(p.id, sdp, targetConnID)
	if err != nil {
		Logger.Info("offer dropped", "peer", p.id, "target", targetConnID, "reason", err.Error())
		return err
	}
	target := p.coordinator.peer(targetConnID)
	if target == nil {
		Logger.Info("offer target not connected, dropping", "peer", p.id, "target", targetConnID)
		return ErrUnknownTarget
	}
	Logger.Info("peer sent offer", "peer", p.id, "target", targetConnID)
	target.deliverOffer(snapshot)
	return nil
}

// Answer records the answer on the live negotiation. The returned
// candidate list is the synchronous ack: every offerer candidate
// buffered so far, in submission order. The updated offer is pushed to
// the offerer asynchronously, so the answerer learns the candidates in
// the same round trip that carries the answer away.
func (p *Peer) Answer(echo Offer) ([]webrtc.ICECandidateInit, error) {
	ack, snapshot, err := p.coordinator.broker.SubmitAnswer(p.id, echo)
	if err != nil {
		Logger.Info("answer dropped", "peer", p.id, "reason", err.Error())
		return nil, err
	}
	if offerer := p.coordinator.peer(snapshot.Offerer); offerer != nil {
		offerer.deliverAnswer(snapshot)
	}
	Logger.Info("peer answered", "peer", p.id, "offerer", snapshot.Offerer)
	return ack, nil
}

// Trickle buffers the candidate on this peer's side of the negotiation
// and forwards it eagerly when the destination is already known.
func (p *Peer) Trickle(candidate webrtc.ICECandidateInit, isOfferer bool) {
	forwardTo, err := p.coordinator.broker.AddCandidate(p.id, candidate, isOfferer)
	if err != nil {
		Logger.Info("candidate dropped", "peer", p.id, "reason", err.Error())
		return
	}
	if forwardTo == "" {
		return
	}
	if target := p.coordinator.peer(forwardTo); target != nil {
		target.deliverCandidate(candidate)
	}
}

// CallAnswered pushes the lightweight answered signal to the other
// room member, letting the UI reveal the remote surface early.
func (p *Peer) CallAnswered() {
	roomID := p.coordinator.registry.RoomOf(p.id)
	if roomID == "" {
		return
	}
	other := p.coordinator.registry.OtherMember(roomID, p.id)
	if target := p.coordinator.peer(other); target != nil {
		target.deliverCallAnswered()
	}
}

// CallEnded notifies every room member and clears the negotiation.
// Idempotent beyond redundant notifications.
func (p *Peer) CallEnded() {
	roomID := p.coordinator.registry.RoomOf(p.id)
	if roomID == "" {
		return
	}
	for _, member := range p.coordinator.registry.Members(roomID) {
		if target := p.coordinator.peer(member); target != nil {
			target.deliverCallEnded()
		}
	}
	p.coordinator.broker.ClearOffer(roomID)
}

// Close is the single cleanup path for explicit hang-ups and abrupt
// disconnects. The remaining member gets callEnded when a negotiation
// was live, then a status update; the room dies immediately when it
// became empty.
func (p *Peer) Close() {
	p.Lock()
	if p.closed.get() {
		p.Unlock()
		return
	}
	p.closed.set(true)
	p.Unlock()

	roomID, left := p.coordinator.registry.Leave(p.id)
	if left {
		hadOffer := p.coordinator.broker.ClearOffer(roomID)
		for _, st := range p.coordinator.registry.Status(roomID, p.id) {
			target := p.coordinator.peer(st.ConnID)
			if target == nil {
				continue
			}
			if hadOffer {
				target.deliverCallEnded()
			}
			target.deliverRoomUpdate(RoomUpdate{
				IsRoomFull:  st.IsFull,
				OtherParty:  st.OtherParty,
				ShowMessage: st.Notify,
			})
		}
	}
	p.coordinator.registry.Unbind(p.id)
	p.coordinator.removePeer(p.id)
	p.queue.Stop()
	Logger.Info("peer disconnected", "peer", p.id)
}

// deliver hands the push to the peer's queue. Submitting to a stopped
// pool panics, so the closed check and the submit share the lock Close
// takes when stopping.
func (p *Peer) deliver(f func()) {
	p.Lock()
	defer p.Unlock()
	if p.closed.get() || f == nil {
		return
	}
	p.queue.Submit(f)
}

func (p *Peer) deliverRoomUpdate(update RoomUpdate) {
	if handler := p.OnRoomUpdate; handler != nil {
		p.deliver(func() { handler(update) })
	}
}

func (p *Peer) deliverMessage(msg ChatMessage) {
	if handler := p.OnMessage; handler != nil {
		p.deliver(func() { handler(msg) })
	}
}

func (p *Peer) deliverOffer(offer *Offer) {
	if handler := p.OnOffer; handler != nil {
		p.deliver(func() { handler(offer) })
	}
}

func (p *Peer) deliverAnswer(offer *Offer) {
	if handler := p.OnAnswer; handler != nil {
		p.deliver(func() { handler(offer) })
	}
}

func (p *Peer) deliverCandidate(candidate webrtc.ICECandidateInit) {
	if handler := p.OnICECandidate; handler != nil {
		p.deliver(func() { handler(candidate) })
	}
}

func (p *Peer) deliverCallAnswered() {
	if handler := p.OnCallAnswered; handler != nil {
		p.deliver(func() { handler() })
	}
}

func (p *Peer) deliverCallEnded() {
	if handler := p.OnCallEnded; handler != nil {
		p.deliver(func() { handler() })
	}
}
