// Package server implements the JSON-RPC signaling surface over one
// websocket connection per peer.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/pion/webrtc/v3"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/duetrtc/duet/pkg/signal"
)

// JoinRoom message sent when entering a room
type JoinRoom struct {
	UserName string `json:"userName"`
	RoomID   string `json:"roomId"`
}

// JoinReply is the only user-visible error surface in the protocol
type JoinReply struct {
	Status  string `json:"status"`
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

// UserReply carries a freshly allocated user id
type UserReply struct {
	UserID string `json:"userId"`
}

// RoomReply carries a freshly allocated room id
type RoomReply struct {
	RoomID string `json:"roomId"`
}

// RoomRequest asks for a status re-broadcast
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

// Message is a chat message addressed to the other party
type Message struct {
	EventType  string `json:"eventType"`
	Message    string `json:"message"`
	OtherParty string `json:"otherParty"`
}

// NewOffer message sent when starting a negotiation
type NewOffer struct {
	Offer    webrtc.SessionDescription `json:"offer"`
	TargetID string                    `json:"targetId"`
}

// Candidate message sent when trickling a local ice candidate
type Candidate struct {
	Candidate webrtc.ICECandidateInit `json:"iceCandidate"`
	DidIOffer bool                    `json:"didIOffer"`
}

// JSONSignal dispatches RPC calls onto a signal peer and wires the
// peer's pushes back as JSON-RPC notifications.
type JSONSignal struct {
	*signal.Peer
	logger logr.Logger
	wired  sync.Once
}

// NewJSONSignal creates the dispatcher for one connection.
func NewJSONSignal(p *signal.Peer, l logr.Logger) *JSONSignal {
	return &JSONSignal{Peer: p, logger: l}
}

// wire binds the peer's push callbacks to the connection. Runs once,
// on the first request, which is the earliest the conn is known.
func (p *JSONSignal) wire(ctx context.Context, conn *jsonrpc2.Conn) {
	p.wired.Do(func() {
		p.OnRoomUpdate = func(update signal.RoomUpdate) {
			if err := conn.Notify(ctx, "roomUpdate", update); err != nil {
				p.logger.Error(err, "error sending room update")
			}
		}
		p.OnMessage = func(msg signal.ChatMessage) {
			if err := conn.Notify(ctx, "roomMessage", msg); err != nil {
				p.logger.Error(err, "error sending chat message")
			}
		}
		p.OnOffer = func(offer *signal.Offer) {
			if err := conn.Notify(ctx, "newOfferAwaiting", offer); err != nil {
				p.logger.Error(err, "error sending offer")
			}
		}
		p.OnAnswer = func(offer *signal.Offer) {
			if err := conn.Notify(ctx, "answerResponse", offer); err != nil {
				p.logger.Error(err, "error sending answer")
			}
		}
		p.OnICECandidate = func(candidate webrtc.ICECandidateInit) {
			if err := conn.Notify(ctx, "iceCandidate", candidate); err != nil {
				p.logger.Error(err, "error sending ice candidate")
			}
		}
		p.OnCallAnswered = func() {
			if err := conn.Notify(ctx, "callAnswered", nil); err != nil {
				p.logger.Error(err, "error sending call answered")
			}
		}
		p.OnCallEnded = func() {
			if err := conn.Notify(ctx, "callEnded", nil); err != nil {
				p.logger.Error(err, "error sending call ended")
			}
		}
	})
}

// Handle incoming RPC call events like joinRoom, newOffer, newAnswer
// and sendIceCandidate
func (p *JSONSignal) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	p.wire(ctx, conn)

	replyError := func(err error) {
		_ = conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
			Code:    500,
			Message: fmt.Sprintf("%s", err),
		})
	}
	reply := func(result interface{}) {
		if req.Notif {
			return
		}
		_ = conn.Reply(ctx, req.ID, result)
	}

	switch req.Method {
	case "getUserId":
		reply(UserReply{UserID: p.Register()})

	case "createRoom":
		reply(RoomReply{RoomID: p.CreateRoom()})

	case "joinRoom":
		var join JoinRoom
		if err := json.Unmarshal(*req.Params, &join); err != nil {
			p.logger.Error(err, "joinRoom: error parsing params")
			replyError(err)
			break
		}
		if err := p.Join(join.RoomID, join.UserName); err != nil {
			reply(JoinReply{Status: "error", RoomID: join.RoomID, Message: err.Error()})
			break
		}
		reply(JoinReply{Status: "success", RoomID: join.RoomID, Message: "room joined"})

	case "requestRoomUpdate":
		var request RoomRequest
		if err := json.Unmarshal(*req.Params, &request); err != nil {
			p.logger.Error(err, "requestRoomUpdate: error parsing params")
			replyError(err)
			break
		}
		p.RefreshStatus(request.RoomID)
		reply(nil)

	case "sendMessage":
		var msg Message
		if err := json.Unmarshal(*req.Params, &msg); err != nil {
			p.logger.Error(err, "sendMessage: error parsing params")
			replyError(err)
			break
		}
		p.SendMessage(msg.OtherParty, msg.EventType, msg.Message)
		reply(nil)

	case "newOffer":
		var offer NewOffer
		if err := json.Unmarshal(*req.Params, &offer); err != nil {
			p.logger.Error(err, "newOffer: error parsing offer")
			replyError(err)
			break
		}
		// best-effort: failures are logged by the peer, not surfaced
		_ = p.Offer(offer.Offer, offer.TargetID)
		reply(nil)

	case "newAnswer":
		var echo signal.Offer
		if err := json.Unmarshal(*req.Params, &echo); err != nil {
			p.logger.Error(err, "newAnswer: error parsing answer")
			replyError(err)
			break
		}
		// the reply is the ack; a dropped answer resolves it with an
		// empty candidate list rather than leaving it outstanding
		candidates, err := p.Answer(echo)
		if err != nil {
			reply([]webrtc.ICECandidateInit{})
			break
		}
		reply(candidates)

	case "sendIceCandidate":
		var candidate Candidate
		if err := json.Unmarshal(*req.Params, &candidate); err != nil {
			p.logger.Error(err, "sendIceCandidate: error parsing candidate")
			replyError(err)
			break
		}
		p.Trickle(candidate.Candidate, candidate.DidIOffer)
		reply(nil)

	case "callAnswered":
		p.CallAnswered()
		reply(nil)

	case "callEnded":
		p.CallEnded()
		reply(nil)

	case "iceServers":
		reply(p.ICEServers())

	default:
		_ = conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method %q not found", req.Method),
		})
	}
}
