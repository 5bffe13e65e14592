package signal

import (
	"testing"

	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBroker(t *testing.T) (*Broker, *Registry, string) {
	registry := newTestRegistry()
	roomID := registry.CreateRoom()
	require.NoError(t, registry.JoinRoom("conn-a", roomID, "Alice"))
	require.NoError(t, registry.JoinRoom("conn-b", roomID, "Bob"))
	return NewBroker(registry), registry, roomID
}

func offerSDP(s string) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: s}
}

func answerSDP(s string) *webrtc.SessionDescription {
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: s}
}

func ice(c string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: c}
}

func TestSubmitOfferValidatesTarget(t *testing.T) {
	b, _, _ := newTestBroker(t)

	_, _, err := b.SubmitOffer("conn-a", offerSDP("sdp1"), "conn-bogus")
	assert.ErrorIs(t, err, ErrUnknownTarget)

	_, _, err = b.SubmitOffer("conn-outsider", offerSDP("sdp1"), "conn-b")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	roomID, snapshot, err := b.SubmitOffer("conn-a", offerSDP("sdp1"), "conn-b")
	assert.NoError(t, err)
	assert.True(t, b.HasOffer(roomID))
	assert.Equal(t, "conn-a", snapshot.Offerer)
	assert.Equal(t, "sdp1", snapshot.Offer.SDP)
	assert.Empty(t, snapshot.Answerer)
	assert.Nil(t, snapshot.Answer)
}

func TestAnswerAckDrainsBufferedCandidatesInOrder(t *testing.T) {
	b, _, _ := newTestBroker(t)

	_, _, err := b.SubmitOffer("conn-a", offerSDP("sdp1"), "conn-b")
	require.NoError(t, err)

	// answerer candidates always forward to the offerer
	forwardTo, err := b.AddCandidate("conn-b", ice("ice-b1"), false)
	assert.NoError(t, err)
	assert.Equal(t, "conn-a", forwardTo)

	// offerer candidates buffer until the answerer is known
	forwardTo, err = b.AddCandidate("conn-a", ice("ice-a1"), true)
	assert.NoError(t, err)
	assert.Empty(t, forwardTo)
	forwardTo, err = b.AddCandidate("conn-a", ice("ice-a2"), true)
	assert.NoError(t, err)
	assert.Empty(t, forwardTo)

	ack, snapshot, err := b.SubmitAnswer("conn-b", Offer{Offerer: "conn-a", Answer: answerSDP("sdp-answer-1")})
	require.NoError(t, err)
	assert.Equal(t, []webrtc.ICECandidateInit{ice("ice-a1"), ice("ice-a2")}, ack)
	assert.Equal(t, "conn-b", snapshot.Answerer)
	require.NotNil(t, snapshot.Answer)
	assert.Equal(t, "sdp-answer-1", snapshot.Answer.SDP)

	// post-answer offerer candidates forward eagerly
	forwardTo, err = b.AddCandidate("conn-a", ice("ice-a3"), true)
	assert.NoError(t, err)
	assert.Equal(t, "conn-b", forwardTo)
}

func TestNewOfferReplacesPendingOffer(t *testing.T) {
	b, _, _ := newTestBroker(t)

	_, _, err := b.SubmitOffer("conn-a", offerSDP("sdp1"), "conn-b")
	require.NoError(t, err)
	_, err = b.AddCandidate("conn-a", ice("ice-old"), true)
	require.NoError(t, err)

	// a second offer replaces, never merges
	_, snapshot, err := b.SubmitOffer("conn-a", offerSDP("sdp2"), "conn-b")
	require.NoError(t, err)
	assert.Equal(t, "sdp2", snapshot.Offer.SDP)
	assert.Empty(t, snapshot.OffererCandidates)

	ack, _, err := b.SubmitAnswer("conn-b", Offer{Offerer: "conn-a", Answer: answerSDP("sdp-answer-2")})
	require.NoError(t, err)
	assert.Empty(t, ack)
}

func TestStaleAnswerRejected(t *testing.T) {
	b, _, roomID := newTestBroker(t)

	_, _, err := b.SubmitOffer("conn-a", offerSDP("sdp1"), "conn-b")
	require.NoError(t, err)

	_, _, err = b.SubmitAnswer("conn-b", Offer{Offerer: "conn-stale", Answer: answerSDP("sdp-answer-1")})
	assert.ErrorIs(t, err, ErrStaleOffer)
	// the live negotiation is untouched
	assert.True(t, b.HasOffer(roomID))
	ack, _, err := b.SubmitAnswer("conn-b", Offer{Offerer: "conn-a", Answer: answerSDP("sdp-answer-1")})
	assert.NoError(t, err)
	assert.Empty(t, ack)
}

func TestAnswerWithoutOfferNoOps(t *testing.T) {
	b, _, _ := newTestBroker(t)

	_, _, err := b.SubmitAnswer("conn-b", Offer{Answer: answerSDP("sdp-answer-1")})
	assert.ErrorIs(t, err, ErrNoPendingOffer)
}

func TestAnswerRequiresFullRoom(t *testing.T) {
	registry := newTestRegistry()
	roomID := registry.CreateRoom()
	require.NoError(t, registry.JoinRoom("conn-a", roomID, "Alice"))
	b := NewBroker(registry)

	_, _, err := b.SubmitAnswer("conn-a", Offer{Answer: answerSDP("sdp-answer-1")})
	assert.ErrorIs(t, err, ErrNoPendingOffer)
}

func TestClearOfferMakesCandidatesNoOps(t *testing.T) {
	b, _, roomID := newTestBroker(t)

	_, _, err := b.SubmitOffer("conn-a", offerSDP("sdp1"), "conn-b")
	require.NoError(t, err)

	assert.True(t, b.ClearOffer(roomID))
	assert.False(t, b.ClearOffer(roomID))
	assert.False(t, b.HasOffer(roomID))

	_, err = b.AddCandidate("conn-a", ice("ice-late"), true)
	assert.ErrorIs(t, err, ErrNoPendingOffer)
	_, err = b.AddCandidate("conn-b", ice("ice-late"), false)
	assert.ErrorIs(t, err, ErrNoPendingOffer)
}

func TestCandidateWithoutRoomDropped(t *testing.T) {
	b, _, _ := newTestBroker(t)

	_, err := b.AddCandidate("conn-outsider", ice("ice-x"), true)
	assert.ErrorIs(t, err, ErrNoPendingOffer)
}
