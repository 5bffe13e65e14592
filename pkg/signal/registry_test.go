package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestRegistry() *Registry {
	return NewRegistry(time.Minute)
}

func TestJoinRoomNotFound(t *testing.T) {
	r := newTestRegistry()

	err := r.JoinRoom("conn-a", "NOPE1", "Alice")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoomCapacity(t *testing.T) {
	r := newTestRegistry()
	roomID := r.CreateRoom()

	assert.NoError(t, r.JoinRoom("conn-a", roomID, "Alice"))
	assert.NoError(t, r.JoinRoom("conn-b", roomID, "Bob"))
	assert.ErrorIs(t, r.JoinRoom("conn-c", roomID, "Carol"), ErrRoomFull)
	assert.Equal(t, 2, r.MemberCount(roomID))
}

func TestStatusNeverNotifiesTrigger(t *testing.T) {
	r := newTestRegistry()
	roomID := r.CreateRoom()
	assert.NoError(t, r.JoinRoom("conn-a", roomID, "Alice"))
	assert.NoError(t, r.JoinRoom("conn-b", roomID, "Bob"))

	for _, trigger := range []string{"conn-a", "conn-b"} {
		for _, st := range r.Status(roomID, trigger) {
			if st.ConnID == trigger {
				assert.False(t, st.Notify, "trigger %s got its own notification", trigger)
			} else {
				assert.True(t, st.Notify)
			}
		}
	}
}

func TestStatusFullRoomScenario(t *testing.T) {
	r := newTestRegistry()
	r.BindUser("conn-a")
	r.BindUser("conn-b")
	roomID := r.CreateRoom()

	assert.NoError(t, r.JoinRoom("conn-a", roomID, "Alice"))

	statuses := r.Status(roomID, "conn-a")
	assert.Len(t, statuses, 1)
	assert.False(t, statuses[0].IsFull)
	assert.Empty(t, statuses[0].OtherParty)

	assert.NoError(t, r.JoinRoom("conn-b", roomID, "Bob"))

	statuses = r.Status(roomID, "conn-b")
	assert.Len(t, statuses, 2)
	byConn := map[string]MemberStatus{}
	for _, st := range statuses {
		assert.True(t, st.IsFull)
		byConn[st.ConnID] = st
	}
	assert.Equal(t, "conn-b", byConn["conn-a"].OtherParty)
	assert.Equal(t, "conn-a", byConn["conn-b"].OtherParty)

	assert.ErrorIs(t, r.JoinRoom("conn-c", roomID, "Carol"), ErrRoomFull)
}

func TestLeaveDeletesEmptyRoomImmediately(t *testing.T) {
	r := newTestRegistry()
	roomID := r.CreateRoom()
	assert.NoError(t, r.JoinRoom("conn-a", roomID, "Alice"))
	assert.NoError(t, r.JoinRoom("conn-b", roomID, "Bob"))

	gone, left := r.Leave("conn-a")
	assert.True(t, left)
	assert.Equal(t, roomID, gone)
	assert.Equal(t, 1, r.MemberCount(roomID))
	assert.Equal(t, []string{"conn-b"}, r.Members(roomID))

	_, left = r.Leave("conn-b")
	assert.True(t, left)
	assert.Equal(t, 0, r.MemberCount(roomID))
	assert.ErrorIs(t, r.JoinRoom("conn-c", roomID, "Carol"), ErrRoomNotFound)
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	roomID := r.CreateRoom()
	assert.NoError(t, r.JoinRoom("conn-a", roomID, "Alice"))

	_, left := r.Leave("conn-a")
	assert.True(t, left)
	_, left = r.Leave("conn-a")
	assert.False(t, left)
	_, left = r.Leave("conn-never-joined")
	assert.False(t, left)
}

func TestEmptyRoomCollectedAfterTTL(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	roomID := r.CreateRoom()

	assert.Eventually(t, func() bool {
		return r.JoinRoom("conn-a", roomID, "Alice") == ErrRoomNotFound
	}, time.Second, 10*time.Millisecond)
}

func TestJoinedRoomSurvivesTTL(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	roomID := r.CreateRoom()
	assert.NoError(t, r.JoinRoom("conn-a", roomID, "Alice"))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, r.MemberCount(roomID))
}

func TestDisplayNameBinding(t *testing.T) {
	r := newTestRegistry()
	userID := r.BindUser("conn-a")
	assert.Len(t, userID, idLength)
	assert.Equal(t, userID, r.UserID("conn-a"))

	roomID := r.CreateRoom()
	assert.NoError(t, r.JoinRoom("conn-a", roomID, "Alice"))
	assert.Equal(t, "Alice", r.DisplayName("conn-a"))

	r.Leave("conn-a")
	r.Unbind("conn-a")
	assert.Empty(t, r.UserID("conn-a"))
	assert.Empty(t, r.DisplayName("conn-a"))
}
