package signal

import (
	"sync"
	"time"
)

const maxRoomMembers = 2

// Room is a two-party pairing scope. Members are kept in insertion
// order; the order determines "other party" lookups.
type Room struct {
	ID        string
	Members   []string
	CreatedAt time.Time
}

// MemberStatus describes the room as one remaining member should see
// it after a membership change.
type MemberStatus struct {
	ConnID     string
	IsFull     bool
	OtherParty string
	// Notify is true for every member except the one that triggered
	// the change, so "peer joined/left" hints are never echoed back.
	Notify bool
}

// Registry owns room membership and the connection/user lookup tables.
// All fields are guarded by mu and only reachable through its methods.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	connRoom map[string]string
	connUser map[string]string
	userName map[string]string
	timers   map[string]*time.Timer
	emptyTTL time.Duration
}

// NewRegistry creates an empty registry. emptyTTL bounds the life of a
// room that was created but never joined.
func NewRegistry(emptyTTL time.Duration) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		connRoom: make(map[string]string),
		connUser: make(map[string]string),
		userName: make(map[string]string),
		timers:   make(map[string]*time.Timer),
		emptyTTL: emptyTTL,
	}
}

// BindUser allocates a user id and records it for the connection.
func (r *Registry) BindUser(connID string) string {
	userID := newUserID()
	r.mu.Lock()
	r.connUser[connID] = userID
	r.mu.Unlock()
	return userID
}

// Unbind drops the connection's user id and display name. Called on
// disconnect after Leave.
func (r *Registry) Unbind(connID string) {
	r.mu.Lock()
	if userID, ok := r.connUser[connID]; ok {
		delete(r.userName, userID)
		delete(r.connUser, connID)
	}
	r.mu.Unlock()
}

// CreateRoom allocates an empty room and arms a one-shot collector
// that deletes it after the ttl only if it is still empty by then.
func (r *Registry) CreateRoom() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID := newRoomID()
	for r.rooms[roomID] != nil {
		roomID = newRoomID()
	}
	r.rooms[roomID] = &Room{ID: roomID, CreatedAt: time.Now()}
	r.timers[roomID] = time.AfterFunc(r.emptyTTL, func() {
		r.collectIfEmpty(roomID)
	})
	roomsActive.Inc()
	return roomID
}

// collectIfEmpty re-checks emptiness when the creation timer fires. A
// room that filled between scheduling and firing is left alone.
func (r *Registry) collectIfEmpty(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomID]
	if room == nil || len(room.Members) > 0 {
		return
	}
	r.deleteRoomLocked(roomID)
	Logger.Info("room collected, never joined", "room", roomID)
}

func (r *Registry) deleteRoomLocked(roomID string) {
	delete(r.rooms, roomID)
	if t := r.timers[roomID]; t != nil {
		t.Stop()
		delete(r.timers, roomID)
	}
	roomsActive.Dec()
}

// JoinRoom appends the connection to the room and records the display
// name. Pure state change; the caller broadcasts the new status.
func (r *Registry) JoinRoom(connID, roomID, displayName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomID]
	if room == nil {
		joinsTotal.WithLabelValues("not_found").Inc()
		return ErrRoomNotFound
	}
	if len(room.Members) >= maxRoomMembers {
		joinsTotal.WithLabelValues("full").Inc()
		return ErrRoomFull
	}
	room.Members = append(room.Members, connID)
	r.connRoom[connID] = roomID
	if userID := r.connUser[connID]; userID != "" {
		r.userName[userID] = displayName
	}
	joinsTotal.WithLabelValues("success").Inc()
	return nil
}

// Leave removes the connection from its room, if any. The room is
// deleted immediately when its last member leaves; the creation timer
// only covers rooms that were never joined. Safe to call twice and on
// connections that never joined, so the abrupt-disconnect and explicit
// hang-up paths can both funnel here.
func (r *Registry) Leave(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.connRoom[connID]
	if !ok {
		return "", false
	}
	delete(r.connRoom, connID)

	room := r.rooms[roomID]
	if room == nil {
		return roomID, true
	}
	members := room.Members[:0]
	for _, m := range room.Members {
		if m != connID {
			members = append(members, m)
		}
	}
	room.Members = members
	if len(room.Members) == 0 {
		r.deleteRoomLocked(roomID)
		Logger.Info("room deleted, last member left", "room", roomID)
	}
	return roomID, true
}

// Status computes the room view for every remaining member. Notify is
// never set for the triggering connection itself; an empty trigger
// means nobody gets the join/left hint.
func (r *Registry) Status(roomID, triggerConnID string) []MemberStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[roomID]
	if room == nil || len(room.Members) == 0 {
		return nil
	}
	full := len(room.Members) == maxRoomMembers
	statuses := make([]MemberStatus, 0, len(room.Members))
	for _, connID := range room.Members {
		statuses = append(statuses, MemberStatus{
			ConnID:     connID,
			IsFull:     full,
			OtherParty: otherOf(room, connID),
			Notify:     triggerConnID != "" && connID != triggerConnID,
		})
	}
	return statuses
}

func otherOf(room *Room, connID string) string {
	for _, m := range room.Members {
		if m != connID {
			return m
		}
	}
	return ""
}

// RoomOf returns the room the connection is a member of, or "".
func (r *Registry) RoomOf(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connRoom[connID]
}

// OtherMember returns the other member of the room, or "".
func (r *Registry) OtherMember(roomID, connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[roomID]
	if room == nil {
		return ""
	}
	return otherOf(room, connID)
}

// Members returns a copy of the room's member list in insertion order.
func (r *Registry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[roomID]
	if room == nil {
		return nil
	}
	out := make([]string, len(room.Members))
	copy(out, room.Members)
	return out
}

// MemberCount returns the number of members in the room.
func (r *Registry) MemberCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[roomID]
	if room == nil {
		return 0
	}
	return len(room.Members)
}

// UserID returns the user id bound to the connection, or "".
func (r *Registry) UserID(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connUser[connID]
}

// DisplayName returns the display name supplied by the connection on
// join, or "".
func (r *Registry) DisplayName(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userName[r.connUser[connID]]
}
