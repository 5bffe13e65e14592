// Package signal implements the room/session coordinator and
// handshake broker for a two-party WebRTC call: room lifecycle,
// participant pairing, the asymmetric offer/answer/candidate relay and
// a trivial chat relay.
package signal

import (
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/go-logr/logr"
)

// Logger is an implementation of logr.Logger. If is not provided - will
// be turned off.
var Logger logr.Logger = logr.Discard()

const statusDebounceInterval = 100 * time.Millisecond

// ICEServerConfig defines parameters for ice servers handed to clients
type ICEServerConfig struct {
	URLs       []string `mapstructure:"urls" json:"urls"`
	Username   string   `mapstructure:"username" json:"username,omitempty"`
	Credential string   `mapstructure:"credential" json:"credential,omitempty"`
}

// WebRTCConfig defines ice servers served to clients on request
type WebRTCConfig struct {
	ICEServers []ICEServerConfig `mapstructure:"iceserver"`
}

// RoomConfig defines room lifecycle parameters
type RoomConfig struct {
	// EmptyTTL is how long a created but never joined room lives, in
	// seconds. Zero means the 10 minute default.
	EmptyTTL int `mapstructure:"emptyttl"`
}

// Config for the signal coordinator
type Config struct {
	Room   RoomConfig   `mapstructure:"room"`
	WebRTC WebRTCConfig `mapstructure:"webrtc"`
}

const defaultEmptyTTL = 10 * time.Minute

// Coordinator ties the registry, the broker and the connected peers
// together. Registry and broker share room identity but own disjoint
// state; the coordinator is the only place that knows both plus the
// peer table.
type Coordinator struct {
	config   Config
	registry *Registry
	broker   *Broker

	mu    sync.RWMutex
	peers map[string]*Peer

	dmu        sync.Mutex
	refreshers map[string]func(f func())
}

// NewCoordinator creates a coordinator from config.
func NewCoordinator(c Config) *Coordinator {
	ttl := time.Duration(c.Room.EmptyTTL) * time.Second
	if ttl <= 0 {
		ttl = defaultEmptyTTL
	}
	registry := NewRegistry(ttl)
	return &Coordinator{
		config:     c,
		registry:   registry,
		broker:     NewBroker(registry),
		peers:      make(map[string]*Peer),
		refreshers: make(map[string]func(f func())),
	}
}

// Registry exposes the room registry, mainly for tests and status
// inspection.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Broker exposes the handshake broker.
func (c *Coordinator) Broker() *Broker {
	return c.broker
}

// ICEServers returns the configured ice servers for client bootstrap.
func (c *Coordinator) ICEServers() []ICEServerConfig {
	return c.config.WebRTC.ICEServers
}

func (c *Coordinator) addPeer(p *Peer) {
	c.mu.Lock()
	c.peers[p.id] = p
	c.mu.Unlock()
}

func (c *Coordinator) removePeer(id string) {
	c.mu.Lock()
	delete(c.peers, id)
	c.mu.Unlock()
}

func (c *Coordinator) peer(id string) *Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peers[id]
}

// broadcastStatus pushes the current room view to every remaining
// member. Runs after every join and leave and on refresh requests.
func (c *Coordinator) broadcastStatus(roomID, triggerConnID string) {
	statuses := c.registry.Status(roomID, triggerConnID)
	if statuses == nil {
		c.dropRefresher(roomID)
		return
	}
	for _, st := range statuses {
		target := c.peer(st.ConnID)
		if target == nil {
			continue
		}
		target.deliverRoomUpdate(RoomUpdate{
			IsRoomFull:  st.IsFull,
			OtherParty:  st.OtherParty,
			ShowMessage: st.Notify,
		})
	}
}

// refreshStatus coalesces client-requested refreshes per room so a
// burst of requests produces one broadcast. Join/leave broadcasts do
// not pass through here, they are immediate.
func (c *Coordinator) refreshStatus(roomID, triggerConnID string) {
	c.dmu.Lock()
	d := c.refreshers[roomID]
	if d == nil {
		d = debounce.New(statusDebounceInterval)
		c.refreshers[roomID] = d
	}
	c.dmu.Unlock()
	d(func() {
		c.broadcastStatus(roomID, triggerConnID)
	})
}

func (c *Coordinator) dropRefresher(roomID string) {
	c.dmu.Lock()
	delete(c.refreshers, roomID)
	c.dmu.Unlock()
}
