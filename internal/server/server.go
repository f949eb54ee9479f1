package server

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/npezzotti/pomochat/internal/clock"
	"github.com/npezzotti/pomochat/internal/feed"
	"github.com/npezzotti/pomochat/internal/realtime"
	"github.com/npezzotti/pomochat/internal/stats"
	"github.com/npezzotti/pomochat/internal/types"
)

const (
	MetricActiveClients    = "ActiveClients"
	MetricLoadedRooms      = "LoadedRooms"
	MetricPhaseTransitions = "PhaseTransitions"
)

// SessionServer owns the set of loaded rooms and the websocket clients
// attached to them. Rooms are loaded lazily on first join and unloaded
// after sitting empty; the store remains the system of record either
// way.
type SessionServer struct {
	log    *log.Logger
	syncer *realtime.Syncer
	feed   *feed.Feed
	stats  stats.StatsProvider
	clk    clockwork.Clock

	clients     map[*Client]struct{}
	clientsLock sync.Mutex

	rooms          map[string]*Room
	joinChan       chan *Client
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	unloadRoomChan chan string

	stop chan struct{}
	done chan struct{}
}

func NewSessionServer(logger *log.Logger, syncer *realtime.Syncer, fd *feed.Feed, su stats.StatsProvider, clk clockwork.Clock) (*SessionServer, error) {
	cs := &SessionServer{
		log:            logger,
		syncer:         syncer,
		feed:           fd,
		stats:          su,
		clk:            clk,
		clients:        make(map[*Client]struct{}),
		rooms:          make(map[string]*Room),
		joinChan:       make(chan *Client, 256),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		unloadRoomChan: make(chan string, 16),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	su.RegisterMetric(MetricActiveClients)
	su.RegisterMetric(MetricLoadedRooms)
	su.RegisterMetric(MetricPhaseTransitions)

	return cs, nil
}

// RegisterClient tracks a new websocket connection. The client stays
// registered until its read pump exits.
func (cs *SessionServer) RegisterClient(c *Client) {
	cs.RegisterChan <- c
}

// Join hands a freshly registered client to the hub for placement in
// its room. Non-blocking so a slow hub cannot stall the HTTP handler.
func (cs *SessionServer) Join(c *Client) error {
	select {
	case cs.joinChan <- c:
		return nil
	default:
		return fmt.Errorf("join queue full")
	}
}

func (cs *SessionServer) Run() {
	for {
		select {
		case c := <-cs.joinChan:
			cs.handleJoin(c)
		case c := <-cs.RegisterChan:
			cs.addClient(c)
			cs.stats.Incr(MetricActiveClients)
		case c := <-cs.deRegisterChan:
			cs.removeClient(c)
			cs.stats.Decr(MetricActiveClients)
		case roomId := <-cs.unloadRoomChan:
			cs.unloadRoom(roomId)
		case <-cs.stop:
			for _, r := range cs.rooms {
				cs.stopRoom(r)
			}
			cs.rooms = nil
			close(cs.done)
			return
		}
	}
}

func (cs *SessionServer) handleJoin(c *Client) {
	r, ok := cs.rooms[c.roomId]
	if !ok {
		var err error
		r, err = cs.loadRoom(c.roomId)
		if err != nil {
			cs.log.Printf("failed to load room %q: %s", c.roomId, err)
			c.queueMessage(ErrServiceUnavailable(0))
			return
		}
	}

	select {
	case r.joinChan <- c:
	default:
		cs.log.Printf("join channel full for room %q", c.roomId)
		c.queueMessage(ErrServiceUnavailable(0))
	}
}

// loadRoom fetches the current snapshot from the store, spins up the
// room goroutine with a countdown engine seeded from it, and subscribes
// the room to the change feed.
func (cs *SessionServer) loadRoom(roomId string) (*Room, error) {
	snapshot, history, err := cs.syncer.FetchInitial(roomId)
	if err != nil {
		return nil, fmt.Errorf("fetch room snapshot: %w", err)
	}

	r := &Room{
		id:            snapshot.Id,
		name:          snapshot.Name,
		cs:            cs,
		clk:           cs.clk,
		joinChan:      make(chan *Client, 16),
		leaveChan:     make(chan *Client, 16),
		clientMsgChan: make(chan *ClientMessage, 256),
		feedRoomChan:  make(chan types.Room, 16),
		feedMsgChan:   make(chan types.Message, 64),
		clients:       make(map[*Client]struct{}),
		exit:          make(chan exitReq),
		log:           cs.log,
	}
	r.history = history
	r.engine = clock.NewEngine(types.StateOf(snapshot), cs.syncer.Publisher(snapshot.Id), r, cs.log)
	r.sub = cs.syncer.Subscribe(snapshot.Id, r.enqueueRoomUpdate, r.enqueueMessage)

	cs.rooms[snapshot.Id] = r
	cs.stats.Incr(MetricLoadedRooms)
	go r.start()

	return r, nil
}

func (cs *SessionServer) unloadRoom(roomId string) {
	r, ok := cs.rooms[roomId]
	if !ok {
		return
	}

	delete(cs.rooms, roomId)
	cs.stopRoom(r)
	cs.stats.Decr(MetricLoadedRooms)
}

func (cs *SessionServer) stopRoom(r *Room) {
	done := make(chan struct{})
	r.exit <- exitReq{done: done}
	<-done
}

func (cs *SessionServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	cs.clients[c] = struct{}{}
}

func (cs *SessionServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()
	delete(cs.clients, c)
}

// Shutdown closes every client connection and waits for the hub and its
// rooms to drain, or for the context to expire.
func (cs *SessionServer) Shutdown(ctx context.Context) error {
	cs.clientsLock.Lock()
	for c := range cs.clients {
		c.close()
	}
	cs.clientsLock.Unlock()

	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
