package server

import (
	"log"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/npezzotti/pomochat/internal/feed"
	"github.com/npezzotti/pomochat/internal/types"
)

const idleRoomTimeout = 30 * time.Second

type exitReq struct {
	done chan struct{}
}

// Room is the runtime for one loaded room. Its goroutine serializes
// everything that can touch the countdown engine: the 1 Hz tick, change
// feed events from the store, client commands, and joins/leaves.
type Room struct {
	id     string
	name   string
	cs     *SessionServer
	engine engineRunner
	sub    subscription
	clk    clockwork.Clock

	// ticker is non-nil only while the countdown is active
	ticker clockwork.Ticker
	// killTimer unloads the room when it has been empty for a while
	killTimer clockwork.Timer

	joinChan      chan *Client
	leaveChan     chan *Client
	clientMsgChan chan *ClientMessage
	feedRoomChan  chan types.Room
	feedMsgChan   chan types.Message
	clients       map[*Client]struct{}
	exit          chan exitReq
	log           *log.Logger

	// history is the recent chat backlog replayed to joining clients,
	// bounded so long-lived rooms don't grow without limit
	history []types.Message
}

const maxHistory = 200

// engineRunner is the countdown engine surface the room drives.
type engineRunner interface {
	Tick()
	Toggle()
	Reset() bool
	SetDurations(studyMin, breakMin int)
	Seed(state types.RoomState)
	State() types.RoomState
	Active() bool
}

type subscription interface {
	Unsubscribe()
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.id)
	r.killTimer = r.clk.NewTimer(idleRoomTimeout)
	r.syncTicker()

	defer func() {
		if r.ticker != nil {
			r.ticker.Stop()
		}
		if r.sub != nil {
			r.sub.Unsubscribe()
		}
	}()

	for {
		var tickChan <-chan time.Time
		if r.ticker != nil {
			tickChan = r.ticker.Chan()
		}

		select {
		case <-tickChan:
			r.engine.Tick()
			r.syncTicker()
			r.broadcastState()
		case room := <-r.feedRoomChan:
			r.handleRoomUpdate(room)
		case msg := <-r.feedMsgChan:
			r.appendHistory(msg)
			r.broadcast(&ServerMessage{Message: &msg})
		case c := <-r.joinChan:
			r.handleJoin(c)
		case c := <-r.leaveChan:
			r.handleLeave(c)
		case msg := <-r.clientMsgChan:
			r.handleClientMessage(msg)
		case <-r.killTimer.Chan():
			r.handleRoomTimeout()
		case e := <-r.exit:
			r.handleRoomExit(e)
			return
		}
	}
}

// syncTicker reconciles the 1 Hz ticker with the engine's running flag.
func (r *Room) syncTicker() {
	switch {
	case r.engine.Active() && r.ticker == nil:
		r.ticker = r.clk.NewTicker(time.Second)
	case !r.engine.Active() && r.ticker != nil:
		r.ticker.Stop()
		r.ticker = nil
	}
}

// handleRoomUpdate applies an authoritative snapshot pushed by the
// store change feed. It overwrites the local countdown unconditionally,
// last write wins, so peers that raced us on a transition converge.
func (r *Room) handleRoomUpdate(room types.Room) {
	r.engine.Seed(types.StateOf(room))
	if room.Name != "" {
		r.name = room.Name
	}
	r.syncTicker()
	r.broadcastState()
}

// PhaseComplete implements the countdown engine's completion cue by
// telling clients to chime. Best-effort: clients that can't play audio
// drop it.
func (r *Room) PhaseComplete(next types.TimerMode) {
	r.cs.stats.Incr(MetricPhaseTransitions)
	r.broadcast(&ServerMessage{Chime: &Chime{Next: next}})
}

func (r *Room) handleClientMessage(msg *ClientMessage) {
	switch {
	case msg.Publish != nil:
		// fire-and-forget: delivery comes back through the change
		// feed, failures are the feed's to log
		go r.cs.feed.Send(r.id, msg.client.sender, msg.Publish.Content, msg.Publish.ImageUrl, msg.Publish.AudioUrl)
		msg.client.queueMessage(NoErrAccepted(msg.Id))
	case msg.Timer != nil:
		r.handleTimerCommand(msg)
	default:
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (r *Room) handleTimerCommand(msg *ClientMessage) {
	switch msg.Timer.Op {
	case OpToggle:
		r.engine.Toggle()
	case OpReset:
		if !r.engine.Reset() {
			msg.client.queueMessage(ErrResetRejected(msg.Id))
			return
		}
	case OpDurations:
		r.engine.SetDurations(msg.Timer.StudyDuration, msg.Timer.BreakDuration)
	default:
		msg.client.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	msg.client.queueMessage(NoErrOK(msg.Id))
	r.syncTicker()
	r.broadcastState()
}

func (r *Room) handleJoin(c *Client) {
	r.killTimer.Stop()

	r.clients[c] = struct{}{}
	c.setRoom(r)

	r.log.Printf("client %s (%q) joined room %q", c.id, c.sender, r.id)

	// seed the new client with the current snapshot and backlog
	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Room:        r.currentUpdate(),
	})
	for i := range r.history {
		c.queueMessage(&ServerMessage{
			BaseMessage: BaseMessage{Timestamp: Now()},
			Message:     &r.history[i],
		})
	}
}

func (r *Room) appendHistory(msg types.Message) {
	r.history = append(r.history, msg)
	if len(r.history) > maxHistory {
		r.history = r.history[len(r.history)-maxHistory:]
	}
}

func (r *Room) handleLeave(c *Client) {
	if _, ok := r.clients[c]; !ok {
		return
	}

	delete(r.clients, c)
	c.setRoom(nil)
	r.log.Printf("client %s (%q) left room %q", c.id, c.sender, r.id)

	if len(r.clients) == 0 {
		r.log.Printf("no clients in %q, starting kill timer", r.id)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomTimeout() {
	r.log.Printf("room %q idle, unloading", r.id)
	select {
	case r.cs.unloadRoomChan <- r.id:
	default:
		r.log.Printf("unload channel full, rearming kill timer for %q", r.id)
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit(e exitReq) {
	r.log.Printf("room %q is exiting", r.id)
	for c := range r.clients {
		c.setRoom(nil)
	}

	if e.done != nil {
		close(e.done)
	}
}

func (r *Room) currentUpdate() *RoomUpdate {
	state := r.engine.State()
	return &RoomUpdate{
		RoomId:     r.id,
		Name:       r.name,
		ChatLocked: feed.Locked(state.TimerMode),
		RoomState:  state,
	}
}

func (r *Room) broadcastState() {
	r.broadcast(&ServerMessage{Room: r.currentUpdate()})
}

func (r *Room) broadcast(msg *ServerMessage) {
	msg.Timestamp = Now()

	for client := range r.clients {
		if client == msg.SkipClient {
			continue
		}

		client.queueMessage(msg)
	}
}

// enqueueRoomUpdate and enqueueMessage run on the syncer's dispatch
// goroutine; they hand events to the room goroutine without blocking.
// A dropped update is healed by the next one.
func (r *Room) enqueueRoomUpdate(room types.Room) {
	select {
	case r.feedRoomChan <- room:
	default:
		r.log.Printf("room update channel full for %q", r.id)
	}
}

func (r *Room) enqueueMessage(msg types.Message) {
	select {
	case r.feedMsgChan <- msg:
	default:
		r.log.Printf("message channel full for %q", r.id)
	}
}
