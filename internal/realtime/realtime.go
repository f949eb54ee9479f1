package realtime

import (
	"fmt"
	"log"
	"sync"

	"github.com/npezzotti/pomochat/internal/database"
	"github.com/npezzotti/pomochat/internal/session"
	"github.com/npezzotti/pomochat/internal/stats"
	"github.com/npezzotti/pomochat/internal/types"
)

const MetricPublishFailures = "PublishFailures"

// Syncer is the synchronization layer between local countdowns and the
// shared room records: it merges partial state into the store and routes
// store change-feed events to per-room subscriptions.
type Syncer struct {
	db    database.PomochatRepository
	feed  <-chan database.FeedEvent
	stats stats.StatsProvider
	log   *log.Logger

	subsLock sync.Mutex
	subs     map[string]map[*Subscription]struct{}

	stop chan struct{}
	done chan struct{}
}

func NewSyncer(db database.PomochatRepository, feed <-chan database.FeedEvent, su stats.StatsProvider, logger *log.Logger) *Syncer {
	su.RegisterMetric(MetricPublishFailures)

	return &Syncer{
		db:    db,
		feed:  feed,
		stats: su,
		log:   logger,
		subs:  make(map[string]map[*Subscription]struct{}),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Subscription is a handle on a room's two change feeds. Unsubscribe must
// be called exactly once when the room is exited so stale events cannot
// touch a newer room's state.
type Subscription struct {
	syncer          *Syncer
	roomId          string
	onRoomUpdate    func(types.Room)
	onMessageInsert func(types.Message)
	once            sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.syncer.remove(s)
	})
}

// Subscribe registers handlers for updates to the room record and inserts
// into its message sequence. Handlers run on the dispatch goroutine and
// must not block.
func (s *Syncer) Subscribe(roomId string, onRoomUpdate func(types.Room), onMessageInsert func(types.Message)) *Subscription {
	sub := &Subscription{
		syncer:          s,
		roomId:          roomId,
		onRoomUpdate:    onRoomUpdate,
		onMessageInsert: onMessageInsert,
	}

	s.subsLock.Lock()
	defer s.subsLock.Unlock()

	if s.subs[roomId] == nil {
		s.subs[roomId] = make(map[*Subscription]struct{})
	}
	s.subs[roomId][sub] = struct{}{}

	return sub
}

func (s *Syncer) remove(sub *Subscription) {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()

	if roomSubs, ok := s.subs[sub.roomId]; ok {
		delete(roomSubs, sub)
		if len(roomSubs) == 0 {
			delete(s.subs, sub.roomId)
		}
	}
}

// FetchInitial reads the room snapshot and its full ordered message
// history, used to seed local state before the live feeds take over.
func (s *Syncer) FetchInitial(roomId string) (types.Room, []types.Message, error) {
	if s.db == nil {
		return types.Room{}, nil, session.ErrNotConfigured
	}

	dbRoom, err := s.db.GetRoomById(roomId)
	if err != nil {
		return types.Room{}, nil, fmt.Errorf("get room: %w", err)
	}

	dbMessages, err := s.db.GetMessages(roomId)
	if err != nil {
		return types.Room{}, nil, fmt.Errorf("get messages: %w", err)
	}

	messages := make([]types.Message, len(dbMessages))
	for i, m := range dbMessages {
		messages[i] = toMessage(m)
	}

	return toRoom(dbRoom), messages, nil
}

// Publish merges a partial state patch into the room record. The write is
// best-effort: failures are logged and counted, never retried. Empty
// patches are dropped without touching the store.
func (s *Syncer) Publish(roomId string, patch database.RoomStatePatch) error {
	if s.db == nil {
		return session.ErrNotConfigured
	}
	if patch.IsZero() {
		return nil
	}

	if _, err := s.db.UpdateRoomState(roomId, patch); err != nil {
		s.stats.Incr(MetricPublishFailures)
		return fmt.Errorf("update room state: %w", err)
	}
	return nil
}

// Publisher binds the syncer to a room id as a fire-and-forget state
// publisher for a countdown engine.
func (s *Syncer) Publisher(roomId string) *RoomPublisher {
	return &RoomPublisher{syncer: s, roomId: roomId}
}

type RoomPublisher struct {
	syncer *Syncer
	roomId string
}

// PublishState writes the patch in the background so the caller's tick
// loop never blocks on the store.
func (p *RoomPublisher) PublishState(patch database.RoomStatePatch) {
	go func() {
		if err := p.syncer.Publish(p.roomId, patch); err != nil {
			p.syncer.log.Printf("publish state for room %q: %v", p.roomId, err)
		}
	}()
}

// Run drains the store change feed and fans events out to subscriptions
// until Stop is called.
func (s *Syncer) Run() {
	defer close(s.done)

	for {
		select {
		case ev, ok := <-s.feed:
			if !ok {
				return
			}
			s.dispatch(ev)
		case <-s.stop:
			return
		}
	}
}

func (s *Syncer) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Syncer) dispatch(ev database.FeedEvent) {
	switch {
	case ev.Room != nil:
		room := toRoom(*ev.Room)
		for _, sub := range s.subscribers(room.Id) {
			if sub.onRoomUpdate != nil {
				sub.onRoomUpdate(room)
			}
		}
	case ev.Message != nil:
		subs := s.subscribers(ev.Message.RoomId)
		if len(subs) == 0 {
			return
		}

		dbMsg, err := s.db.GetMessage(ev.Message.Id)
		if err != nil {
			s.log.Printf("fetch message %d: %v", ev.Message.Id, err)
			return
		}

		msg := toMessage(dbMsg)
		for _, sub := range subs {
			if sub.onMessageInsert != nil {
				sub.onMessageInsert(msg)
			}
		}
	}
}

func (s *Syncer) subscribers(roomId string) []*Subscription {
	s.subsLock.Lock()
	defer s.subsLock.Unlock()

	subs := make([]*Subscription, 0, len(s.subs[roomId]))
	for sub := range s.subs[roomId] {
		subs = append(subs, sub)
	}
	return subs
}

func toRoom(r database.Room) types.Room {
	return types.Room{
		Id:            r.Id,
		Name:          r.Name,
		Password:      r.Password,
		StudyDuration: r.StudyDuration,
		BreakDuration: r.BreakDuration,
		IsActive:      r.IsActive,
		TimerMode:     types.TimerMode(r.TimerMode),
		TimeLeft:      r.TimeLeft,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toMessage(m database.Message) types.Message {
	return types.Message{
		Id:        m.Id,
		RoomId:    m.RoomId,
		Sender:    m.Sender,
		Content:   m.Content,
		ImageUrl:  m.ImageUrl,
		AudioUrl:  m.AudioUrl,
		CreatedAt: m.CreatedAt,
	}
}
