package database

import (
	"encoding/json"
	"log"
	"time"

	"github.com/lib/pq"
)

// Notification channels written by the triggers in migrations. The rooms
// trigger publishes the full row (minus password); the messages trigger
// publishes only {id, room_id} because attachment data URLs routinely
// exceed the NOTIFY payload limit.
const (
	roomUpdateChannel    = "pomochat_room_update"
	messageInsertChannel = "pomochat_message_insert"
)

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// MessageRef identifies a newly inserted message; the full row is fetched
// by the consumer.
type MessageRef struct {
	Id     int64  `json:"id"`
	RoomId string `json:"room_id"`
}

// FeedEvent is a single change-feed notification. Exactly one field is set.
type FeedEvent struct {
	Room    *Room
	Message *MessageRef
}

type roomPayload struct {
	Id            string `json:"id"`
	Name          string `json:"name"`
	StudyDuration int    `json:"study_duration"`
	BreakDuration int    `json:"break_duration"`
	IsActive      bool   `json:"is_active"`
	TimerMode     string `json:"timer_mode"`
	TimeLeft      int    `json:"time_left"`
}

// FeedListener consumes the store's LISTEN/NOTIFY channels and exposes
// decoded events. Events arriving faster than the consumer drains them
// are dropped; the next room update converges any missed state.
type FeedListener struct {
	listener *pq.Listener
	log      *log.Logger
	events   chan FeedEvent
	done     chan struct{}
}

func NewFeedListener(dsn string, logger *log.Logger) (*FeedListener, error) {
	l := pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Println("feed listener:", err)
			}
		})

	for _, ch := range []string{roomUpdateChannel, messageInsertChannel} {
		if err := l.Listen(ch); err != nil {
			l.Close()
			return nil, err
		}
	}

	fl := &FeedListener{
		listener: l,
		log:      logger,
		events:   make(chan FeedEvent, 256),
		done:     make(chan struct{}),
	}

	go fl.run()
	return fl, nil
}

// Events returns the stream of decoded change-feed events.
func (fl *FeedListener) Events() <-chan FeedEvent {
	return fl.events
}

func (fl *FeedListener) Close() error {
	close(fl.done)
	return fl.listener.Close()
}

func (fl *FeedListener) run() {
	for {
		select {
		case n := <-fl.listener.Notify:
			if n == nil {
				// nil is delivered after a reconnect; state may have
				// changed while we were away, but the next update
				// overwrites it anyway
				continue
			}
			fl.dispatch(n)
		case <-time.After(pingInterval):
			go func() {
				if err := fl.listener.Ping(); err != nil {
					fl.log.Println("feed listener ping:", err)
				}
			}()
		case <-fl.done:
			return
		}
	}
}

func (fl *FeedListener) dispatch(n *pq.Notification) {
	var ev FeedEvent

	switch n.Channel {
	case roomUpdateChannel:
		var p roomPayload
		if err := json.Unmarshal([]byte(n.Extra), &p); err != nil {
			fl.log.Println("decode room update:", err)
			return
		}
		ev.Room = &Room{
			Id:            p.Id,
			Name:          p.Name,
			StudyDuration: p.StudyDuration,
			BreakDuration: p.BreakDuration,
			IsActive:      p.IsActive,
			TimerMode:     p.TimerMode,
			TimeLeft:      p.TimeLeft,
		}
	case messageInsertChannel:
		var ref MessageRef
		if err := json.Unmarshal([]byte(n.Extra), &ref); err != nil {
			fl.log.Println("decode message insert:", err)
			return
		}
		ev.Message = &ref
	default:
		return
	}

	select {
	case fl.events <- ev:
	default:
		fl.log.Printf("feed event channel full, dropping %s", n.Channel)
	}
}
