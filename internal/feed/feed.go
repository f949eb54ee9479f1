package feed

import (
	"log"

	"github.com/npezzotti/pomochat/internal/database"
	"github.com/npezzotti/pomochat/internal/session"
	"github.com/npezzotti/pomochat/internal/stats"
	"github.com/npezzotti/pomochat/internal/types"
)

const (
	MetricMessagesSent = "MessagesSent"
	MetricSendFailures = "MessageSendFailures"
)

// Feed appends and reads a room's chat history. Delivery to live
// participants happens through the store change feed, not here.
type Feed struct {
	db    database.PomochatRepository
	stats stats.StatsProvider
	log   *log.Logger
}

func NewFeed(db database.PomochatRepository, su stats.StatsProvider, logger *log.Logger) *Feed {
	su.RegisterMetric(MetricMessagesSent)
	su.RegisterMetric(MetricSendFailures)

	return &Feed{db: db, stats: su, log: logger}
}

// Send appends one immutable message. Writes are best-effort: failures
// are logged and counted but never surfaced to the sender. Messages with
// no body at all are dropped.
func (f *Feed) Send(roomId, sender, content, imageUrl, audioUrl string) {
	if content == "" && imageUrl == "" && audioUrl == "" {
		return
	}
	if f.db == nil {
		f.log.Printf("dropping message from %q: store not configured", sender)
		return
	}

	_, err := f.db.CreateMessage(database.CreateMessageParams{
		RoomId:   roomId,
		Sender:   sender,
		Content:  content,
		ImageUrl: imageUrl,
		AudioUrl: audioUrl,
	})
	if err != nil {
		f.stats.Incr(MetricSendFailures)
		f.log.Printf("send message to room %q: %v", roomId, err)
		return
	}

	f.stats.Incr(MetricMessagesSent)
}

// History returns the room's messages ordered by created_at ascending.
func (f *Feed) History(roomId string) ([]types.Message, error) {
	if f.db == nil {
		return nil, session.ErrNotConfigured
	}

	dbMessages, err := f.db.GetMessages(roomId)
	if err != nil {
		return nil, err
	}

	messages := make([]types.Message, len(dbMessages))
	for i, m := range dbMessages {
		messages[i] = types.Message{
			Id:        m.Id,
			RoomId:    m.RoomId,
			Sender:    m.Sender,
			Content:   m.Content,
			ImageUrl:  m.ImageUrl,
			AudioUrl:  m.AudioUrl,
			CreatedAt: m.CreatedAt,
		}
	}

	return messages, nil
}

// Locked reports the advisory chat lock: chat is read-only while the
// room is in a study phase. Nothing enforces it server-side; it is UI
// policy pushed to clients, not a security boundary.
func Locked(mode types.TimerMode) bool {
	return mode == types.ModeStudy
}
