package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/npezzotti/pomochat/internal/database"
	"github.com/npezzotti/pomochat/internal/session"
	"github.com/npezzotti/pomochat/internal/stats"
	"github.com/npezzotti/pomochat/internal/testutil"
	"github.com/npezzotti/pomochat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestFeed(t *testing.T, db database.PomochatRepository) (*Feed, *stats.MockStatsUpdater) {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return().Times(2)

	return NewFeed(db, su, testutil.TestLogger(t)), su
}

func TestSend(t *testing.T) {
	t.Run("appends a message", func(t *testing.T) {
		db := &database.MockPomochatRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateMessage", database.CreateMessageParams{
			RoomId:  "ABC123",
			Sender:  "ana",
			Content: "back in 5",
		}).Return(database.Message{Id: 1}, nil)

		f, su := newTestFeed(t, db)
		su.On("Incr", MetricMessagesSent).Return().Once()

		f.Send("ABC123", "ana", "back in 5", "", "")
		su.AssertExpectations(t)
	})

	t.Run("write failure is swallowed and counted", func(t *testing.T) {
		db := &database.MockPomochatRepository{}
		db.On("CreateMessage", mock.Anything).Return(database.Message{}, errors.New("store outage"))

		f, su := newTestFeed(t, db)
		su.On("Incr", MetricSendFailures).Return().Once()

		f.Send("ABC123", "ana", "lost", "", "")
		su.AssertExpectations(t)
	})

	t.Run("empty message is dropped", func(t *testing.T) {
		db := &database.MockPomochatRepository{}
		defer db.AssertExpectations(t)

		f, _ := newTestFeed(t, db)
		f.Send("ABC123", "ana", "", "", "")

		db.AssertNotCalled(t, "CreateMessage", mock.Anything)
	})

	t.Run("attachment-only message is sent", func(t *testing.T) {
		db := &database.MockPomochatRepository{}
		defer db.AssertExpectations(t)
		db.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
			return p.Content == "" && p.ImageUrl == "data:image/png;base64,xyz"
		})).Return(database.Message{Id: 2}, nil)

		f, su := newTestFeed(t, db)
		su.On("Incr", MetricMessagesSent).Return().Once()

		f.Send("ABC123", "ana", "", "data:image/png;base64,xyz", "")
	})
}

func TestHistory(t *testing.T) {
	t.Run("ordered by created_at", func(t *testing.T) {
		db := &database.MockPomochatRepository{}
		defer db.AssertExpectations(t)

		now := time.Now().UTC()
		db.On("GetMessages", "ABC123").Return([]database.Message{
			{Id: 1, RoomId: "ABC123", Sender: "ana", Content: "first", CreatedAt: now},
			{Id: 2, RoomId: "ABC123", Sender: "ben", Content: "second", CreatedAt: now.Add(time.Second)},
		}, nil)

		f, _ := newTestFeed(t, db)
		messages, err := f.History("ABC123")

		assert.NoError(t, err)
		assert.Len(t, messages, 2)
		assert.Equal(t, "ana", messages[0].Sender)
		assert.Equal(t, "ben", messages[1].Sender)
		assert.True(t, messages[0].CreatedAt.Before(messages[1].CreatedAt))
	})

	t.Run("unconfigured store", func(t *testing.T) {
		f, _ := newTestFeed(t, nil)

		_, err := f.History("ABC123")
		assert.ErrorIs(t, err, session.ErrNotConfigured)
	})
}

func TestLocked(t *testing.T) {
	assert.True(t, Locked(types.ModeStudy), "expected chat locked during study")
	assert.False(t, Locked(types.ModeBreak), "expected chat open during break")
}
