package server

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/npezzotti/pomochat/internal/database"
	"github.com/npezzotti/pomochat/internal/feed"
	"github.com/npezzotti/pomochat/internal/realtime"
	"github.com/npezzotti/pomochat/internal/stats"
	"github.com/npezzotti/pomochat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestSessionServer(t *testing.T, db database.PomochatRepository, su *stats.MockStatsUpdater) *SessionServer {
	t.Helper()

	su.On("RegisterMetric", mock.Anything).Return()
	su.On("Incr", mock.Anything).Maybe().Return()
	su.On("Decr", mock.Anything).Maybe().Return()

	logger := testutil.TestLogger(t)
	syncer := realtime.NewSyncer(db, nil, su, logger)
	fd := feed.NewFeed(db, su, logger)

	cs, err := NewSessionServer(logger, syncer, fd, su, clockwork.NewFakeClock())
	assert.NoError(t, err, "expected no error creating session server")

	return cs
}

func Test_loadRoom(t *testing.T) {
	t.Run("loads room from store snapshot", func(t *testing.T) {
		db := &database.MockPomochatRepository{}
		defer db.AssertExpectations(t)
		db.On("GetRoomById", "ABC123").Return(database.Room{
			Id:            "ABC123",
			Name:          "finals prep",
			StudyDuration: 25,
			BreakDuration: 5,
			TimerMode:     "STUDY",
			TimeLeft:      1500,
		}, nil)
		db.On("GetMessages", "ABC123").Return([]database.Message{
			{Id: 1, RoomId: "ABC123", Sender: "ana", Content: "hi"},
		}, nil)

		cs := newTestSessionServer(t, db, &stats.MockStatsUpdater{})

		r, err := cs.loadRoom("ABC123")
		assert.NoError(t, err, "expected no error loading room")
		assert.Equal(t, "ABC123", r.id, "expected room id to match")
		assert.Equal(t, "finals prep", r.name, "expected room name to match")
		assert.Len(t, r.history, 1, "expected chat backlog to be seeded")
		assert.Contains(t, cs.rooms, "ABC123", "expected room to be tracked by hub")

		state := r.engine.State()
		assert.Equal(t, 1500, state.TimeLeft, "expected engine seeded from snapshot")
		assert.False(t, state.IsActive, "expected engine paused")

		cs.stopRoom(r)
	})

	t.Run("unknown room", func(t *testing.T) {
		db := &database.MockPomochatRepository{}
		db.On("GetRoomById", "NOPE99").Return(database.Room{}, sql.ErrNoRows)

		cs := newTestSessionServer(t, db, &stats.MockStatsUpdater{})

		_, err := cs.loadRoom("NOPE99")
		assert.Error(t, err, "expected error for unknown room")
		assert.NotContains(t, cs.rooms, "NOPE99", "expected no room tracked on failure")
	})
}

func Test_handleJoin(t *testing.T) {
	db := &database.MockPomochatRepository{}
	db.On("GetRoomById", "ABC123").Return(database.Room{
		Id:            "ABC123",
		Name:          "quiet hours",
		StudyDuration: 25,
		BreakDuration: 5,
		TimerMode:     "STUDY",
		TimeLeft:      1500,
	}, nil)
	db.On("GetMessages", "ABC123").Return([]database.Message{}, nil)

	cs := newTestSessionServer(t, db, &stats.MockStatsUpdater{})

	c := &Client{
		id:     "client-1",
		sender: "ana",
		roomId: "ABC123",
		send:   make(chan *ServerMessage, sendQueueSize),
		log:    testutil.TestLogger(t),
	}

	cs.handleJoin(c)

	r, ok := cs.rooms["ABC123"]
	assert.True(t, ok, "expected room to be loaded on first join")

	// room goroutine processes the queued join and sends the snapshot
	select {
	case msg := <-c.send:
		assert.NotNil(t, msg.Room, "expected snapshot on join")
		assert.Equal(t, "ABC123", msg.Room.RoomId, "expected room id in snapshot")
		assert.Equal(t, 1500, msg.Room.TimeLeft, "expected timer snapshot")
		assert.True(t, msg.Room.ChatLocked, "expected chat locked for paused study")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for join snapshot")
	}

	cs.stopRoom(r)
	delete(cs.rooms, "ABC123")
}

func Test_handleJoin_unconfiguredStore(t *testing.T) {
	// a session cookie can outlive the store configuration, e.g. after a
	// restart without a DSN; the join must degrade, not crash the hub
	cs := newTestSessionServer(t, nil, &stats.MockStatsUpdater{})

	c := &Client{
		id:     "client-1",
		sender: "ana",
		roomId: "ABC123",
		send:   make(chan *ServerMessage, sendQueueSize),
		log:    testutil.TestLogger(t),
	}

	assert.NotPanics(t, func() { cs.handleJoin(c) }, "expected degraded join to fail cleanly")
	assert.NotContains(t, cs.rooms, "ABC123", "expected no room loaded without a store")

	select {
	case msg := <-c.send:
		assert.NotNil(t, msg.Response, "expected an error response")
		assert.Equal(t, 503, msg.Response.ResponseCode, "expected service unavailable for degraded join")
	default:
		t.Error("expected client to be told the join failed")
	}
}

func Test_unloadRoom(t *testing.T) {
	db := &database.MockPomochatRepository{}
	db.On("GetRoomById", "ABC123").Return(database.Room{
		Id: "ABC123", Name: "x", StudyDuration: 25, BreakDuration: 5, TimerMode: "STUDY", TimeLeft: 1500,
	}, nil)
	db.On("GetMessages", "ABC123").Return([]database.Message{}, nil)

	cs := newTestSessionServer(t, db, &stats.MockStatsUpdater{})

	_, err := cs.loadRoom("ABC123")
	assert.NoError(t, err, "expected room to load")

	cs.unloadRoom("ABC123")
	assert.NotContains(t, cs.rooms, "ABC123", "expected room to be removed from hub")

	// unloading an unknown id is a no-op
	cs.unloadRoom("ABC123")
}

func Test_addClient_removeClient(t *testing.T) {
	cs := newTestSessionServer(t, &database.MockPomochatRepository{}, &stats.MockStatsUpdater{})

	c := &Client{id: "client-1"}
	cs.addClient(c)
	assert.Contains(t, cs.clients, c, "expected client to be tracked")

	cs.removeClient(c)
	assert.NotContains(t, cs.clients, c, "expected client to be removed")
}

func Test_Shutdown(t *testing.T) {
	db := &database.MockPomochatRepository{}
	db.On("GetRoomById", "ABC123").Return(database.Room{
		Id: "ABC123", Name: "x", StudyDuration: 25, BreakDuration: 5, TimerMode: "STUDY", TimeLeft: 1500,
	}, nil)
	db.On("GetMessages", "ABC123").Return([]database.Message{}, nil)

	cs := newTestSessionServer(t, db, &stats.MockStatsUpdater{})

	_, err := cs.loadRoom("ABC123")
	assert.NoError(t, err, "expected room to load")

	go cs.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, cs.Shutdown(ctx), "expected clean shutdown")
}
