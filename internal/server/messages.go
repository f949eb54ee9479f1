package server

import (
	"net/http"
	"time"

	"github.com/npezzotti/pomochat/internal/types"
)

// Timer command ops accepted from clients.
const (
	OpToggle    = "toggle"
	OpReset     = "reset"
	OpDurations = "durations"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Publish *Publish      `json:"publish,omitempty"`
	Timer   *TimerCommand `json:"timer,omitempty"`
	client  *Client
}

// Publish is a chat message. Delivery happens through the store change
// feed, so the sender sees their own message the same way peers do.
type Publish struct {
	Content  string `json:"content,omitempty"`
	ImageUrl string `json:"image_url,omitempty"`
	AudioUrl string `json:"audio_url,omitempty"`
}

// TimerCommand drives the room's shared countdown. Durations are in
// minutes and only used by the "durations" op.
type TimerCommand struct {
	Op            string `json:"op"`
	StudyDuration int    `json:"study_duration,omitempty"`
	BreakDuration int    `json:"break_duration,omitempty"`
}

type ServerMessage struct {
	BaseMessage
	Response   *Response      `json:"response,omitempty"`
	Room       *RoomUpdate    `json:"room,omitempty"`
	Message    *types.Message `json:"message,omitempty"`
	Chime      *Chime         `json:"chime,omitempty"`
	SkipClient *Client        `json:"-"`
}

// RoomUpdate is the full timer snapshot pushed to clients whenever the
// shared state changes, plus the advisory chat lock.
type RoomUpdate struct {
	RoomId     string `json:"room_id"`
	Name       string `json:"name"`
	ChatLocked bool   `json:"chat_locked"`
	types.RoomState
}

// Chime tells clients to play the phase-completion cue. Best-effort:
// clients that cannot play audio just ignore it.
type Chime struct {
	Next types.TimerMode `json:"next"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

func NoErrOK(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrResetRejected(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusConflict,
			Error:        "cannot reset a running study phase",
		},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
