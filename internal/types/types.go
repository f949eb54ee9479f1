package types

import (
	"time"
)

// TimerMode is the current phase of a room's shared timer.
type TimerMode string

const (
	ModeStudy TimerMode = "STUDY"
	ModeBreak TimerMode = "BREAK"
)

// Room is the shared session record every participant reads and writes.
type Room struct {
	Id            string    `json:"id"`
	Name          string    `json:"name"`
	Password      string    `json:"-"`
	StudyDuration int       `json:"study_duration"`
	BreakDuration int       `json:"break_duration"`
	IsActive      bool      `json:"is_active"`
	TimerMode     TimerMode `json:"timer_mode"`
	TimeLeft      int       `json:"time_left"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// Message is an immutable chat entry scoped to a room. At least one of
// Content, ImageUrl or AudioUrl is populated by well-behaved senders.
type Message struct {
	Id        int64     `json:"id"`
	RoomId    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content,omitempty"`
	ImageUrl  string    `json:"image_url,omitempty"`
	AudioUrl  string    `json:"audio_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomState is the timer portion of a Room, pushed to clients on every
// change and used to seed local countdowns.
type RoomState struct {
	TimerMode     TimerMode `json:"timer_mode"`
	TimeLeft      int       `json:"time_left"`
	IsActive      bool      `json:"is_active"`
	StudyDuration int       `json:"study_duration"`
	BreakDuration int       `json:"break_duration"`
}

// StateOf extracts the timer state from a room snapshot.
func StateOf(r Room) RoomState {
	return RoomState{
		TimerMode:     r.TimerMode,
		TimeLeft:      r.TimeLeft,
		IsActive:      r.IsActive,
		StudyDuration: r.StudyDuration,
		BreakDuration: r.BreakDuration,
	}
}
