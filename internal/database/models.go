package database

import "time"

type Room struct {
	Id            string
	Name          string
	Password      string
	StudyDuration int
	BreakDuration int
	IsActive      bool
	TimerMode     string
	TimeLeft      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Message struct {
	Id        int64
	RoomId    string
	Sender    string
	Content   string
	ImageUrl  string
	AudioUrl  string
	CreatedAt time.Time
}

type CreateRoomParams struct {
	Id            string
	Name          string
	Password      string
	StudyDuration int
	BreakDuration int
	TimerMode     string
	TimeLeft      int
}

type CreateMessageParams struct {
	RoomId   string
	Sender   string
	Content  string
	ImageUrl string
	AudioUrl string
}

// RoomStatePatch is a partial update of a room's timer state. Nil fields
// are left untouched by UpdateRoomState, which is what lets concurrent
// participants merge their writes into the same row.
type RoomStatePatch struct {
	TimerMode     *string
	TimeLeft      *int
	IsActive      *bool
	StudyDuration *int
	BreakDuration *int
}

// IsZero reports whether the patch contains no fields.
func (p RoomStatePatch) IsZero() bool {
	return p.TimerMode == nil && p.TimeLeft == nil && p.IsActive == nil &&
		p.StudyDuration == nil && p.BreakDuration == nil
}
