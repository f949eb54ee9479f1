package database

import (
	"fmt"
	"strings"
	"time"

	"database/sql"
)

const roomColumns = "id, name, password, study_duration, break_duration, is_active, timer_mode, time_left, created_at, updated_at"

func scanRoom(row *sql.Row) (Room, error) {
	var r Room
	err := row.Scan(
		&r.Id,
		&r.Name,
		&r.Password,
		&r.StudyDuration,
		&r.BreakDuration,
		&r.IsActive,
		&r.TimerMode,
		&r.TimeLeft,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func (db *PgPomochatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	row := db.conn.QueryRow(
		"INSERT INTO rooms (id, name, password, study_duration, break_duration, is_active, timer_mode, time_left, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, false, $6, $7, $8, $8) "+
			"RETURNING "+roomColumns,
		params.Id,
		params.Name,
		params.Password,
		params.StudyDuration,
		params.BreakDuration,
		params.TimerMode,
		params.TimeLeft,
		time.Now().UTC(),
	)

	return scanRoom(row)
}

func (db *PgPomochatRepository) GetRoomById(id string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT "+roomColumns+" FROM rooms WHERE id = $1 LIMIT 1",
		id,
	)

	return scanRoom(row)
}

// UpdateRoomState merges the non-nil fields of patch into the room row.
// The row is replaced wholesale for the fields present, so the last
// writer wins when participants race.
func (db *PgPomochatRepository) UpdateRoomState(roomId string, patch RoomStatePatch) (Room, error) {
	set := []string{"updated_at = $2"}
	args := []any{roomId, time.Now().UTC()}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.TimerMode != nil {
		add("timer_mode", *patch.TimerMode)
	}
	if patch.TimeLeft != nil {
		add("time_left", *patch.TimeLeft)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.StudyDuration != nil {
		add("study_duration", *patch.StudyDuration)
	}
	if patch.BreakDuration != nil {
		add("break_duration", *patch.BreakDuration)
	}

	row := db.conn.QueryRow(
		"UPDATE rooms SET "+strings.Join(set, ", ")+
			" WHERE id = $1 RETURNING "+roomColumns,
		args...,
	)

	return scanRoom(row)
}

func (db *PgPomochatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	row := db.conn.QueryRow(
		"INSERT INTO messages (room_id, sender, content, image_url, audio_url, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) "+
			"RETURNING id, room_id, sender, content, image_url, audio_url, created_at",
		params.RoomId,
		params.Sender,
		params.Content,
		params.ImageUrl,
		params.AudioUrl,
		time.Now().UTC(),
	)

	var m Message
	err := row.Scan(
		&m.Id,
		&m.RoomId,
		&m.Sender,
		&m.Content,
		&m.ImageUrl,
		&m.AudioUrl,
		&m.CreatedAt,
	)

	return m, err
}

func (db *PgPomochatRepository) GetMessage(id int64) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT id, room_id, sender, content, image_url, audio_url, created_at "+
			"FROM messages WHERE id = $1 LIMIT 1",
		id,
	)

	var m Message
	err := row.Scan(
		&m.Id,
		&m.RoomId,
		&m.Sender,
		&m.Content,
		&m.ImageUrl,
		&m.AudioUrl,
		&m.CreatedAt,
	)

	return m, err
}

func (db *PgPomochatRepository) GetMessages(roomId string) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, room_id, sender, content, image_url, audio_url, created_at "+
			"FROM messages WHERE room_id = $1 ORDER BY created_at ASC, id ASC",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.Id,
			&m.RoomId,
			&m.Sender,
			&m.Content,
			&m.ImageUrl,
			&m.AudioUrl,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
