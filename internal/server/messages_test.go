package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/npezzotti/pomochat/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestNoErrOK(t *testing.T) {
	msg := NoErrOK(1)
	assert.Equal(t, 1, msg.Id, "expected id to be echoed")
	assert.Equal(t, http.StatusOK, msg.Response.ResponseCode, "expected 200 response")
	assert.Empty(t, msg.Response.Error, "expected no error text")
}

func TestErrResetRejected(t *testing.T) {
	msg := ErrResetRejected(3)
	assert.Equal(t, 3, msg.Id, "expected id to be echoed")
	assert.Equal(t, http.StatusConflict, msg.Response.ResponseCode, "expected 409 response")
	assert.NotEmpty(t, msg.Response.Error, "expected error text")
}

func Test_roomUpdateSerialization(t *testing.T) {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Room: &RoomUpdate{
			RoomId:     "ABC123",
			Name:       "study hall",
			ChatLocked: true,
			RoomState: types.RoomState{
				TimerMode:     types.ModeStudy,
				TimeLeft:      1500,
				IsActive:      false,
				StudyDuration: 25,
				BreakDuration: 5,
			},
		},
	}

	expected := `{"timestamp":"` + msg.Timestamp.Format(time.RFC3339Nano) +
		`","room":{"room_id":"ABC123","name":"study hall","chat_locked":true,` +
		`"timer_mode":"STUDY","time_left":1500,"is_active":false,` +
		`"study_duration":25,"break_duration":5}}`

	bytes, err := json.Marshal(msg)
	assert.NoError(t, err, "expected no error during serialization")
	assert.Equal(t, expected, string(bytes), "expected serialized message to match the wire format")
}

func Test_clientMessageDeserialization(t *testing.T) {
	raw := `{"id":4,"timer":{"op":"durations","study_duration":50,"break_duration":10}}`

	var msg ClientMessage
	assert.NoError(t, json.Unmarshal([]byte(raw), &msg), "expected no error during deserialization")
	assert.Equal(t, 4, msg.Id, "expected id to be parsed")
	assert.Equal(t, OpDurations, msg.Timer.Op, "expected op to be parsed")
	assert.Equal(t, 50, msg.Timer.StudyDuration, "expected study duration to be parsed")
	assert.Nil(t, msg.Publish, "expected no publish payload")
}
