package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/pomochat/internal/server"
	"github.com/npezzotti/pomochat/internal/session"
)

const (
	minStudyMinutes = 1
	maxStudyMinutes = 60
	minBreakMinutes = 1
	maxBreakMinutes = 30

	maxNameLength   = 64
	maxSenderLength = 32
)

type CreateRoomRequest struct {
	Name          string `json:"name"`
	Sender        string `json:"sender"`
	Password      string `json:"password"`
	StudyDuration int    `json:"study_duration"`
	BreakDuration int    `json:"break_duration"`
}

type JoinRoomRequest struct {
	RoomId   string `json:"room_id"`
	Sender   string `json:"sender"`
	Password string `json:"password"`
}

func (s *PomochatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// healthCheck reports liveness. A server without a store is alive but
// degraded, so it still answers 200 with a distinct body.
func (s *PomochatApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if s.db == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK (no store)"))
		return
	}

	if err := s.db.Ping(); err != nil {
		s.log.Printf("health check: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func validDurations(studyMin, breakMin int) bool {
	return studyMin >= minStudyMinutes && studyMin <= maxStudyMinutes &&
		breakMin >= minBreakMinutes && breakMin <= maxBreakMinutes
}

func (s *PomochatApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Sender = strings.TrimSpace(req.Sender)

	if req.StudyDuration == 0 {
		req.StudyDuration = session.DefaultStudyMinutes
	}
	if req.BreakDuration == 0 {
		req.BreakDuration = session.DefaultBreakMinutes
	}

	if req.Name == "" || len(req.Name) > maxNameLength ||
		req.Sender == "" || len(req.Sender) > maxSenderLength ||
		!validDurations(req.StudyDuration, req.BreakDuration) {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.gw.CreateRoom(req.Name, req.Password, req.StudyDuration, req.BreakDuration)
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, session.ErrNotConfigured):
			errResp = NewUnconfiguredError()
		case errors.Is(err, session.ErrRoomConflict):
			errResp = NewConflictError()
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.issueSession(w, RoomSession{RoomId: room.Id, Sender: req.Sender}); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, room)
}

func (s *PomochatApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	req.Sender = strings.TrimSpace(req.Sender)

	if req.RoomId == "" || req.Sender == "" || len(req.Sender) > maxSenderLength {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.gw.JoinRoom(req.RoomId, req.Password)
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, session.ErrNotConfigured):
			errResp = NewUnconfiguredError()
		case errors.Is(err, session.ErrRoomNotFound):
			errResp = NewNotFoundError()
		case errors.Is(err, session.ErrWrongPassword):
			errResp = NewUnauthorizedError()
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.issueSession(w, RoomSession{RoomId: room.Id, Sender: req.Sender}); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, room)
}

func (s *PomochatApp) getRoom(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, err := s.gw.GetRoom(sess.RoomId)
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, session.ErrNotConfigured):
			errResp = NewUnconfiguredError()
		case errors.Is(err, session.ErrRoomNotFound):
			errResp = NewNotFoundError()
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, room)
}

func (s *PomochatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.feed.History(sess.RoomId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, session.ErrNotConfigured) {
			errResp = NewUnconfiguredError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *PomochatApp) leaveRoom(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createSessionCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

func (s *PomochatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	sess, ok := Session(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(conn, s.cs, sess.RoomId, sess.Sender, s.log)

	s.cs.RegisterClient(client)
	if err := s.cs.Join(client); err != nil {
		s.log.Printf("failed to queue join for client: %v", err)
	}

	go client.Write()
	go client.Read()
}
