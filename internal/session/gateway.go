package session

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"database/sql"

	"github.com/jaevor/go-nanoid"
	"github.com/lib/pq"
	"github.com/npezzotti/pomochat/internal/database"
	"github.com/npezzotti/pomochat/internal/types"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotConfigured is returned for every operation while the store
	// is absent; callers surface it as a distinct degraded condition,
	// not a generic failure.
	ErrNotConfigured = errors.New("store is not configured")
	ErrRoomNotFound  = errors.New("room not found")
	ErrWrongPassword = errors.New("wrong room password")
	ErrRoomConflict  = errors.New("room id already exists")
)

const (
	DefaultStudyMinutes = 25
	DefaultBreakMinutes = 5

	// Room ids are short, uppercase and alphanumeric so they can be
	// read aloud and typed in any case. Collisions across 36^6 ids are
	// accepted as negligible and not actively guarded; the insert
	// surfaces one as ErrRoomConflict if it ever happens.
	roomIdAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomIdLength   = 6

	uniqueViolation = "23505"
)

// Gateway creates and resolves rooms. A nil repository puts it in
// degraded mode where every operation reports ErrNotConfigured.
type Gateway struct {
	db        database.PomochatRepository
	log       *log.Logger
	newRoomId func() string
}

func NewGateway(db database.PomochatRepository, logger *log.Logger) (*Gateway, error) {
	gen, err := nanoid.CustomASCII(roomIdAlphabet, roomIdLength)
	if err != nil {
		return nil, fmt.Errorf("room id generator: %w", err)
	}

	return &Gateway{
		db:        db,
		log:       logger,
		newRoomId: gen,
	}, nil
}

// CreateRoom writes the initial room record: a full, paused study phase.
// A non-empty password is stored as a bcrypt hash.
func (g *Gateway) CreateRoom(name, password string, studyMin, breakMin int) (types.Room, error) {
	if g.db == nil {
		return types.Room{}, ErrNotConfigured
	}

	storedPassword := ""
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return types.Room{}, fmt.Errorf("hash password: %w", err)
		}
		storedPassword = string(hash)
	}

	params := database.CreateRoomParams{
		Id:            g.newRoomId(),
		Name:          name,
		Password:      storedPassword,
		StudyDuration: studyMin,
		BreakDuration: breakMin,
		TimerMode:     string(types.ModeStudy),
		TimeLeft:      studyMin * 60,
	}

	room, err := g.db.CreateRoom(params)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return types.Room{}, ErrRoomConflict
		}
		return types.Room{}, fmt.Errorf("create room: %w", err)
	}

	g.log.Printf("created room %q (%s)", room.Name, room.Id)
	return toRoom(room), nil
}

// JoinRoom resolves a room by id, case-insensitively, and checks the
// password when one is set. The returned snapshot seeds the caller's
// local state.
func (g *Gateway) JoinRoom(id, password string) (types.Room, error) {
	if g.db == nil {
		return types.Room{}, ErrNotConfigured
	}

	id = strings.ToUpper(strings.TrimSpace(id))

	room, err := g.db.GetRoomById(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Room{}, ErrRoomNotFound
		}
		return types.Room{}, fmt.Errorf("get room: %w", err)
	}

	if room.Password != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(room.Password), []byte(password)); err != nil {
			return types.Room{}, ErrWrongPassword
		}
	}

	return toRoom(room), nil
}

// GetRoom fetches a room snapshot without a password check, for callers
// holding an already established session.
func (g *Gateway) GetRoom(id string) (types.Room, error) {
	if g.db == nil {
		return types.Room{}, ErrNotConfigured
	}

	room, err := g.db.GetRoomById(strings.ToUpper(strings.TrimSpace(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Room{}, ErrRoomNotFound
		}
		return types.Room{}, fmt.Errorf("get room: %w", err)
	}

	return toRoom(room), nil
}

func toRoom(r database.Room) types.Room {
	return types.Room{
		Id:            r.Id,
		Name:          r.Name,
		Password:      r.Password,
		StudyDuration: r.StudyDuration,
		BreakDuration: r.BreakDuration,
		IsActive:      r.IsActive,
		TimerMode:     types.TimerMode(r.TimerMode),
		TimeLeft:      r.TimeLeft,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
