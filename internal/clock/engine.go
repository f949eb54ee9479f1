package clock

import (
	"log"

	"github.com/npezzotti/pomochat/internal/database"
	"github.com/npezzotti/pomochat/internal/types"
)

// Publisher pushes a partial state patch to the shared room record.
// Implementations must not block; publish failures are theirs to log.
type Publisher interface {
	PublishState(patch database.RoomStatePatch)
}

// Cue is the best-effort phase-completion chime. Implementations must
// never fail loudly; the engine ignores them entirely if nil.
type Cue interface {
	PhaseComplete(next types.TimerMode)
}

// Engine is one participant's view of a room's shared countdown. It ticks
// locally at 1 Hz while active, detects phase completion, and publishes
// the transition. Any authoritative snapshot pushed by a peer overwrites
// its state wholesale via Seed.
//
// Engine is not safe for concurrent use: it is owned by a single room
// goroutine that serializes ticks, commands and feed events.
type Engine struct {
	mode          types.TimerMode
	timeLeft      int
	active        bool
	studyDuration int // minutes
	breakDuration int // minutes

	pub Publisher
	cue Cue
	log *log.Logger
}

func NewEngine(state types.RoomState, pub Publisher, cue Cue, logger *log.Logger) *Engine {
	e := &Engine{pub: pub, cue: cue, log: logger}
	e.Seed(state)
	return e
}

// Seed unconditionally replaces the engine's state with an authoritative
// snapshot. Applying the same snapshot twice is a no-op the second time.
func (e *Engine) Seed(state types.RoomState) {
	e.mode = state.TimerMode
	e.timeLeft = state.TimeLeft
	e.active = state.IsActive
	e.studyDuration = state.StudyDuration
	e.breakDuration = state.BreakDuration
}

func (e *Engine) State() types.RoomState {
	return types.RoomState{
		TimerMode:     e.mode,
		TimeLeft:      e.timeLeft,
		IsActive:      e.active,
		StudyDuration: e.studyDuration,
		BreakDuration: e.breakDuration,
	}
}

func (e *Engine) Active() bool {
	return e.active
}

// Tick advances the countdown by one second. It only runs while the
// timer is active with time remaining, and fires the phase transition
// exactly at the tick that reaches zero; the transition itself resets
// time_left to a positive value, so a zero-crossing cannot fire twice.
func (e *Engine) Tick() {
	if !e.active || e.timeLeft <= 0 {
		return
	}

	e.timeLeft--
	if e.timeLeft == 0 {
		e.completePhase()
	}
}

func (e *Engine) completePhase() {
	next := types.ModeBreak
	nextTime := e.breakDuration * 60
	// breaks start on their own; a new study phase waits for someone
	// to press start
	nextActive := true

	if e.mode == types.ModeBreak {
		next = types.ModeStudy
		nextTime = e.studyDuration * 60
		nextActive = false
	}

	e.log.Printf("phase complete: %s -> %s (%ds)", e.mode, next, nextTime)

	e.mode = next
	e.timeLeft = nextTime
	e.active = nextActive

	if e.cue != nil {
		e.cue.PhaseComplete(next)
	}

	e.publish(database.RoomStatePatch{
		TimerMode: strPtr(string(next)),
		TimeLeft:  intPtr(nextTime),
		IsActive:  boolPtr(nextActive),
	})
}

// Toggle starts or pauses the countdown, leaving durations untouched.
func (e *Engine) Toggle() {
	e.active = !e.active
	e.publish(database.RoomStatePatch{
		IsActive: boolPtr(e.active),
		TimeLeft: intPtr(e.timeLeft),
	})
}

// Reset returns the timer to a full, paused study phase. Resetting a
// running study phase is rejected to keep in-progress focus sessions
// honest; the call reports whether it took effect.
func (e *Engine) Reset() bool {
	if e.active && e.mode == types.ModeStudy {
		return false
	}

	e.mode = types.ModeStudy
	e.timeLeft = e.studyDuration * 60
	e.active = false

	e.publish(database.RoomStatePatch{
		TimerMode: strPtr(string(types.ModeStudy)),
		TimeLeft:  intPtr(e.timeLeft),
		IsActive:  boolPtr(false),
	})
	return true
}

// SetDurations overwrites both configured durations, recomputes the
// remaining time for the current phase from its new duration and always
// pauses. Bounds are enforced at the API boundary.
func (e *Engine) SetDurations(studyMin, breakMin int) {
	e.studyDuration = studyMin
	e.breakDuration = breakMin

	if e.mode == types.ModeStudy {
		e.timeLeft = studyMin * 60
	} else {
		e.timeLeft = breakMin * 60
	}
	e.active = false

	e.publish(database.RoomStatePatch{
		StudyDuration: intPtr(studyMin),
		BreakDuration: intPtr(breakMin),
		TimeLeft:      intPtr(e.timeLeft),
		IsActive:      boolPtr(false),
	})
}

func (e *Engine) publish(patch database.RoomStatePatch) {
	if e.pub != nil {
		e.pub.PublishState(patch)
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }
