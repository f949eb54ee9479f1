package clock

import (
	"testing"

	"github.com/npezzotti/pomochat/internal/database"
	"github.com/npezzotti/pomochat/internal/testutil"
	"github.com/npezzotti/pomochat/internal/types"
	"github.com/stretchr/testify/assert"
)

type recordingPublisher struct {
	patches []database.RoomStatePatch
}

func (p *recordingPublisher) PublishState(patch database.RoomStatePatch) {
	p.patches = append(p.patches, patch)
}

type recordingCue struct {
	fired []types.TimerMode
}

func (c *recordingCue) PhaseComplete(next types.TimerMode) {
	c.fired = append(c.fired, next)
}

func defaultState() types.RoomState {
	return types.RoomState{
		TimerMode:     types.ModeStudy,
		TimeLeft:      25 * 60,
		IsActive:      false,
		StudyDuration: 25,
		BreakDuration: 5,
	}
}

func TestTick_decrements(t *testing.T) {
	pub := &recordingPublisher{}
	state := defaultState()
	state.IsActive = true
	e := NewEngine(state, pub, nil, testutil.TestLogger(t))

	e.Tick()

	got := e.State()
	assert.Equal(t, 25*60-1, got.TimeLeft, "expected one tick to decrement time_left by 1")
	assert.Equal(t, types.ModeStudy, got.TimerMode, "expected mode unchanged")
	assert.True(t, got.IsActive, "expected active unchanged")
	assert.Empty(t, pub.patches, "expected no publish on a plain tick")
}

func TestTick_inactive(t *testing.T) {
	e := NewEngine(defaultState(), &recordingPublisher{}, nil, testutil.TestLogger(t))

	e.Tick()

	assert.Equal(t, 25*60, e.State().TimeLeft, "expected no decrement while paused")
}

func TestTick_studyCompletion(t *testing.T) {
	pub := &recordingPublisher{}
	cue := &recordingCue{}
	e := NewEngine(types.RoomState{
		TimerMode:     types.ModeStudy,
		TimeLeft:      1,
		IsActive:      true,
		StudyDuration: 25,
		BreakDuration: 5,
	}, pub, cue, testutil.TestLogger(t))

	e.Tick()

	got := e.State()
	assert.Equal(t, types.ModeBreak, got.TimerMode, "expected transition to BREAK")
	assert.Equal(t, 5*60, got.TimeLeft, "expected time_left reset to break duration")
	assert.True(t, got.IsActive, "expected break to auto-start")

	assert.Equal(t, []types.TimerMode{types.ModeBreak}, cue.fired, "expected exactly one completion cue")
	assert.Len(t, pub.patches, 1, "expected exactly one published transition")
	patch := pub.patches[0]
	assert.Equal(t, "BREAK", *patch.TimerMode)
	assert.Equal(t, 5*60, *patch.TimeLeft)
	assert.True(t, *patch.IsActive)
	assert.Nil(t, patch.StudyDuration, "expected durations untouched by a transition")
}

func TestTick_breakCompletion(t *testing.T) {
	pub := &recordingPublisher{}
	e := NewEngine(types.RoomState{
		TimerMode:     types.ModeBreak,
		TimeLeft:      1,
		IsActive:      true,
		StudyDuration: 25,
		BreakDuration: 5,
	}, pub, nil, testutil.TestLogger(t))

	e.Tick()

	got := e.State()
	assert.Equal(t, types.ModeStudy, got.TimerMode, "expected transition to STUDY")
	assert.Equal(t, 25*60, got.TimeLeft, "expected time_left reset to study duration")
	assert.False(t, got.IsActive, "expected study phase to wait for a manual start")

	assert.Len(t, pub.patches, 1, "expected exactly one published transition")
	assert.False(t, *pub.patches[0].IsActive)
}

func TestToggle(t *testing.T) {
	pub := &recordingPublisher{}
	state := defaultState()
	state.TimeLeft = 900
	e := NewEngine(state, pub, nil, testutil.TestLogger(t))

	e.Toggle()
	assert.True(t, e.Active(), "expected toggle to start the timer")

	e.Toggle()
	assert.False(t, e.Active(), "expected second toggle to pause")

	assert.Len(t, pub.patches, 2, "expected a publish per toggle")
	assert.True(t, *pub.patches[0].IsActive)
	assert.Equal(t, 900, *pub.patches[0].TimeLeft, "expected remaining time published unchanged")
	assert.Nil(t, pub.patches[0].TimerMode, "expected toggle to leave the mode out of the patch")
}

func TestReset(t *testing.T) {
	tcases := []struct {
		name     string
		mode     types.TimerMode
		active   bool
		accepted bool
	}{
		{name: "running study is rejected", mode: types.ModeStudy, active: true, accepted: false},
		{name: "paused study", mode: types.ModeStudy, active: false, accepted: true},
		{name: "running break", mode: types.ModeBreak, active: true, accepted: true},
		{name: "paused break", mode: types.ModeBreak, active: false, accepted: true},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			e := NewEngine(types.RoomState{
				TimerMode:     tc.mode,
				TimeLeft:      42,
				IsActive:      tc.active,
				StudyDuration: 25,
				BreakDuration: 5,
			}, pub, nil, testutil.TestLogger(t))

			ok := e.Reset()
			assert.Equal(t, tc.accepted, ok, "expected reset acceptance to match")

			got := e.State()
			if !tc.accepted {
				assert.Equal(t, 42, got.TimeLeft, "expected rejected reset to change nothing")
				assert.Empty(t, pub.patches, "expected rejected reset not to publish")
				return
			}

			assert.Equal(t, types.ModeStudy, got.TimerMode)
			assert.Equal(t, 25*60, got.TimeLeft)
			assert.False(t, got.IsActive)
			assert.Len(t, pub.patches, 1, "expected one published reset")
		})
	}
}

func TestSetDurations(t *testing.T) {
	tcases := []struct {
		name         string
		mode         types.TimerMode
		study, brk   int
		wantTimeLeft int
	}{
		{name: "study phase uses new study duration", mode: types.ModeStudy, study: 50, brk: 10, wantTimeLeft: 50 * 60},
		{name: "break phase uses new break duration", mode: types.ModeBreak, study: 50, brk: 10, wantTimeLeft: 10 * 60},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			e := NewEngine(types.RoomState{
				TimerMode:     tc.mode,
				TimeLeft:      1,
				IsActive:      true,
				StudyDuration: 25,
				BreakDuration: 5,
			}, pub, nil, testutil.TestLogger(t))

			e.SetDurations(tc.study, tc.brk)

			got := e.State()
			assert.Equal(t, tc.wantTimeLeft, got.TimeLeft, "expected time_left recomputed from the current phase")
			assert.False(t, got.IsActive, "expected duration change to always pause")
			assert.Equal(t, tc.study, got.StudyDuration)
			assert.Equal(t, tc.brk, got.BreakDuration)

			assert.Len(t, pub.patches, 1)
			patch := pub.patches[0]
			assert.Equal(t, tc.study, *patch.StudyDuration)
			assert.Equal(t, tc.brk, *patch.BreakDuration)
			assert.Equal(t, tc.wantTimeLeft, *patch.TimeLeft)
			assert.False(t, *patch.IsActive)
		})
	}
}

// A full study phase: toggle on, count 25 minutes down and land in an
// auto-started break, with the transition published exactly once.
func TestFullStudyCountdown(t *testing.T) {
	pub := &recordingPublisher{}
	cue := &recordingCue{}
	e := NewEngine(defaultState(), pub, cue, testutil.TestLogger(t))

	e.Toggle()
	for i := 0; i < 25*60; i++ {
		e.Tick()
	}

	got := e.State()
	assert.Equal(t, types.ModeBreak, got.TimerMode)
	assert.Equal(t, 5*60, got.TimeLeft)
	assert.True(t, got.IsActive)

	assert.Len(t, cue.fired, 1, "expected the completion cue to fire exactly once")
	// one toggle publish plus one transition publish
	assert.Len(t, pub.patches, 2)
}

func TestSeed_idempotent(t *testing.T) {
	e := NewEngine(defaultState(), &recordingPublisher{}, nil, testutil.TestLogger(t))

	snapshot := types.RoomState{
		TimerMode:     types.ModeBreak,
		TimeLeft:      120,
		IsActive:      true,
		StudyDuration: 30,
		BreakDuration: 10,
	}

	e.Seed(snapshot)
	first := e.State()
	e.Seed(snapshot)

	assert.Equal(t, first, e.State(), "expected reapplying a snapshot to change nothing")
	assert.Equal(t, snapshot, e.State(), "expected state replaced wholesale by the snapshot")
}
