package debate

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoster() []types.Participant {
	return []types.Participant{
		{ID: uuid.New(), DisplayName: "Ada", IsAI: false, Team: types.TeamPro, Role: types.RoleFirstSpeaker},
		{ID: uuid.New(), DisplayName: "Marcus", IsAI: true, Team: types.TeamPro, Role: types.RoleSecondSpeaker, Persona: "marcus"},
		{ID: uuid.New(), DisplayName: "Elena", IsAI: true, Team: types.TeamCon, Role: types.RoleFirstSpeaker, Persona: "elena"},
		{ID: uuid.New(), DisplayName: "Jordan", IsAI: true, Team: types.TeamCon, Role: types.RoleSecondSpeaker, Persona: "jordan"},
	}
}

func shortDurations(d time.Duration) Durations {
	ds := Durations{}
	for _, p := range PhaseOrder() {
		if !p.Terminal() {
			ds[p] = d
		}
	}
	return ds
}

type recorder struct {
	mu    sync.Mutex
	turns []State
	ticks []State
}

func (r *recorder) cb(st State, mode NotifyMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mode == NotifyNewTurn {
		r.turns = append(r.turns, st)
	} else {
		r.ticks = append(r.ticks, st)
	}
}

func (r *recorder) turnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.turns)
}

func (r *recorder) lastTurn() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turns[len(r.turns)-1]
}

func newTestMachine(t *testing.T, d Durations, tick time.Duration, cb StateCallback) *Machine {
	t.Helper()
	return NewMachine(testLogger(), d, tick, cb)
}

func TestValidateRoster(t *testing.T) {
	assert.NoError(t, ValidateRoster(testRoster()))

	t.Run("missing slot", func(t *testing.T) {
		roster := testRoster()[:3]
		assert.ErrorIs(t, ValidateRoster(roster), ErrMalformedRoster)
	})

	t.Run("duplicate slot", func(t *testing.T) {
		roster := testRoster()
		roster[1].Role = types.RoleFirstSpeaker
		assert.ErrorIs(t, ValidateRoster(roster), ErrMalformedRoster)
	})

	t.Run("empty", func(t *testing.T) {
		assert.ErrorIs(t, ValidateRoster(nil), ErrMalformedRoster)
	})
}

func TestStartRejectsMalformedRoster(t *testing.T) {
	m := newTestMachine(t, shortDurations(time.Minute), time.Second, nil)
	err := m.Start(testRoster()[:2], "school uniforms")
	require.ErrorIs(t, err, ErrMalformedRoster)
	assert.False(t, m.State().Ended)
	assert.Empty(t, m.State().Phase)
}

func TestStartOpensWithProFirstSpeaker(t *testing.T) {
	roster := testRoster()
	rec := &recorder{}
	m := newTestMachine(t, shortDurations(time.Minute), time.Second, rec.cb)
	require.NoError(t, m.Start(roster, "school uniforms"))
	defer m.Stop()

	require.Equal(t, 1, rec.turnCount())
	st := rec.lastTurn()
	assert.Equal(t, PhaseOpeningPro, st.Phase)
	assert.Equal(t, roster[0].ID.String(), st.Speaker)
	assert.Equal(t, time.Minute, st.Remaining)
	assert.False(t, st.Paused)
	assert.False(t, st.Ended)
}

func TestSpeakerResolutionTable(t *testing.T) {
	roster := testRoster()
	byID := func(team types.Team, role types.Role) string {
		return types.FindParticipant(roster, team, role).ID.String()
	}
	cases := map[Phase]string{
		PhaseOpeningPro:      byID(types.TeamPro, types.RoleFirstSpeaker),
		PhaseOpeningCon:      byID(types.TeamCon, types.RoleFirstSpeaker),
		PhaseCrossfireFirst:  SpeakerOpenDialogue,
		PhaseRebuttalPro:     byID(types.TeamPro, types.RoleSecondSpeaker),
		PhaseRebuttalCon:     byID(types.TeamCon, types.RoleSecondSpeaker),
		PhaseCrossfireSecond: SpeakerOpenDialogue,
		PhaseSummaryPro:      byID(types.TeamPro, types.RoleFirstSpeaker),
		PhaseSummaryCon:      byID(types.TeamCon, types.RoleFirstSpeaker),
		PhaseGrandCrossfire:  SpeakerOpenDialogue,
		PhaseFinalFocusPro:   byID(types.TeamPro, types.RoleSecondSpeaker),
		PhaseFinalFocusCon:   byID(types.TeamCon, types.RoleSecondSpeaker),
		PhaseFinished:        "",
	}
	for phase, want := range cases {
		assert.Equal(t, want, ResolveSpeaker(phase, roster), "phase %s", phase)
	}
}

func TestTimerExpiryAdvancesPhase(t *testing.T) {
	roster := testRoster()
	rec := &recorder{}
	m := newTestMachine(t, shortDurations(30*time.Millisecond), 10*time.Millisecond, rec.cb)
	require.NoError(t, m.Start(roster, "school uniforms"))
	defer m.Stop()

	require.Eventually(t, func() bool { return rec.turnCount() >= 2 }, time.Second, 5*time.Millisecond)
	st := rec.lastTurn()
	assert.Equal(t, PhaseOpeningCon, st.Phase)
	assert.Equal(t, roster[2].ID.String(), st.Speaker)
	assert.Equal(t, 30*time.Millisecond, st.Remaining)
}

func TestRemainingNonNegativeAndMonotonic(t *testing.T) {
	rec := &recorder{}
	m := newTestMachine(t, shortDurations(50*time.Millisecond), 10*time.Millisecond, rec.cb)
	require.NoError(t, m.Start(testRoster(), "school uniforms"))
	defer m.Stop()

	require.Eventually(t, func() bool { return rec.turnCount() >= 2 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	prev := 50 * time.Millisecond
	for _, st := range rec.ticks {
		if st.Phase != PhaseOpeningPro {
			break
		}
		assert.GreaterOrEqual(t, st.Remaining, time.Duration(0))
		assert.LessOrEqual(t, st.Remaining, prev)
		prev = st.Remaining
	}
}

func TestPauseResumePreservesRemaining(t *testing.T) {
	m := newTestMachine(t, shortDurations(time.Minute), 10*time.Millisecond, nil)
	require.NoError(t, m.Start(testRoster(), "school uniforms"))
	defer m.Stop()

	m.Pause()
	before := m.State().Remaining
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, m.State().Remaining, "paused timer must not drain")

	m.Resume()
	after := m.State().Remaining
	assert.Equal(t, before, after, "resume must restore stored remaining, not wall clock")
	assert.False(t, m.State().Paused)
}

func TestSkipTurnWalksFullOrder(t *testing.T) {
	rec := &recorder{}
	m := newTestMachine(t, shortDurations(time.Hour), time.Hour, rec.cb)
	require.NoError(t, m.Start(testRoster(), "school uniforms"))
	defer m.Stop()

	want := PhaseOrder()
	for i := 1; i < len(want); i++ {
		m.SkipTurn()
		st := rec.lastTurn()
		assert.Equal(t, want[i], st.Phase, "skip %d", i)
	}
	st := m.State()
	assert.True(t, st.Ended)
	assert.Equal(t, PhaseFinished, st.Phase)
	assert.Empty(t, st.Speaker)

	// absorbing: further skips are no-ops
	m.SkipTurn()
	assert.Equal(t, PhaseFinished, m.State().Phase)
}

func TestSkipFromCrossfire(t *testing.T) {
	m := newTestMachine(t, shortDurations(time.Hour), time.Hour, nil)
	require.NoError(t, m.Start(testRoster(), "school uniforms"))
	defer m.Stop()

	m.SkipTurn() // opening_con
	m.SkipTurn() // crossfire_first
	require.Equal(t, PhaseCrossfireFirst, m.State().Phase)
	require.Equal(t, SpeakerOpenDialogue, m.State().Speaker)

	m.SkipTurn()
	assert.Equal(t, PhaseRebuttalPro, m.State().Phase)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	roster := testRoster()
	m := newTestMachine(t, shortDurations(time.Minute), time.Hour, nil)
	require.NoError(t, m.Start(roster, "school uniforms"))
	m.SkipTurn()
	m.SkipTurn()
	m.Pause()
	snap := m.Snapshot()
	m.Stop()

	restored := newTestMachine(t, shortDurations(time.Minute), time.Hour, nil)
	require.NoError(t, restored.Restore(roster, "school uniforms", snap))
	defer restored.Stop()

	st := restored.State()
	assert.Equal(t, snap.Phase, st.Phase)
	assert.Equal(t, snap.Speaker, st.Speaker)
	assert.Equal(t, snap.Remaining, st.Remaining)
	assert.Equal(t, snap.Paused, st.Paused)
	assert.Equal(t, snap.Ended, st.Ended)
}

func TestRestoreRejectsUnknownPhase(t *testing.T) {
	m := newTestMachine(t, shortDurations(time.Minute), time.Hour, nil)
	err := m.Restore(testRoster(), "school uniforms", Snapshot{Phase: "intermission"})
	assert.ErrorIs(t, err, ErrBadSnapshot)
}

func TestEndStopsTimerAndMarksEnded(t *testing.T) {
	rec := &recorder{}
	m := newTestMachine(t, shortDurations(time.Minute), 10*time.Millisecond, rec.cb)
	require.NoError(t, m.Start(testRoster(), "school uniforms"))

	m.End()
	st := m.State()
	assert.True(t, st.Ended)
	assert.Equal(t, PhaseFinished, st.Phase)
	assert.Equal(t, time.Duration(0), st.Remaining)

	turns := rec.turnCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, turns, rec.turnCount(), "no callbacks after end")

	// idempotent
	m.End()
	assert.Equal(t, PhaseFinished, m.State().Phase)
}

func TestStopSilencesCallbacks(t *testing.T) {
	rec := &recorder{}
	m := newTestMachine(t, shortDurations(20*time.Millisecond), 5*time.Millisecond, rec.cb)
	require.NoError(t, m.Start(testRoster(), "school uniforms"))

	m.Stop()
	turns := rec.turnCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, turns, rec.turnCount())
}
