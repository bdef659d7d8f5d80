package debate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/podiumlabs/podium/internal/types"
	"github.com/podiumlabs/podium/pkg/Logger"
)

var (
	// ErrMalformedRoster is the configuration error for a roster that does not
	// map exactly one speaker onto every team/role slot.
	ErrMalformedRoster = errors.New("roster must hold exactly one speaker per team/role slot")
	ErrAlreadyStarted  = errors.New("machine already started")
	ErrNotStarted      = errors.New("machine not started")
	ErrBadSnapshot     = errors.New("snapshot references an unknown phase")
)

// NotifyMode tags state-change callbacks so downstream consumers can tell a
// fresh phase/speaker apart from a periodic tick. Only NotifyNewTurn should
// trigger speech generation.
type NotifyMode int

const (
	NotifyNewTurn NotifyMode = iota
	NotifyTick
)

// State is the only mutable record the timer advances. Remaining is
// non-negative and non-increasing while unpaused within a phase.
type State struct {
	Phase          Phase         `json:"phase"`
	Speaker        string        `json:"speaker"`
	PhaseStartedAt time.Time     `json:"phaseStartedAt"`
	Remaining      time.Duration `json:"remaining"`
	Paused         bool          `json:"paused"`
	Ended          bool          `json:"ended"`
}

// Snapshot is the opaque save-state form of a machine.
type Snapshot struct {
	Phase     Phase         `json:"phase"`
	Speaker   string        `json:"speaker"`
	Remaining time.Duration `json:"remaining"`
	Paused    bool          `json:"paused"`
	Ended     bool          `json:"ended"`
	SavedAt   time.Time     `json:"savedAt"`
}

// StateCallback receives every state change plus periodic ticks.
type StateCallback func(st State, mode NotifyMode)

// Machine drives one debate through the fixed phase order. It owns the phase
// timer; it never blocks on external calls.
type Machine struct {
	logger    *Logger.Logger
	durations Durations
	tickEvery time.Duration
	notify    StateCallback

	mu          sync.Mutex
	transitions *fsm.FSM
	roster      []types.Participant
	topic       string
	st          State
	started     bool
	stopCh      chan struct{}
}

// NewMachine builds an idle machine. The callback may be nil; tickEvery <= 0
// defaults to one second.
func NewMachine(logger *Logger.Logger, durations Durations, tickEvery time.Duration, cb StateCallback) *Machine {
	if durations == nil {
		durations = NominalDurations()
	}
	if tickEvery <= 0 {
		tickEvery = time.Second
	}
	return &Machine{
		logger:    logger,
		durations: durations,
		tickEvery: tickEvery,
		notify:    cb,
	}
}

// ValidateRoster checks that every team/role slot has exactly one participant.
func ValidateRoster(roster []types.Participant) error {
	teams := []types.Team{types.TeamPro, types.TeamCon}
	roles := []types.Role{types.RoleFirstSpeaker, types.RoleSecondSpeaker}
	seen := 0
	for _, team := range teams {
		for _, role := range roles {
			n := 0
			for _, p := range roster {
				if p.Team == team && p.Role == role {
					n++
				}
			}
			if n != 1 {
				return fmt.Errorf("%w: %s/%s has %d", ErrMalformedRoster, team, role, n)
			}
			seen++
		}
	}
	if len(roster) != seen {
		return fmt.Errorf("%w: %d extra entries", ErrMalformedRoster, len(roster)-seen)
	}
	return nil
}

// Start validates the roster, initializes state to the first phase and starts
// the phase timer. The callback fires once with NotifyNewTurn for the opening.
func (m *Machine) Start(roster []types.Participant, topic string) error {
	if err := ValidateRoster(roster); err != nil {
		return err
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	first := phaseOrder[0]
	m.roster = roster
	m.topic = topic
	m.transitions = newTransitions(first)
	m.st = State{
		Phase:          first,
		Speaker:        ResolveSpeaker(first, roster),
		PhaseStartedAt: time.Now(),
		Remaining:      m.durations[first],
	}
	m.started = true
	m.stopCh = make(chan struct{})
	st := m.st
	m.mu.Unlock()

	go m.runTimer(m.stopCh)
	m.emit(st, NotifyNewTurn)
	return nil
}

// Restore rebuilds a machine from a saved snapshot and resumes its timer. A
// paused snapshot stays paused until Resume.
func (m *Machine) Restore(roster []types.Participant, topic string, snap Snapshot) error {
	if err := ValidateRoster(roster); err != nil {
		return err
	}
	if !snap.Phase.valid() {
		return ErrBadSnapshot
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.roster = roster
	m.topic = topic
	m.transitions = newTransitions(snap.Phase)
	m.st = State{
		Phase:          snap.Phase,
		Speaker:        snap.Speaker,
		PhaseStartedAt: time.Now(),
		Remaining:      snap.Remaining,
		Paused:         snap.Paused,
		Ended:          snap.Ended,
	}
	m.started = true
	m.stopCh = make(chan struct{})
	st := m.st
	m.mu.Unlock()

	if !st.Ended {
		go m.runTimer(m.stopCh)
	}
	m.emit(st, NotifyNewTurn)
	return nil
}

// State returns a copy of the current debate state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

// Roster returns the validated roster the machine was started with.
func (m *Machine) Roster() []types.Participant {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Participant, len(m.roster))
	copy(out, m.roster)
	return out
}

// Pause freezes the timer without discarding remaining time.
func (m *Machine) Pause() {
	m.mu.Lock()
	if !m.started || m.st.Ended || m.st.Paused {
		m.mu.Unlock()
		return
	}
	m.st.Paused = true
	st := m.st
	m.mu.Unlock()
	m.emit(st, NotifyTick)
}

// Resume unfreezes the timer. Remaining time is taken from the stored value,
// not recomputed from wall-clock elapsed across the pause interval.
func (m *Machine) Resume() {
	m.mu.Lock()
	if !m.started || m.st.Ended || !m.st.Paused {
		m.mu.Unlock()
		return
	}
	m.st.Paused = false
	m.st.PhaseStartedAt = time.Now().Add(m.st.Remaining - m.durations[m.st.Phase])
	st := m.st
	m.mu.Unlock()
	m.emit(st, NotifyTick)
}

// SkipTurn ends the current phase immediately and advances in the fixed order.
func (m *Machine) SkipTurn() {
	m.mu.Lock()
	if !m.started || m.st.Ended {
		m.mu.Unlock()
		return
	}
	st, ok := m.advanceLocked()
	m.mu.Unlock()
	if ok {
		m.emit(st, NotifyNewTurn)
	}
}

// End transitions straight to the terminal phase and stops the timer.
func (m *Machine) End() {
	m.mu.Lock()
	if !m.started || m.st.Ended {
		m.mu.Unlock()
		return
	}
	if err := m.transitions.Event(context.Background(), eventEnd); err != nil {
		m.logger.Warnf("debate machine: end transition: %v", err)
	}
	m.finishLocked()
	st := m.st
	m.mu.Unlock()
	m.emit(st, NotifyNewTurn)
}

// Stop halts the timer goroutine without touching state. Used on disconnect
// teardown where no further callbacks may fire.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.notify = nil
}

// Snapshot captures the machine state for persistence.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Phase:     m.st.Phase,
		Speaker:   m.st.Speaker,
		Remaining: m.st.Remaining,
		Paused:    m.st.Paused,
		Ended:     m.st.Ended,
		SavedAt:   time.Now(),
	}
}

func (m *Machine) runTimer(stop <-chan struct{}) {
	ticker := time.NewTicker(m.tickEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.onTick()
		}
	}
}

func (m *Machine) onTick() {
	m.mu.Lock()
	if !m.started || m.st.Ended || m.st.Paused {
		m.mu.Unlock()
		return
	}
	m.st.Remaining -= m.tickEvery
	if m.st.Remaining > 0 {
		st := m.st
		m.mu.Unlock()
		m.emit(st, NotifyTick)
		return
	}
	m.st.Remaining = 0
	st, ok := m.advanceLocked()
	m.mu.Unlock()
	if ok {
		m.emit(st, NotifyNewTurn)
	}
}

// advanceLocked moves to the next phase in order. Caller holds the lock.
func (m *Machine) advanceLocked() (State, bool) {
	next := m.st.Phase.Next()
	if err := m.transitions.Event(context.Background(), advanceEvent(next)); err != nil {
		m.logger.Errorf("debate machine: advance %s -> %s: %v", m.st.Phase, next, err)
		return State{}, false
	}
	if next.Terminal() {
		m.finishLocked()
		return m.st, true
	}
	m.st.Phase = next
	m.st.Speaker = ResolveSpeaker(next, m.roster)
	m.st.PhaseStartedAt = time.Now()
	m.st.Remaining = m.durations[next]
	return m.st, true
}

// finishLocked marks the terminal state and stops the timer. Caller holds the lock.
func (m *Machine) finishLocked() {
	m.st.Phase = PhaseFinished
	m.st.Speaker = ""
	m.st.Remaining = 0
	m.st.Ended = true
	m.stopLocked()
}

func (m *Machine) stopLocked() {
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
}

func (m *Machine) emit(st State, mode NotifyMode) {
	m.mu.Lock()
	cb := m.notify
	m.mu.Unlock()
	if cb != nil {
		cb(st, mode)
	}
}

const eventEnd = "end"

func advanceEvent(to Phase) string {
	return "advance_to_" + string(to)
}

// newTransitions wires the fixed phase order into an FSM so illegal jumps are
// rejected structurally rather than by ad hoc checks.
func newTransitions(initial Phase) *fsm.FSM {
	events := fsm.Events{}
	nonTerminal := make([]string, 0, len(phaseOrder)-1)
	for i := 0; i+1 < len(phaseOrder); i++ {
		events = append(events, fsm.EventDesc{
			Name: advanceEvent(phaseOrder[i+1]),
			Src:  []string{string(phaseOrder[i])},
			Dst:  string(phaseOrder[i+1]),
		})
		nonTerminal = append(nonTerminal, string(phaseOrder[i]))
	}
	events = append(events, fsm.EventDesc{
		Name: eventEnd,
		Src:  nonTerminal,
		Dst:  string(PhaseFinished),
	})
	return fsm.NewFSM(string(initial), events, fsm.Callbacks{})
}
