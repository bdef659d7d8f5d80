package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/analysis"
	"github.com/podiumlabs/podium/internal/crossfire"
	"github.com/podiumlabs/podium/internal/debate"
	"github.com/podiumlabs/podium/internal/recovery"
	"github.com/podiumlabs/podium/internal/speech"
	"github.com/podiumlabs/podium/internal/types"
	"github.com/podiumlabs/podium/internal/voice"
	"github.com/podiumlabs/podium/pkg/Logger"
)

var (
	ErrNotYourTurn    = errors.New("utterance rejected: not the human's turn")
	ErrSessionClosed  = errors.New("session is closed")
	ErrUnknownDebate  = errors.New("no saved debate with that id")
	ErrDebateLive     = errors.New("debate is already live on another connection")
	ErrDebateNotEnded = errors.New("debate still in progress")
)

// Config holds the per-deployment orchestration knobs.
type Config struct {
	Durations  debate.Durations
	TickEvery  time.Duration
	Difficulty speech.Difficulty
}

// Deps are the collaborators a session drives. All are shared across sessions
// except Dispatcher, which belongs to one client connection.
type Deps struct {
	Logger      *Logger.Logger
	Coordinator *recovery.Coordinator
	Generator   *speech.Generator
	Voice       *voice.Service
	Crossfire   *crossfire.Manager
	Judge       *analysis.Judge
	Store       types.DebateStore
	Blobs       types.BlobStore
	Dispatcher  Dispatcher
}

// Session is the per-debate orchestration loop: it reacts to machine state
// changes, scripts and voices AI turns, runs crossfire segments, and persists
// progress. One session per connected client; the session is the sole mutator
// of its debate record.
type Session struct {
	ID      uuid.UUID
	ownerID uuid.UUID

	deps Deps
	cfg  Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	machine *debate.Machine

	mu        sync.Mutex
	topic     string
	speeches  []types.Speech
	createdAt time.Time
	closed    bool
}

func newSession(id, ownerID uuid.UUID, deps Deps, cfg Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		ownerID:   ownerID,
		deps:      deps,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		createdAt: time.Now(),
	}
	s.machine = debate.NewMachine(deps.Logger, cfg.Durations, cfg.TickEvery, s.onStateChange)
	return s
}

// Start validates the roster, persists the new debate record and kicks off
// the phase timer. A persistence failure is reported but does not stop the
// debate from running.
func (s *Session) Start(ctx context.Context, topic string, roster []types.Participant) error {
	if err := debate.ValidateRoster(roster); err != nil {
		return err
	}

	s.mu.Lock()
	s.topic = topic
	s.mu.Unlock()

	record := s.buildRecord(topic, roster, types.StatusActive, nil)
	if err := s.deps.Coordinator.Execute(ctx, s.ID, recovery.CategoryPersistence,
		func(ctx context.Context) error {
			return s.deps.Store.CreateSession(ctx, record)
		}); err != nil {
		s.deps.Logger.Errorf("session %s: create record: %v", s.ID, err)
	}

	return s.machine.Start(roster, topic)
}

// restore rebuilds the session from a saved record. Used by Registry.Load.
func (s *Session) restore(rec *types.DebateSession) error {
	var snap debate.Snapshot
	if len(rec.StateSnapshot) > 0 {
		if err := json.Unmarshal(rec.StateSnapshot, &snap); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
	} else {
		snap = debate.Snapshot{Phase: debate.PhaseOrder()[0], Paused: true}
		snap.Speaker = debate.ResolveSpeaker(snap.Phase, rec.Roster)
		snap.Remaining = s.cfg.Durations[snap.Phase]
	}

	s.mu.Lock()
	s.topic = rec.Topic
	s.createdAt = rec.CreatedAt
	s.mu.Unlock()

	return s.machine.Restore(rec.Roster, rec.Topic, snap)
}

// State returns the live debate state.
func (s *Session) State() debate.State { return s.machine.State() }

func (s *Session) Pause()  { s.machine.Pause() }
func (s *Session) Resume() { s.machine.Resume() }

// SkipTurn advances to the next phase immediately.
func (s *Session) SkipTurn() { s.machine.SkipTurn() }

// EndDebate jumps straight to the terminal phase; analysis follows.
func (s *Session) EndDebate() { s.machine.End() }

// SubmitUtterance records a human speech for the current turn, with an
// optional recorded-audio blob. Accepted only when it is the human's turn or
// a crossfire segment is open.
func (s *Session) SubmitUtterance(ctx context.Context, text string, audio []byte) error {
	st := s.machine.State()
	if st.Ended {
		return ErrSessionClosed
	}
	human := types.HumanParticipant(s.machine.Roster())
	if human == nil {
		return ErrNotYourTurn
	}
	if st.Speaker != human.ID.String() && !st.Phase.IsCrossfire() {
		return ErrNotYourTurn
	}

	speechID := uuid.New()
	audioRef := s.storeHumanAudio(ctx, speechID, audio)
	s.recordSpeechWithID(ctx, speechID, st.Phase, human.ID, human.DisplayName, text, audioRef)
	s.dispatch(SpeechReady{Phase: st.Phase, Speaker: human.DisplayName, Text: text})
	return nil
}

// storeHumanAudio persists a recorded human utterance and returns its blob
// key, empty when there is no audio or the store is unavailable.
func (s *Session) storeHumanAudio(ctx context.Context, speechID uuid.UUID, audio []byte) string {
	if len(audio) == 0 || s.deps.Blobs == nil {
		return ""
	}
	key := audioKey(s.ID, speechID)
	if err := s.deps.Coordinator.Try(ctx, s.ID, recovery.CategoryPersistence,
		func(ctx context.Context) error {
			return s.deps.Blobs.Put(ctx, key, audio)
		}); err != nil {
		s.deps.Logger.Warnf("session %s: human audio blob %s not stored: %v", s.ID, key, err)
		return ""
	}
	return key
}

// ForwardAudio pushes a human microphone frame into the live crossfire, if
// one is open. Frames outside crossfire are dropped.
func (s *Session) ForwardAudio(frame []byte) {
	s.deps.Crossfire.ForwardAudio(s.ID, frame)
}

// Save snapshots the machine and persists the full debate record. The client
// always gets a SaveAck, positive or not.
func (s *Session) Save(ctx context.Context) {
	snap := s.machine.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		s.dispatch(SaveAck{OK: false, Reason: "snapshot encode failed"})
		return
	}

	rec := s.buildRecord(s.Topic(), s.machine.Roster(), s.statusNow(), data)
	rec.SavedAt = snap.SavedAt

	err = s.deps.Coordinator.Execute(ctx, s.ID, recovery.CategoryPersistence,
		func(ctx context.Context) error {
			return s.deps.Store.UpdateSession(ctx, rec)
		})
	if err != nil {
		s.dispatch(SaveAck{OK: false, Reason: "storage unavailable"})
		return
	}
	s.dispatch(SaveAck{OK: true, SavedAt: snap.SavedAt})
}

// Topic returns the debate topic.
func (s *Session) Topic() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

// Close tears the session down synchronously: timer stopped, crossfire
// closed, in-flight pipelines cancelled and drained, retry counters dropped.
// No events reach the dispatcher after Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.machine.Stop()
	s.deps.Crossfire.End(s.ID)
	s.cancel()
	s.wg.Wait()
	s.deps.Coordinator.CleanupSession(s.ID)
}

// onStateChange is the machine callback. Ticks fan straight out; new turns
// spawn the work the phase calls for.
func (s *Session) onStateChange(st debate.State, mode debate.NotifyMode) {
	// The machine tracks speakers by participant id; clients see display names.
	roster := s.machine.Roster()
	label := speakerLabel(roster, st.Speaker)

	if mode == debate.NotifyTick {
		s.dispatch(TimerTick{Phase: st.Phase, Speaker: label, Remaining: st.Remaining, Paused: st.Paused})
		return
	}

	s.dispatch(PhaseChanged{Phase: st.Phase, Speaker: label, Remaining: st.Remaining, Ended: st.Ended})

	// A turn boundary always closes whatever crossfire was running.
	if s.deps.Crossfire.IsActive(s.ID) && !st.Phase.IsCrossfire() {
		s.deps.Crossfire.End(s.ID)
	}

	switch {
	case st.Ended:
		s.spawn(func() { s.finishDebate(st) })
	case st.Phase.IsCrossfire():
		phase := st.Phase
		s.spawn(func() { s.startCrossfire(phase) })
	default:
		speaker := types.FindParticipantByID(roster, st.Speaker)
		if speaker != nil && speaker.IsAI {
			// Stamp phase and speaker now; everything the pipeline emits is
			// tagged with them even if the debate has moved on by the time
			// the audio lands.
			turn := *speaker
			phase := st.Phase
			s.spawn(func() { s.speakTurn(phase, turn) })
		}
	}
}

func (s *Session) spawn(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// speakTurn runs the AI speech pipeline for one turn: script, transcript,
// then audio. Generation degradation and synthesis failure each soften to a
// notice; the phase timer never waits on either.
func (s *Session) speakTurn(phase debate.Phase, speaker types.Participant) {
	tail, opponentLast := s.promptContext(speaker.Team)

	res := s.deps.Generator.Generate(s.ctx, speech.Request{
		SessionID:      s.ID,
		Topic:          s.Topic(),
		Speaker:        speaker,
		Phase:          phase,
		TranscriptTail: tail,
		OpponentLast:   opponentLast,
		Difficulty:     s.cfg.Difficulty,
	})
	if s.ctx.Err() != nil {
		return
	}

	s.dispatch(SpeechReady{Phase: phase, Speaker: speaker.DisplayName, Text: res.Text, Degraded: res.FellBack})

	speechID := uuid.New()
	audioRef := s.deliverAudio(phase, speaker.DisplayName, speechID, res)
	s.recordSpeechWithID(s.ctx, speechID, phase, speaker.ID, speaker.DisplayName, res.Text, audioRef)
}

// deliverAudio voices the scripted text and returns the blob key the audio
// was stored under, empty when the turn degraded to text-only.
func (s *Session) deliverAudio(phase debate.Phase, speakerName string, speechID uuid.UUID, res speech.Result) string {
	var (
		audioRef string
		payload  []byte
	)

	sink := voice.Sink{
		OnPayload: func(audio []byte) {
			payload = audio
			s.dispatch(AudioReady{Phase: phase, Speaker: speakerName, Audio: audio})
		},
		OnChunk: func(seq int, audio []byte) {
			payload = append(payload, audio...)
			s.dispatch(AudioChunk{Phase: phase, Speaker: speakerName, Seq: seq, Audio: audio})
		},
		OnStreamEnd: func() {
			s.dispatch(AudioStreamEnded{Phase: phase, Speaker: speakerName})
		},
	}

	err := s.deps.Voice.Deliver(s.ctx, voice.Utterance{
		SessionID: s.ID,
		Text:      res.Text,
		VoiceID:   res.VoiceID,
	}, sink)
	if err != nil {
		s.deps.Logger.Warnf("session %s: %s audio degraded to text-only: %v", s.ID, phase, err)
	}

	if len(payload) > 0 && s.deps.Blobs != nil {
		key := audioKey(s.ID, speechID)
		if putErr := s.deps.Coordinator.Try(s.ctx, s.ID, recovery.CategoryPersistence,
			func(ctx context.Context) error {
				return s.deps.Blobs.Put(ctx, key, payload)
			}); putErr != nil {
			s.deps.Logger.Warnf("session %s: audio blob %s not stored: %v", s.ID, key, putErr)
		} else {
			audioRef = key
		}
	}
	return audioRef
}

// startCrossfire opens the live dialogue segment. Failure softens to a
// notice; the phase timer runs the segment out regardless.
func (s *Session) startCrossfire(phase debate.Phase) {
	cb := crossfire.Callbacks{
		OnTranscript: func(speaker, text string) {
			s.dispatch(CrossfireTranscript{Phase: phase, Speaker: speaker, Text: text})
			s.recordSpeech(s.ctx, phase, uuid.Nil, speaker, text, "")
		},
		OnAudio: func(speaker string, audio []byte) {
			s.dispatch(CrossfireAudio{Phase: phase, Speaker: speaker, Audio: audio})
		},
		OnClosed: func() {
			s.dispatch(CrossfireEnded{Phase: phase})
		},
	}

	err := s.deps.Crossfire.Initialize(s.ctx, s.ID, s.Topic(), s.machine.Roster(), cb)
	if err != nil {
		s.deps.Logger.Warnf("session %s: %s runs without live dialogue: %v", s.ID, phase, err)
		return
	}
	s.dispatch(CrossfireStarted{Phase: phase})
}

// finishDebate persists the completed record and runs post-debate analysis.
func (s *Session) finishDebate(st debate.State) {
	roster := s.machine.Roster()
	rec := s.buildRecord(s.Topic(), roster, types.StatusCompleted, nil)
	if err := s.deps.Coordinator.Execute(s.ctx, s.ID, recovery.CategoryPersistence,
		func(ctx context.Context) error {
			return s.deps.Store.UpdateSession(ctx, rec)
		}); err != nil {
		s.deps.Logger.Errorf("session %s: completed record: %v", s.ID, err)
	}

	if s.deps.Judge == nil {
		return
	}
	userTeam := types.TeamPro
	if human := types.HumanParticipant(roster); human != nil {
		userTeam = human.Team
	}

	s.mu.Lock()
	speeches := make([]types.Speech, len(s.speeches))
	copy(speeches, s.speeches)
	s.mu.Unlock()

	result, err := s.deps.Judge.Evaluate(s.ctx, s.ID, s.Topic(), speeches, userTeam)
	if err != nil {
		s.deps.Logger.Errorf("session %s: analysis: %v", s.ID, err)
		return
	}
	s.dispatch(AnalysisReady{Result: *result})

	rec.Analysis = result
	if err := s.deps.Store.UpdateSession(s.ctx, rec); err != nil {
		s.deps.Logger.Warnf("session %s: analysis not persisted: %v", s.ID, err)
	}
}

func (s *Session) recordSpeech(ctx context.Context, phase debate.Phase, speakerID uuid.UUID, speakerName, text, audioRef string) {
	s.recordSpeechWithID(ctx, uuid.New(), phase, speakerID, speakerName, text, audioRef)
}

func (s *Session) recordSpeechWithID(ctx context.Context, id uuid.UUID, phase debate.Phase, speakerID uuid.UUID, speakerName, text, audioRef string) {
	sp := types.Speech{
		ID:        id,
		SessionID: s.ID,
		SpeakerID: speakerID,
		Speaker:   speakerName,
		Phase:     string(phase),
		Text:      text,
		AudioRef:  audioRef,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.speeches = append(s.speeches, sp)
	s.mu.Unlock()

	if err := s.deps.Coordinator.Execute(ctx, s.ID, recovery.CategoryPersistence,
		func(ctx context.Context) error {
			return s.deps.Store.AppendSpeech(ctx, sp)
		}); err != nil {
		s.deps.Logger.Warnf("session %s: speech %s kept in memory only: %v", s.ID, sp.ID, err)
	}
}

// promptContext returns the recent transcript and the opposing team's last
// speech, the two pieces of grounding every generated turn gets.
func (s *Session) promptContext(team types.Team) (tail, opponentLast string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const tailSize = 3
	start := len(s.speeches) - tailSize
	if start < 0 {
		start = 0
	}
	var lines []string
	for _, sp := range s.speeches[start:] {
		lines = append(lines, fmt.Sprintf("%s: %s", sp.Speaker, sp.Text))
	}
	tail = strings.Join(lines, "\n")

	roster := s.machine.Roster()
	for i := len(s.speeches) - 1; i >= 0; i-- {
		sp := s.speeches[i]
		p := types.FindSpeaker(roster, sp.Speaker)
		if p != nil && p.Team != team {
			opponentLast = sp.Text
			break
		}
	}
	return tail, opponentLast
}

func (s *Session) buildRecord(topic string, roster []types.Participant, status types.SessionStatus, snapshot []byte) types.DebateSession {
	s.mu.Lock()
	var lines []string
	for _, sp := range s.speeches {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", sp.Phase, sp.Speaker, sp.Text))
	}
	created := s.createdAt
	s.mu.Unlock()

	return types.DebateSession{
		ID:            s.ID,
		OwnerID:       s.ownerID,
		Topic:         topic,
		Roster:        roster,
		Status:        status,
		Transcript:    strings.Join(lines, "\n"),
		StateSnapshot: snapshot,
		CreatedAt:     created,
		SavedAt:       time.Now(),
	}
}

func (s *Session) statusNow() types.SessionStatus {
	st := s.machine.State()
	switch {
	case st.Ended:
		return types.StatusCompleted
	case st.Paused:
		return types.StatusPaused
	default:
		return types.StatusActive
	}
}

func (s *Session) dispatch(ev Event) {
	s.mu.Lock()
	closed := s.closed
	d := s.deps.Dispatcher
	s.mu.Unlock()
	if closed || d == nil {
		return
	}
	d.Dispatch(s.ID, ev)
}

func audioKey(sessionID, speechID uuid.UUID) string {
	return fmt.Sprintf("audio:%s:%s", sessionID, speechID)
}

// speakerLabel maps a machine speaker id to the participant's display name.
// Sentinels (open dialogue, empty terminal speaker) pass through unchanged.
func speakerLabel(roster []types.Participant, speaker string) string {
	if p := types.FindParticipantByID(roster, speaker); p != nil {
		return p.DisplayName
	}
	return speaker
}
