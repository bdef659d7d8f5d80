package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/podiumlabs/podium/internal/recovery"
	"github.com/podiumlabs/podium/pkg/Logger"
	"github.com/podiumlabs/podium/pkg/io/tts"
)

// Mode is the audio transport strategy, chosen once per session from config,
// never re-decided per utterance.
type Mode string

const (
	ModeBuffered  Mode = "buffered"
	ModeStreaming Mode = "streaming"
)

func ParseMode(s string) Mode {
	if s == string(ModeStreaming) {
		return ModeStreaming
	}
	return ModeBuffered
}

// Synthesizer is the narrow TTS contract; *tts.Client satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Utterance is one speech to voice.
type Utterance struct {
	SessionID uuid.UUID
	Text      string
	VoiceID   string
}

// Sink receives delivery results. Nil funcs are skipped.
type Sink struct {
	OnPayload   func(audio []byte)
	OnChunk     func(seq int, audio []byte)
	OnStreamEnd func()
}

func (s Sink) payload(audio []byte) {
	if s.OnPayload != nil {
		s.OnPayload(audio)
	}
}

func (s Sink) chunk(seq int, audio []byte) {
	if s.OnChunk != nil {
		s.OnChunk(seq, audio)
	}
}

func (s Sink) streamEnd() {
	if s.OnStreamEnd != nil {
		s.OnStreamEnd()
	}
}

var ErrNothingDelivered = errors.New("synthesis produced no audio")

// Service turns speech text into audio through the configured transport
// strategy. TTS calls run under the recovery coordinator; synthesis failure
// never blocks the debate, the caller degrades the utterance to text-only.
type Service struct {
	synth       Synthesizer
	mode        Mode
	maxChunk    int
	coordinator *recovery.Coordinator
	logger      *Logger.Logger
}

// NewService builds the delivery service. maxChunk bounds the text length of
// one streamed synthesis segment; zero keeps the segmenter's default.
func NewService(synth Synthesizer, mode Mode, maxChunk int, coordinator *recovery.Coordinator, logger *Logger.Logger) *Service {
	return &Service{
		synth:       synth,
		mode:        mode,
		maxChunk:    maxChunk,
		coordinator: coordinator,
		logger:      logger,
	}
}

func (s *Service) Mode() Mode { return s.mode }

// Deliver synthesizes u and pushes the result into sink. The returned error
// is non-nil only when no usable audio path remained; any chunks already
// pushed stay delivered and are never duplicated by a buffered retry.
func (s *Service) Deliver(ctx context.Context, u Utterance, sink Sink) error {
	if s.mode == ModeStreaming {
		return s.deliverStreaming(ctx, u, sink)
	}
	return s.deliverBuffered(ctx, u, sink)
}

func (s *Service) deliverBuffered(ctx context.Context, u Utterance, sink Sink) error {
	audio, err := recovery.Do(ctx, s.coordinator, u.SessionID, recovery.CategorySynthesis,
		func(ctx context.Context) ([]byte, error) {
			return s.synth.Synthesize(ctx, u.Text, u.VoiceID)
		})
	if err != nil {
		return err
	}
	sink.payload(audio)
	return nil
}

func (s *Service) deliverStreaming(ctx context.Context, u Utterance, sink Sink) error {
	segments := tts.SplitUtterance(u.Text, s.maxChunk)
	if len(segments) == 0 {
		return ErrNothingDelivered
	}

	delivered := 0
	for _, segment := range segments {
		audio, err := s.synthesizeChunk(ctx, u.SessionID, segment, u.VoiceID)
		if err != nil {
			if delivered == 0 {
				// Nothing reached the client yet; one buffered attempt for the
				// whole utterance before giving up.
				s.logger.Warnf("session %s: streaming synthesis failed before first chunk, retrying buffered: %v",
					u.SessionID, err)
				return s.deliverBuffered(ctx, u, sink)
			}
			// Chunks are already out; a buffered payload now would duplicate
			// them. Close the stream and report the partial failure.
			s.logger.Warnf("session %s: streaming synthesis failed after %d chunks: %v",
				u.SessionID, delivered, err)
			sink.streamEnd()
			return fmt.Errorf("stream broke after %d chunks: %w", delivered, err)
		}
		sink.chunk(delivered, audio)
		delivered++
	}
	sink.streamEnd()
	return nil
}

func (s *Service) synthesizeChunk(ctx context.Context, sessionID uuid.UUID, text, voice string) ([]byte, error) {
	var audio []byte
	err := s.coordinator.Try(ctx, sessionID, recovery.CategorySynthesis,
		func(ctx context.Context) error {
			data, err := s.synth.Synthesize(ctx, text, voice)
			if err != nil {
				return err
			}
			audio = data
			return nil
		})
	return audio, err
}
