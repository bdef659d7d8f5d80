package app

import (
	"context"
	"time"

	"github.com/go-redis/redis"
	"github.com/podiumlabs/podium/internal/analysis"
	"github.com/podiumlabs/podium/internal/auth"
	"github.com/podiumlabs/podium/internal/config"
	"github.com/podiumlabs/podium/internal/crossfire"
	"github.com/podiumlabs/podium/internal/debate"
	"github.com/podiumlabs/podium/internal/handlers/websocket"
	"github.com/podiumlabs/podium/internal/orchestrator"
	"github.com/podiumlabs/podium/internal/recovery"
	"github.com/podiumlabs/podium/internal/repository/blobstore"
	"github.com/podiumlabs/podium/internal/repository/debatestore"
	"github.com/podiumlabs/podium/internal/server"
	"github.com/podiumlabs/podium/internal/speech"
	"github.com/podiumlabs/podium/internal/voice"
	"github.com/podiumlabs/podium/pkg/Logger"
	"github.com/podiumlabs/podium/pkg/assistant/router"
	"github.com/podiumlabs/podium/pkg/io/realtime"
	"github.com/podiumlabs/podium/pkg/io/tts"
	"gorm.io/gorm"
)

// App represents the application with all its dependencies
type App struct {
	Config *config.Settings
	Logger *Logger.Logger
	DB     *gorm.DB
	RC     *redis.Client

	Coordinator *recovery.Coordinator
	LLMRouter   *router.Mux
	Registry    *orchestrator.Registry
	Handler     *websocket.DebateHandler
	ServerDeps  server.Dependencies
}

// NewApp creates a new application instance with all dependencies properly wired
func NewApp(cfg *config.Settings, logger *Logger.Logger, db *gorm.DB, rc *redis.Client) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		DB:     db,
		RC:     rc,
	}

	if err := app.setupDependencies(); err != nil {
		return nil, err
	}

	return app, nil
}

// setupDependencies initializes all application dependencies
func (a *App) setupDependencies() error {
	// 1. Recovery coordinator shared by every pipeline
	a.Coordinator = recovery.New(a.Logger.Named("recovery"), recovery.Policy{
		MaxAttempts:    a.Config.Retry.MaxAttempts,
		InitialBackoff: a.Config.Retry.InitialBackoff(),
		MaxBackoff:     a.Config.Retry.MaxBackoff(),
	})

	// 2. Completion providers behind one mux
	factory := NewCompleterFactory(a.Config.AssistantKeys, a.Logger)
	mux, err := factory.CreateMux(context.Background())
	if err != nil {
		return err
	}
	a.LLMRouter = mux

	// 3. Repositories
	store := debatestore.NewGormDebateRepo(a.DB)
	blobTTL := time.Duration(a.Config.Redis.BlobTTLHours) * time.Hour
	blobs := blobstore.NewRedisBlobStore(a.RC, blobTTL)

	// 4. Speech and audio pipelines
	generator := speech.NewGenerator(a.LLMRouter, a.Coordinator, a.Logger)
	judge := analysis.NewJudge(a.LLMRouter, a.Coordinator, a.Logger)

	synth := tts.New(a.Config.Voice.TTSURL)
	synth.Voice = a.Config.Voice.DefaultVoice
	voiceSvc := voice.NewService(synth, voice.ParseMode(a.Config.Voice.TransportMode),
		a.Config.Voice.StreamChunkChars, a.Coordinator, a.Logger.Named("voice"))

	crossfireLog := a.Logger.Named("crossfire")
	dialogues := crossfire.NewManager(
		realtime.NewWSDialer(crossfireLog),
		a.Coordinator,
		a.Config.Voice.RealtimeURL,
		a.Config.Voice.RealtimeKey,
		a.Config.Voice.DefaultVoice,
		crossfireLog,
	)

	// 5. Orchestration registry
	a.Registry = orchestrator.NewRegistry(orchestrator.Deps{
		Logger:      a.Logger,
		Coordinator: a.Coordinator,
		Generator:   generator,
		Voice:       voiceSvc,
		Crossfire:   dialogues,
		Judge:       judge,
		Store:       store,
		Blobs:       blobs,
	}, orchestrator.Config{
		Durations:  a.debateDurations(),
		TickEvery:  a.tickInterval(),
		Difficulty: speech.DifficultyIntermediate,
	})

	// JWT settings from config
	jwtSecret := a.Config.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		a.Logger.Warn("JWT secret not configured, using default (not secure for production)")
	}
	validator := auth.NewValidator(jwtSecret)

	// 6. Transport
	a.Handler = websocket.NewDebateHandler(a.Logger.Named("ws"), a.Registry, validator, a.Config)
	a.ServerDeps = server.NewServerDependencies(a.Logger, a.Config, a.Handler)

	return nil
}

// debateDurations returns the nominal Public Forum timing with any demo
// overrides from config applied.
func (a *App) debateDurations() debate.Durations {
	d := debate.NominalDurations()
	cfg := a.Config.Debate

	if cfg.SpeechDurationSec > 0 {
		dur := time.Duration(cfg.SpeechDurationSec) * time.Second
		for _, p := range []debate.Phase{
			debate.PhaseOpeningPro, debate.PhaseOpeningCon,
			debate.PhaseRebuttalPro, debate.PhaseRebuttalCon,
			debate.PhaseSummaryPro, debate.PhaseSummaryCon,
		} {
			d[p] = dur
		}
	}
	if cfg.CrossfireSec > 0 {
		dur := time.Duration(cfg.CrossfireSec) * time.Second
		for _, p := range []debate.Phase{
			debate.PhaseCrossfireFirst, debate.PhaseCrossfireSecond, debate.PhaseGrandCrossfire,
		} {
			d[p] = dur
		}
	}
	if cfg.FinalFocusSec > 0 {
		dur := time.Duration(cfg.FinalFocusSec) * time.Second
		d[debate.PhaseFinalFocusPro] = dur
		d[debate.PhaseFinalFocusCon] = dur
	}
	return d
}

func (a *App) tickInterval() time.Duration {
	if ms := a.Config.Debate.TickIntervalMs; ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return time.Second
}

// GetServerDependencies returns the server dependencies
func (a *App) GetServerDependencies() server.Dependencies {
	return a.ServerDeps
}

// Close shuts down every live debate session and transport resources.
func (a *App) Close() error {
	if a.Handler != nil {
		return a.Handler.Close()
	}
	return nil
}
