package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"advocateai/internal/metrics"
	"advocateai/pkg/ai"
	"advocateai/pkg/analysis"
	"advocateai/pkg/domain"
	"advocateai/pkg/extract"
	"advocateai/pkg/storage"
	"advocateai/pkg/store"
)

const (
	defaultMaxUploadBytes    = 10 * 1024 * 1024
	defaultGenerationTimeout = 90 * time.Second

	chatTemperature = 0.7
	chatMaxTokens   = 1500

	// processingGrace is added to the generation timeout before a document
	// stuck in processing may be claimed again.
	processingGrace = 2 * time.Minute
)

// Config holds runtime dependencies and limits for the application.
type Config struct {
	Store   store.Store
	Objects storage.ObjectStore
	// Chat streams conversation replies. Analysis critiques documents and
	// defaults to Chat.
	Chat     ai.Completer
	Analysis ai.Completer
	// Extractor defaults to one reading from Objects.
	Extractor *extract.Extractor
	Metrics   *metrics.Metrics

	DefaultCredits    int
	MaxUploadBytes    int64
	GenerationTimeout time.Duration

	Now   func() time.Time
	NewID func() string
}

// App implements the conversation ledger and the document pipeline.
type App struct {
	store     store.Store
	objects   storage.ObjectStore
	chat      ai.Completer
	analyzer  *analysis.Analyzer
	extractor *extract.Extractor
	metrics   *metrics.Metrics

	defaultCredits    int
	maxUploadBytes    int64
	generationTimeout time.Duration

	now   func() time.Time
	newID func() string
}

// New validates cfg and constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Objects == nil {
		return nil, errors.New("object store required")
	}
	if cfg.Chat == nil {
		return nil, errors.New("chat completer required")
	}
	analysisCompleter := cfg.Analysis
	if analysisCompleter == nil {
		analysisCompleter = cfg.Chat
	}
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = extract.New(cfg.Objects)
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New(nil, nil)
	}
	credits := cfg.DefaultCredits
	if credits < 0 {
		return nil, fmt.Errorf("default credits must not be negative: %d", credits)
	}
	if credits == 0 {
		credits = domain.DefaultCredits
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	timeout := cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = defaultGenerationTimeout
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &App{
		store:             cfg.Store,
		objects:           cfg.Objects,
		chat:              cfg.Chat,
		analyzer:          analysis.New(analysisCompleter),
		extractor:         extractor,
		metrics:           m,
		defaultCredits:    credits,
		maxUploadBytes:    maxUpload,
		generationTimeout: timeout,
		now:               now,
		newID:             newID,
	}, nil
}

// MaxUploadBytes is the accepted upload size limit.
func (a *App) MaxUploadBytes() int64 {
	return a.maxUploadBytes
}

func notFoundAs(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
