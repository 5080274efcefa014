package app

import (
	"context"
	"fmt"
	"time"

	"fightlog/internal/adapter/memory"
	"fightlog/internal/adapter/sqlstore"
	"fightlog/internal/config"
	"fightlog/internal/domain"
	"fightlog/internal/gamification"
	"fightlog/internal/logging"
	"fightlog/internal/metrics"
	"fightlog/internal/repository"
	"fightlog/internal/stats"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Options configures New. Zero values fall back to config.Defaults.
type Options struct {
	Location *time.Location
	Stats    config.Stats
	Cache    config.Cache
	Metrics  *metrics.Manager
	// Now overrides time.Now.
	Now func() time.Time
}

// Engine is the only entry point for collaborators. Every result is a value
// snapshot; no store handle escapes.
type Engine struct {
	store   domain.Store
	cache   *Cache
	metrics *metrics.Manager
	log     logrus.FieldLogger

	measurements *MeasurementService
	sessions     *SessionService
	profiles     *ProfileService
	charts       *ChartsService
	insights     *InsightsService
	rewards      *RewardsService
}

// New builds an Engine over store. The engine owns store from here on.
func New(store domain.Store, log logrus.FieldLogger, opts Options) *Engine {
	def := config.Defaults()
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Stats == (config.Stats{}) {
		opts.Stats = def.Stats
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewManager("fightlog", "engine", prometheus.NewRegistry())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	repo := repository.New(store, log,
		repository.WithObserver(opts.Metrics),
		repository.WithLocation(opts.Location),
		repository.WithClock(opts.Now),
	)
	cache := NewCache(opts.Cache.SizeBytes, opts.Cache.TTLSeconds, opts.Metrics, log)

	insights := NewInsightsService(repo, repo, repo, repo, cache, InsightsOptions{
		Predict: stats.PredictOptions{
			Window:    opts.Stats.PredictWindow,
			MaxPoints: opts.Stats.MaxPoints,
			MinSigma:  opts.Stats.MinSigma,
		},
		Plateau: stats.PlateauOptions{
			WindowPoints: opts.Stats.PlateauPoints,
			MinSpan:      opts.Stats.PlateauMinSpan(),
			Threshold:    opts.Stats.PlateauThreshold,
			MaxPoints:    opts.Stats.MaxPoints,
		},
	}, log, opts.Location)
	insights.now = opts.Now

	evaluator := gamification.NewEvaluator(repo, gamification.Catalog(), log, opts.Metrics)

	e := &Engine{
		store:        store,
		cache:        cache,
		metrics:      opts.Metrics,
		log:          log,
		measurements: NewMeasurementService(repo, log),
		sessions:     NewSessionService(repo, log),
		profiles:     NewProfileService(repo),
		charts:       NewChartsService(repo, repo, log, opts.Location),
		insights:     insights,
		rewards:      NewRewardsService(insights, evaluator),
	}
	e.measurements.now = opts.Now
	e.sessions.now = opts.Now
	e.profiles.now = opts.Now
	e.charts.now = opts.Now
	return e
}

// OpenFile loads the env section of the TOML config at path and opens the
// Engine it describes.
func OpenFile(ctx context.Context, env, path string) (*Engine, error) {
	cfg, err := config.Load(env, path)
	if err != nil {
		return nil, err
	}
	return Open(ctx, cfg, nil, nil)
}

// Open selects the store from cfg once and builds the Engine. A nil log is
// replaced by one built from cfg.Logging. Metrics are registered on reg, or
// on a private registry when reg is nil.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger, reg prometheus.Registerer) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.New(logging.Params{
			Level:    cfg.Logging.Level,
			FileName: cfg.Logging.File,
			ToStdout: cfg.Logging.ToStdout,
			JSON:     cfg.Logging.JSON,
		})
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.NewManager("fightlog", "engine", reg)

	store, fallback, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	if fallback {
		m.GaugeFallbackActive.Set(1)
	}

	return New(store, log, Options{
		Location: loc,
		Stats:    cfg.Stats,
		Cache:    cfg.Cache,
		Metrics:  m,
	}), nil
}

func openStore(ctx context.Context, cfg config.Storage, log logrus.FieldLogger) (domain.Store, bool, error) {
	fallback := func() (domain.Store, bool, error) {
		store, err := memory.Open(memory.Options{MaxBytes: cfg.MemoryMaxBytes, Path: cfg.SnapshotPath})
		if err != nil {
			return nil, false, fmt.Errorf("open fallback store: %w", err)
		}
		log.WithFields(logrus.Fields{
			"max_bytes": cfg.MemoryMaxBytes,
			"snapshot":  cfg.SnapshotPath,
		}).Warn("using capacity-limited fallback store")
		return store, true, nil
	}

	if cfg.Driver == config.DriverMemory {
		return fallback()
	}

	db, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver:       cfg.Driver,
		DSN:          cfg.DSN,
		MaxOpenConns: cfg.MaxOpenConns,
	})
	if err == nil {
		log.WithField("driver", cfg.Driver).Info("opened durable store")
		return db, false, nil
	}
	if !cfg.FallbackOnError {
		return nil, false, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	log.WithError(err).WithField("driver", cfg.Driver).Error("durable store unavailable")
	return fallback()
}

// Close releases the store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *metrics.Manager {
	return e.metrics
}

// written drops memoized derivations after a successful write.
func (e *Engine) written(err error) {
	if err == nil {
		e.cache.Clear()
	}
}

// reads

// GetStreak returns the current and longest training streak.
func (e *Engine) GetStreak(ctx context.Context) (StreakResult, error) {
	return e.insights.Streak(ctx)
}

// GetPrediction projects metric to targetDate from the measurement trend.
func (e *Engine) GetPrediction(ctx context.Context, metric domain.Metric, targetDate time.Time) (PredictionResult, error) {
	return e.insights.Prediction(ctx, metric, targetDate)
}

// GetPlateauAlerts returns the plateaus the user has not dismissed.
func (e *Engine) GetPlateauAlerts(ctx context.Context) (PlateauResult, error) {
	return e.insights.PlateauAlerts(ctx)
}

// GetSummary returns the statistics unlocks are evaluated against.
func (e *Engine) GetSummary(ctx context.Context) (stats.Summary, error) {
	return e.insights.Summary(ctx)
}

// GetUnlockedBadges evaluates first, so badges earned by the latest writes
// are included.
func (e *Engine) GetUnlockedBadges(ctx context.Context) ([]domain.Unlock, error) {
	return e.rewards.Unlocked(ctx, domain.CategoryBadge)
}

// GetUnlocked is GetUnlockedBadges for any category; empty means all.
func (e *Engine) GetUnlocked(ctx context.Context, category domain.Category) ([]domain.Unlock, error) {
	return e.rewards.Unlocked(ctx, category)
}

// EvaluateUnlocks returns every unlock plus the set this call unlocked.
// Newly unlocked entities are persisted in one batch before returning.
func (e *Engine) EvaluateUnlocks(ctx context.Context) (gamification.Result, error) {
	return e.rewards.Evaluate(ctx)
}

// GetRank returns the grade and XP after evaluating unlocks.
func (e *Engine) GetRank(ctx context.Context) (gamification.RankInfo, error) {
	return e.rewards.Rank(ctx)
}

// GetProgress reports how far each definition of category is from unlocking.
func (e *Engine) GetProgress(ctx context.Context, category domain.Category) ([]gamification.DefinitionProgress, error) {
	return e.rewards.Progress(ctx, category)
}

// GetProfile returns nil when no profile has been saved.
func (e *Engine) GetProfile(ctx context.Context) (*domain.Profile, error) {
	return e.profiles.Get(ctx)
}

// GetDaily returns one point per calendar day for the last days days, with
// weights in unit.
func (e *Engine) GetDaily(ctx context.Context, days int, unit string) ([]DayPoint, error) {
	return e.charts.GetDaily(ctx, days, unit)
}

// ListRecentMeasurements returns up to limit measurements, newest first.
func (e *Engine) ListRecentMeasurements(ctx context.Context, limit int) ([]domain.Measurement, error) {
	return e.measurements.ListRecent(ctx, limit)
}

// ListRecentSessions returns up to limit sessions, newest first.
func (e *Engine) ListRecentSessions(ctx context.Context, limit int) ([]domain.TrainingSession, error) {
	return e.sessions.ListRecent(ctx, limit)
}

// writes

// AddMeasurement validates and stores a measurement.
func (e *Engine) AddMeasurement(ctx context.Context, in MeasurementInput) (domain.Measurement, error) {
	m, err := e.measurements.Record(ctx, in)
	e.written(err)
	return m, err
}

// EditMeasurement replaces the measurement with id and bumps its revision.
func (e *Engine) EditMeasurement(ctx context.Context, id string, in MeasurementInput) (domain.Measurement, error) {
	m, err := e.measurements.Edit(ctx, id, in)
	e.written(err)
	return m, err
}

// UndoLastMeasurement deletes the latest measurement and returns the one
// that is latest afterwards.
func (e *Engine) UndoLastMeasurement(ctx context.Context) (bool, *domain.Measurement, error) {
	deleted, latest, err := e.measurements.UndoLast(ctx)
	e.written(err)
	return deleted, latest, err
}

// AddSession validates and stores a training session.
func (e *Engine) AddSession(ctx context.Context, in SessionInput) (domain.TrainingSession, error) {
	s, err := e.sessions.Record(ctx, in)
	e.written(err)
	return s, err
}

// DeleteSession removes the session with id. Unknown ids yield domain.ErrNotFound.
func (e *Engine) DeleteSession(ctx context.Context, id string) error {
	err := e.sessions.Delete(ctx, id)
	e.written(err)
	return err
}

// UndoLastSession deletes the latest session and returns its id.
func (e *Engine) UndoLastSession(ctx context.Context) (bool, string, error) {
	deleted, id, err := e.sessions.UndoLast(ctx)
	e.written(err)
	return deleted, id, err
}

// UpdateProfile applies patch to the profile, creating it on first use.
func (e *Engine) UpdateProfile(ctx context.Context, patch domain.ProfilePatch) (domain.Profile, error) {
	p, err := e.profiles.Update(ctx, patch)
	e.written(err)
	return p, err
}

// DismissPlateau hides the plateau alert for exactly this window. New data
// that moves the trailing window raises the alert again.
func (e *Engine) DismissPlateau(ctx context.Context, windowStart, windowEnd time.Time, metric domain.Metric) error {
	_, err := e.insights.DismissPlateau(ctx, domain.PlateauWindow{Metric: metric, Start: windowStart, End: windowEnd})
	e.written(err)
	return err
}
