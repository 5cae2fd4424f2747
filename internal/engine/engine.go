// Package engine holds the controllers that talk to the backend and mutate the store:
// progress synchronization, the session lifecycle, the agent dialog and the card
// inventory. Every state-changing action ends with a progress refresh so the
// client never drifts from the server for more than one round trip.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tatianab/inner-city/internal/api"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
)

// Backend is the subset of the HTTP API the engine depends on.
type Backend interface {
	GetProgress(ctx context.Context) (*models.Progress, error)
	StartSession(ctx context.Context, req api.StartSessionRequest) (*api.StartSessionResponse, error)
	EndSession(ctx context.Context, session models.Session, points *int) (*api.EndSessionResponse, error)
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
	CompleteTask(ctx context.Context, req api.TaskRequest) (*api.TaskResponse, error)
	OwnedCards(ctx context.Context) (*api.OwnedCardsResponse, error)
	AvailableCards(ctx context.Context) (*api.AvailableCardsResponse, error)
	UnlockCard(ctx context.Context, cardID string) (*api.UnlockCardResponse, error)
	EquipCard(ctx context.Context, cardID string) (*api.EquipCardResponse, error)
	ActivateCard(ctx context.Context, cardID string) (*api.ActivateCardResponse, error)
	Save(ctx context.Context) error
	History(ctx context.Context, limit int) (*api.HistoryResponse, error)
	CheckBoss(ctx context.Context) (*api.BossCheckResponse, error)
	DefeatBoss(ctx context.Context, bossID string) (*api.DefeatBossResponse, error)
	AskGuru(ctx context.Context, question string) (*api.GuruResponse, error)
}

var _ Backend = (*api.Client)(nil)

// Local achievements.
const (
	AchievementExplorer  = "Explorer"
	AchievementCollector = "Collector"
	AchievementFriend    = "Friend of Aira"
)

const (
	defaultTransitionDelay = 3 * time.Second
	defaultHistoryLimit    = 10
)

type Engine struct {
	store        *store.Store
	backend      Backend
	logger       *zap.Logger
	achievements *models.AchievementBook
	now          func() time.Time

	transitionDelay time.Duration
	historyLimit    int

	mu            sync.Mutex
	nextMessageID int
	transition    *time.Timer
	transitionSeq uint64
	// defeated holds bosses beaten in this process. The server keeps reporting
	// a boss while its trigger condition holds.
	defeated map[string]bool
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithAchievements enables local achievements kept in b.
func WithAchievements(b *models.AchievementBook) Option {
	return func(e *Engine) { e.achievements = b }
}

// WithTransitionDelay sets how long a suggested mini-game waits before its screen opens.
func WithTransitionDelay(d time.Duration) Option {
	return func(e *Engine) { e.transitionDelay = d }
}

func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.historyLimit = n
		}
	}
}

// WithClock replaces time.Now for achievement timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine that mutates st using backend.
func New(st *store.Store, backend Backend, opts ...Option) *Engine {
	e := &Engine{
		store:           st,
		backend:         backend,
		logger:          zap.NewNop(),
		now:             time.Now,
		transitionDelay: defaultTransitionDelay,
		historyLimit:    defaultHistoryLimit,
		defeated:        map[string]bool{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.achievements != nil {
		list := e.achievements.List()
		e.store.Update(func(s *store.State) store.Topic {
			s.Achievements = list
			return store.TopicAchievements
		})
	}
	return e
}

// Store returns the store the engine mutates.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Close stops any scheduled screen transition.
func (e *Engine) Close() {
	e.cancelTransition()
}

// Sync loads progress, cards and history in parallel, as done on startup.
func (e *Engine) Sync(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return e.RefreshProgress(ctx) })
	g.Go(func() error { return e.LoadCards(ctx) })
	g.Go(func() error { return e.LoadHistory(ctx, 0) })
	return g.Wait()
}

// ShowScreen switches the current view. Leaving the crisis screen clears the crisis.
func (e *Engine) ShowScreen(screen models.Screen) {
	e.cancelTransition()
	e.store.Update(func(s *store.State) store.Topic {
		topics := store.TopicScreen
		if s.Crisis != nil && screen != models.ScreenCrisis {
			s.Crisis = nil
			topics |= store.TopicCrisis
		}
		if s.Screen == screen && topics == store.TopicScreen {
			return 0
		}
		s.Screen = screen
		return topics
	})
}

func (e *Engine) fail(op string, err error) error {
	e.logger.Warn("operation failed", zap.String("op", op), zap.Error(err))
	e.store.Notify(userMessage(err), true)
	return err
}

func (e *Engine) award(name string) {
	if e.achievements == nil {
		return
	}
	added, err := e.achievements.Unlock(name, e.now())
	if err != nil {
		e.logger.Warn("save achievements", zap.String("achievement", name), zap.Error(err))
	}
	if !added {
		return
	}
	e.logger.Info("achievement unlocked", zap.String("achievement", name))
	list := e.achievements.List()
	e.store.Update(func(s *store.State) store.Topic {
		s.Achievements = list
		s.Notice = &models.Notice{Text: "Достижение: " + name}
		return store.TopicAchievements | store.TopicNotice
	})
}
