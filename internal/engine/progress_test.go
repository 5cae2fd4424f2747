package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/inner-city/internal/api"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
)

func cityProgress(effort int, unlocked ...string) *models.Progress {
	p := &models.Progress{
		Effort: effort,
		Districts: map[string]models.DistrictState{
			"oasis":  {Name: "Оазис"},
			"harbor": {Name: "Гавань"},
			"tower":  {Name: "Башня"},
		},
	}
	for _, key := range unlocked {
		d := p.Districts[key]
		d.Unlocked = true
		p.Districts[key] = d
	}
	return p
}

func TestRefreshProgressReplacesWholesale(t *testing.T) {
	fb := newFakeBackend()
	next := cityProgress(3, "oasis")
	next.OwnedCards = []string{"card_1"}
	fb.progress = func() (*models.Progress, error) { return next, nil }
	e := newTestEngine(t, fb)
	e.Store().Update(func(s *store.State) store.Topic {
		s.Progress = &models.Progress{Effort: 9, OwnedCards: []string{"card_9"}, Districts: map[string]models.DistrictState{}}
		s.Offline = true
		return store.TopicProgress
	})

	require.NoError(t, e.RefreshProgress(context.Background()))

	st := e.Store().Snapshot()
	assert.Equal(t, 3, st.Progress.Effort)
	assert.Equal(t, []string{"card_1"}, st.Progress.OwnedCards)
	assert.False(t, st.Offline, "a successful fetch leaves offline mode")
}

func TestRefreshProgressFailureKeepsPrevious(t *testing.T) {
	fb := newFakeBackend()
	fb.progress = func() (*models.Progress, error) { return cityProgress(4, "oasis"), nil }
	e := newTestEngine(t, fb)
	ctx := context.Background()
	require.NoError(t, e.RefreshProgress(ctx))
	before := e.Store().Snapshot().Progress

	fb.progress = func() (*models.Progress, error) { return nil, errOffline }
	for i := 0; i < 2; i++ {
		err := e.RefreshProgress(ctx)
		require.Error(t, err)

		st := e.Store().Snapshot()
		assert.True(t, st.Offline)
		assert.Equal(t, before, st.Progress, "previous progress is untouched")
		require.NotNil(t, st.Notice)
		assert.Equal(t, offlineNotice, st.Notice.Text)
	}
}

func TestRefreshProgressRejectedGoesOffline(t *testing.T) {
	fb := newFakeBackend()
	fb.progress = func() (*models.Progress, error) { return nil, &api.Error{Status: 500, Message: "500 Internal Server Error"} }
	e := newTestEngine(t, fb)

	require.ErrorIs(t, e.RefreshProgress(context.Background()), api.ErrRejected)

	st := e.Store().Snapshot()
	assert.True(t, st.Offline)
	assert.Nil(t, st.Progress)
	assert.Equal(t, "500 Internal Server Error", st.Notice.Text)
}

func TestRefreshProgressDropsStaleResponse(t *testing.T) {
	fb := newFakeBackend()
	release := make(chan struct{})
	var calls atomic.Int32
	fb.progress = func() (*models.Progress, error) {
		if calls.Add(1) == 1 {
			<-release
			return cityProgress(1), nil
		}
		return cityProgress(2), nil
	}
	e := newTestEngine(t, fb)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- e.RefreshProgress(ctx) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, e.RefreshProgress(ctx))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, 2, e.Store().Snapshot().Progress.Effort)
}

func TestRefreshProgressDropsStaleFailure(t *testing.T) {
	fb := newFakeBackend()
	release := make(chan struct{})
	var calls atomic.Int32
	fb.progress = func() (*models.Progress, error) {
		if calls.Add(1) == 1 {
			<-release
			return nil, errOffline
		}
		return cityProgress(2), nil
	}
	e := newTestEngine(t, fb)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- e.RefreshProgress(ctx) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, e.RefreshProgress(ctx))
	close(release)
	require.Error(t, <-done)

	st := e.Store().Snapshot()
	assert.False(t, st.Offline, "a superseded failure does not switch to offline")
	assert.Equal(t, 2, st.Progress.Effort)
}

func TestRefreshProgressAnnouncesUnlockedDistricts(t *testing.T) {
	book, err := models.OpenAchievements(t.TempDir())
	require.NoError(t, err)
	fb := newFakeBackend()
	fb.progress = func() (*models.Progress, error) { return cityProgress(0, "oasis"), nil }
	e := newTestEngine(t, fb, WithAchievements(book))
	ctx := context.Background()

	require.NoError(t, e.RefreshProgress(ctx))
	assert.Nil(t, e.Store().Snapshot().Notice, "the first load announces nothing")
	assert.False(t, book.Has(AchievementExplorer))

	fb.progress = func() (*models.Progress, error) { return cityProgress(0, "oasis", "harbor", "tower"), nil }
	require.NoError(t, e.RefreshProgress(ctx))

	assert.True(t, book.Has(AchievementExplorer))
	st := e.Store().Snapshot()
	require.Len(t, st.Achievements, 1)

	// The achievement notice follows the district notice.
	assert.Equal(t, "Достижение: "+AchievementExplorer, st.Notice.Text)
}

func TestNewlyUnlocked(t *testing.T) {
	prev := cityProgress(0, "oasis")
	next := cityProgress(0, "oasis", "tower", "harbor")
	assert.Equal(t, []string{"harbor", "tower"}, newlyUnlocked(prev, next))
	assert.Empty(t, newlyUnlocked(next, next))
}

func TestDistrictUnlockIsMonotonic(t *testing.T) {
	fb := newFakeBackend()
	fb.progress = func() (*models.Progress, error) { return cityProgress(0, "oasis", "harbor"), nil }
	e := newTestEngine(t, fb)
	ctx := context.Background()
	require.NoError(t, e.RefreshProgress(ctx))

	fb.progress = func() (*models.Progress, error) { return cityProgress(1, "oasis"), nil }
	require.NoError(t, e.RefreshProgress(ctx))

	st := e.Store().Snapshot()
	assert.True(t, st.Progress.Districts["harbor"].Unlocked)
	assert.Equal(t, 1, st.Progress.Effort)
}

func TestLoadHistory(t *testing.T) {
	fb := newFakeBackend()
	fb.history = func(limit int) (*api.HistoryResponse, error) {
		assert.Equal(t, 3, limit)
		return &api.HistoryResponse{
			Sessions:    []models.HistoryEntry{{District: "oasis", PointsEarned: 15}},
			AgentMemory: []models.MemoryEntry{{Text: "любит дыхательные практики"}},
		}, nil
	}
	e := newTestEngine(t, fb)

	require.NoError(t, e.LoadHistory(context.Background(), 3))

	h := e.Store().Snapshot().History
	require.Len(t, h.Sessions, 1)
	assert.Equal(t, 15, h.Sessions[0].PointsEarned)
	require.Len(t, h.AgentMemory, 1)
}

func TestLoadHistoryFailure(t *testing.T) {
	fb := newFakeBackend()
	fb.history = func(int) (*api.HistoryResponse, error) { return nil, errRejected }
	e := newTestEngine(t, fb)

	require.ErrorIs(t, e.LoadHistory(context.Background(), 0), api.ErrRejected)
	assert.True(t, e.Store().Snapshot().Notice.Error)
	assert.False(t, e.Store().Snapshot().Offline, "only progress drives offline mode")
}
