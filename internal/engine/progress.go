package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/tatianab/inner-city/internal/api"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
)

const offlineNotice = "Нет связи с сервером. Данные прогресса недоступны."

// RefreshProgress replaces the stored progress with the server's. On failure the
// previous progress is kept, the store switches to offline and the error is
// returned. Responses of superseded refreshes are dropped.
func (e *Engine) RefreshProgress(ctx context.Context) error {
	gen := e.store.Begin(store.OpProgress)
	e.logger.Debug("refresh progress", zap.String("op", "refresh_progress"), zap.Uint64("generation", gen))

	p, err := e.backend.GetProgress(ctx)
	if err != nil {
		e.logger.Warn("operation failed", zap.String("op", "refresh_progress"), zap.Error(err))
		text := offlineNotice
		if !api.IsOffline(err) {
			text = userMessage(err)
		}
		e.store.Commit(store.OpProgress, gen, func(s *store.State) store.Topic {
			topics := store.TopicNotice
			if !s.Offline {
				s.Offline = true
				topics |= store.TopicOffline
			}
			s.Notice = &models.Notice{Text: text, Error: true}
			return topics
		})
		return err
	}

	var unlocked []string
	applied := e.store.Commit(store.OpProgress, gen, func(s *store.State) store.Topic {
		prev := s.Progress
		keepUnlocked(prev, p)
		if prev != nil {
			unlocked = newlyUnlocked(prev, p)
		}
		s.Progress = p
		s.Offline = false
		topics := store.TopicProgress | store.TopicOffline | store.TopicCards
		if len(unlocked) > 0 {
			names := make([]string, len(unlocked))
			for i, key := range unlocked {
				names[i] = districtName(p, key)
			}
			s.Notice = &models.Notice{Text: "Открыт новый квартал: " + strings.Join(names, ", ")}
			topics |= store.TopicNotice
		}
		return topics
	})
	if !applied {
		e.logger.Debug("stale progress dropped", zap.Uint64("generation", gen))
		return nil
	}
	if len(unlocked) > 0 {
		e.logger.Info("districts unlocked", zap.Strings("districts", unlocked))
		e.award(AchievementExplorer)
	}
	e.checkBoss(ctx)
	return nil
}

// keepUnlocked stops a district from turning locked again once the client has seen it open.
func keepUnlocked(prev, next *models.Progress) {
	if prev == nil || next == nil {
		return
	}
	for key, old := range prev.Districts {
		d, ok := next.Districts[key]
		if ok && old.Unlocked && !d.Unlocked {
			d.Unlocked = true
			next.Districts[key] = d
		}
	}
}

// newlyUnlocked lists, in key order, the districts unlocked in next but not in prev.
func newlyUnlocked(prev, next *models.Progress) []string {
	var keys []string
	for key, d := range next.Districts {
		if d.Unlocked && !prev.Districts[key].Unlocked {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func districtName(p *models.Progress, key string) string {
	if p != nil {
		if d, ok := p.Districts[key]; ok && d.Name != "" {
			return d.Name
		}
	}
	return key
}

// reconcile refreshes progress after a successful mutation. The mutation already
// succeeded, so a failed refresh only leaves the store offline.
func (e *Engine) reconcile(ctx context.Context, op string) {
	if err := e.RefreshProgress(ctx); err != nil {
		e.logger.Debug("reconcile after "+op, zap.Error(err))
	}
}

func plural(n int, one, few, many string) string {
	m := n % 100
	if m < 0 {
		m = -m
	}
	if m >= 11 && m <= 14 {
		return fmt.Sprintf("%d %s", n, many)
	}
	switch m % 10 {
	case 1:
		return fmt.Sprintf("%d %s", n, one)
	case 2, 3, 4:
		return fmt.Sprintf("%d %s", n, few)
	}
	return fmt.Sprintf("%d %s", n, many)
}
