package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tatianab/inner-city/internal/api"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
)

// BossControl names the lock held while a defeat request is in flight.
func BossControl(id string) string { return "boss:" + id }

// checkBoss asks the server whether a boss stands over the city and mirrors the
// answer into the store. Failures are only logged: the progress refresh that
// runs it already reports connectivity.
func (e *Engine) checkBoss(ctx context.Context) {
	gen := e.store.Begin(store.OpBoss)
	resp, err := e.backend.CheckBoss(ctx)
	if err != nil {
		e.logger.Debug("boss check failed", zap.String("op", "check_boss"), zap.Error(err))
		return
	}

	spawned := resp.BossSpawned && resp.Boss != nil && !e.wasDefeated(resp.Boss.BossID)
	appeared := ""
	e.store.Commit(store.OpBoss, gen, func(s *store.State) store.Topic {
		if !spawned {
			if s.Boss == nil {
				return 0
			}
			s.Boss = nil
			return store.TopicBoss
		}
		if s.Boss != nil && s.Boss.BossID == resp.Boss.BossID {
			return 0
		}
		boss := *resp.Boss
		s.Boss = &boss
		appeared = boss.Name
		s.Notice = &models.Notice{Text: "Появился босс: " + boss.Name + ". Подробнее: /boss"}
		return store.TopicBoss | store.TopicNotice
	})
	if appeared != "" {
		e.logger.Info("boss appeared", zap.String("boss", appeared))
	}
}

// DefeatBoss reports victory over the boss the server last announced. Without
// one it fails before any request.
func (e *Engine) DefeatBoss(ctx context.Context) error {
	const op = "defeat_boss"
	boss := e.store.Snapshot().Boss
	if boss == nil {
		return e.fail(op, ErrNoBoss)
	}
	control := BossControl(boss.BossID)
	if !e.store.TryLock(control) {
		return e.fail(op, ErrBusy)
	}
	defer e.store.Unlock(control)
	e.logger.Debug("defeat boss", zap.String("op", op), zap.String("boss_id", boss.BossID))

	resp, err := e.backend.DefeatBoss(ctx, boss.BossID)
	if err != nil {
		return e.fail(op, err)
	}
	name := resp.Boss.Name
	if name == "" {
		name = boss.Name
	}
	finale := resp.Boss.Finale || boss.Finale
	e.mu.Lock()
	e.defeated[boss.BossID] = true
	e.mu.Unlock()
	if resp.Rewards.Achievement != "" {
		e.award("Победа: " + name)
	}

	e.store.Update(func(s *store.State) store.Topic {
		topics := store.TopicBoss | store.TopicNotice
		s.Boss = nil
		if s.Screen == models.ScreenBoss {
			s.Screen = models.ScreenMap
			topics |= store.TopicScreen
		}
		s.Notice = &models.Notice{Text: describeVictory(name, resp, finale)}
		return topics
	})
	e.logger.Info("boss defeated", zap.String("boss_id", boss.BossID), zap.Bool("finale", finale))

	e.reconcile(ctx, op)
	return nil
}

func describeVictory(name string, resp *api.DefeatBossResponse, finale bool) string {
	text := fmt.Sprintf("Победа над «%s»: +%s, +%d Effort", name,
		plural(resp.Rewards.StabilityPoints, "очко", "очка", "очков"), resp.Rewards.Effort)
	if msg := strings.TrimRight(resp.Message, ". "); msg != "" {
		text += ". " + msg
	}
	if finale {
		text += ". Режим ГУРУ разблокирован!"
	}
	return text
}

func (e *Engine) wasDefeated(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.defeated[id]
}
