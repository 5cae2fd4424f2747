package engine

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/tatianab/inner-city/internal/api"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
)

// AskGuru puts a free question to the agent in guru mode, which the server opens
// after the final boss. Like SendChat it echoes the question as pending and
// always follows it with an answer or a fallback, unless the answer is a crisis.
func (e *Engine) AskGuru(ctx context.Context, question string) error {
	const op = "guru"
	question = strings.TrimSpace(question)
	if question == "" {
		return e.fail(op, ErrEmptyQuestion)
	}
	if p := e.store.Snapshot().Progress; p == nil || !p.GuruModeUnlocked {
		return e.fail(op, ErrGuruLocked)
	}

	id := e.messageID()
	e.store.Update(func(s *store.State) store.Topic {
		s.Guru = append(s.Guru, models.ChatMessage{ID: id, Role: models.RoleUser, Text: question, Status: models.StatusPending})
		s.Screen = models.ScreenGuru
		return store.TopicGuru | store.TopicScreen
	})
	e.logger.Debug("ask guru", zap.String("op", op), zap.Int("message_id", id))

	resp, err := e.backend.AskGuru(ctx, question)
	if err != nil {
		e.logger.Warn("operation failed", zap.String("op", op), zap.Error(err))
		fallback := FallbackOffline
		if errors.Is(err, api.ErrRejected) {
			fallback = FallbackRejected
		}
		e.resolveGuru(id, models.StatusFailed, fallback)
		return err
	}

	if resp.IsCrisis {
		e.logger.Info("crisis flagged", zap.String("op", op), zap.Int("message_id", id))
		e.cancelTransition()
		e.resolveGuru(id, models.StatusDelivered, "")
		e.store.Update(func(s *store.State) store.Topic {
			s.Crisis = &models.Crisis{Message: resp.Response}
			s.Screen = models.ScreenCrisis
			return store.TopicCrisis | store.TopicScreen
		})
		return nil
	}
	e.resolveGuru(id, models.StatusDelivered, resp.Response)
	return nil
}

func (e *Engine) resolveGuru(id int, status models.MessageStatus, reply string) {
	e.store.Update(func(s *store.State) store.Topic {
		if i := slices.IndexFunc(s.Guru, func(m models.ChatMessage) bool { return m.ID == id }); i >= 0 {
			s.Guru[i].Status = status
		}
		if reply != "" {
			s.Guru = append(s.Guru, e.agentMessage(reply))
		}
		return store.TopicGuru
	})
}
