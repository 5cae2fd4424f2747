package engine

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tatianab/inner-city/internal/api"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
)

// Fallback agent replies for failed chat turns.
const (
	FallbackRejected = "Произошла ошибка. Попробуй еще раз."
	FallbackOffline  = "Ошибка соединения. Проверь интернет."
)

const friendThreshold = 10

// Keyword groups that suggest a mini-game, in priority order.
var exerciseKeywords = []struct {
	screen models.Screen
	stems  []string
}{
	{models.ScreenPlacement, []string{"опор", "сфер", "действие", "комфорт"}},
	{models.ScreenBreathing, []string{"дыхан", "дыш", "заземл", "пауз"}},
}

// ClassifyReply returns the mini-game screen an agent reply points to.
// The first matching group wins.
func ClassifyReply(text string) (models.Screen, bool) {
	lower := cases.Lower(language.Russian).String(text)
	for _, group := range exerciseKeywords {
		for _, stem := range group.stems {
			if strings.Contains(lower, stem) {
				return group.screen, true
			}
		}
	}
	return "", false
}

// SendChat sends one user message to the agent. The message is echoed into the
// chat as pending before the request goes out. Every turn ends with an agent
// entry: the reply, or a local fallback when the request failed. A crisis reply
// is the exception: it opens the crisis screen instead.
func (e *Engine) SendChat(ctx context.Context, text string) error {
	const op = "chat"
	text = strings.TrimSpace(text)
	if text == "" {
		return e.fail(op, ErrEmptyMessage)
	}
	e.cancelTransition()

	id := e.messageID()
	req := api.ChatRequest{Message: text, SessionContext: map[string]any{}}
	e.store.Update(func(s *store.State) store.Topic {
		s.Chat = append(s.Chat, models.ChatMessage{ID: id, Role: models.RoleUser, Text: text, Status: models.StatusPending})
		if s.Session != nil {
			req.District = s.Session.District
			req.Emotion = s.Session.Emotion
			req.SessionContext = *s.Session
		}
		return store.TopicChat
	})
	e.logger.Debug("send chat", zap.String("op", op), zap.Int("message_id", id), zap.String("district", req.District))

	resp, err := e.backend.Chat(ctx, req)
	if err != nil {
		e.logger.Warn("operation failed", zap.String("op", op), zap.Error(err))
		fallback := FallbackOffline
		if errors.Is(err, api.ErrRejected) {
			fallback = FallbackRejected
		}
		e.resolve(id, models.StatusFailed, func(s *store.State) store.Topic {
			s.Chat = append(s.Chat, e.agentMessage(fallback))
			return store.TopicChat
		})
		return err
	}

	if resp.IsCrisis {
		e.logger.Info("crisis flagged", zap.Int("message_id", id), zap.Int("helplines", len(resp.Helplines)))
		e.cancelTransition()
		// The crisis screen opens even if a new session already cleared the message.
		e.resolve(id, models.StatusDelivered, func(*store.State) store.Topic { return 0 })
		e.store.Update(func(s *store.State) store.Topic {
			s.Crisis = &models.Crisis{Message: resp.Response, Helplines: resp.Helplines}
			s.Screen = models.ScreenCrisis
			return store.TopicCrisis | store.TopicScreen
		})
		return nil
	}

	delivered := 0
	ok := e.resolve(id, models.StatusDelivered, func(s *store.State) store.Topic {
		s.Chat = append(s.Chat, e.agentMessage(resp.Response))
		s.DeliveredMessages++
		delivered = s.DeliveredMessages
		return store.TopicChat
	})
	if !ok {
		return nil
	}
	if delivered == friendThreshold {
		e.award(AchievementFriend)
	}
	if screen, match := ClassifyReply(resp.Response); match {
		e.scheduleTransition(screen)
	}
	return nil
}

// resolve sets the status of user message id and applies fn in the same update.
// It reports false, and changes nothing, when the message is no longer in the
// chat because a new session cleared it.
func (e *Engine) resolve(id int, status models.MessageStatus, fn func(*store.State) store.Topic) bool {
	found := false
	e.store.Update(func(s *store.State) store.Topic {
		i := slices.IndexFunc(s.Chat, func(m models.ChatMessage) bool { return m.ID == id })
		if i < 0 {
			return 0
		}
		found = true
		s.Chat[i].Status = status
		return store.TopicChat | fn(s)
	})
	if !found {
		e.logger.Debug("chat reply dropped", zap.Int("message_id", id))
	}
	return found
}

// DismissCrisis closes the crisis screen and returns to the dialog or the map.
func (e *Engine) DismissCrisis() {
	e.store.Update(func(s *store.State) store.Topic {
		if s.Crisis == nil && s.Screen != models.ScreenCrisis {
			return 0
		}
		s.Crisis = nil
		s.Screen = models.ScreenMap
		if s.Session != nil {
			s.Screen = models.ScreenDialog
		}
		return store.TopicCrisis | store.TopicScreen
	})
}

// scheduleTransition opens screen after the transition delay unless cancelled first.
func (e *Engine) scheduleTransition(screen models.Screen) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transition != nil {
		e.transition.Stop()
	}
	e.transitionSeq++
	seq := e.transitionSeq
	e.logger.Debug("transition scheduled", zap.String("screen", string(screen)), zap.Duration("delay", e.transitionDelay))
	e.transition = time.AfterFunc(e.transitionDelay, func() { e.fireTransition(seq, screen) })
}

func (e *Engine) fireTransition(seq uint64, screen models.Screen) {
	e.mu.Lock()
	if seq != e.transitionSeq {
		e.mu.Unlock()
		return
	}
	e.transition = nil
	e.mu.Unlock()

	e.store.Update(func(s *store.State) store.Topic {
		if s.Crisis != nil || s.Screen != models.ScreenDialog {
			return 0
		}
		s.Screen = screen
		return store.TopicScreen
	})
}

func (e *Engine) cancelTransition() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transitionSeq++
	if e.transition != nil {
		e.transition.Stop()
		e.transition = nil
	}
}

// TransitionPending reports whether a mini-game screen is scheduled to open.
func (e *Engine) TransitionPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transition != nil
}
