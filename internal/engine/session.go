package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tatianab/inner-city/internal/api"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
)

// Task types posted to /api/task/complete.
const (
	TaskMicrostep = "microstep"
	TaskBreathing = "breathing"
	TaskPlacement = "placement"
)

// SessionPoints is the base award of a session, matching the server default.
const SessionPoints = 15

// ExerciseBonus is the bonus a completed mini-game adds to the session award.
func ExerciseBonus(kind string) int {
	switch kind {
	case TaskPlacement:
		return 5
	case TaskBreathing:
		return 3
	}
	return 0
}

// StartSession opens a reflection session. Validation happens before any request.
// A session that is starting, active or ending makes the call fail with
// ErrSessionActive. A failed start leaves the session state as it was.
func (e *Engine) StartSession(ctx context.Context, district, emotion string, intensity int) error {
	const op = "start_session"
	district = strings.TrimSpace(district)
	emotion = strings.TrimSpace(emotion)
	switch {
	case district == "":
		return e.fail(op, ErrEmptyDistrict)
	case emotion == "":
		return e.fail(op, ErrEmptyEmotion)
	case intensity < 1 || intensity > 10:
		return e.fail(op, fmt.Errorf("%w, получено %d", ErrIntensityRange, intensity))
	}

	started := false
	e.store.Update(func(s *store.State) store.Topic {
		if s.Phase != store.PhaseIdle {
			return 0
		}
		s.Phase = store.PhaseStarting
		started = true
		return store.TopicSession
	})
	if !started {
		return e.fail(op, ErrSessionActive)
	}
	e.logger.Debug("start session", zap.String("op", op), zap.String("district", district), zap.Int("intensity", intensity))

	resp, err := e.backend.StartSession(ctx, api.StartSessionRequest{District: district, Emotion: emotion, Intensity: intensity})
	if err != nil {
		e.store.Update(func(s *store.State) store.Topic {
			s.Phase = store.PhaseIdle
			return store.TopicSession
		})
		return e.fail(op, err)
	}

	session := resp.Session
	session.District = district
	session.Emotion = emotion
	if session.Intensity == 0 {
		session.Intensity = intensity
	}

	e.cancelTransition()
	e.store.Update(func(s *store.State) store.Topic {
		s.Phase = store.PhaseActive
		s.Session = &session
		s.Summary = &models.SessionSummary{
			DistrictName: districtName(s.Progress, district),
			Emotion:      emotion,
			Intensity:    session.Intensity,
			LevelID:      session.LevelID,
			Act:          session.Act,
			Greeting:     resp.AgentGreeting,
		}
		if resp.DistrictInfo != nil && resp.DistrictInfo.Name != "" {
			s.Summary.DistrictName = resp.DistrictInfo.Name
		}
		s.Chat = nil
		if resp.AgentGreeting != "" {
			s.Chat = append(s.Chat, e.agentMessage(resp.AgentGreeting))
		}
		if info := resp.DistrictInfo; info != nil {
			s.Chat = append(s.Chat, e.agentMessage(fmt.Sprintf("Мы в квартале: %s. %s", info.Name, info.Description)))
		}
		s.SessionBonus = 0
		s.Crisis = nil
		s.Screen = models.ScreenDialog
		return store.TopicSession | store.TopicChat | store.TopicCrisis | store.TopicScreen
	})
	e.logger.Info("session started", zap.String("district", district), zap.String("level_id", session.LevelID))

	e.reconcile(ctx, op)
	return nil
}

// EndSession closes the active session. points, when non-nil, overrides the award;
// otherwise a session with mini-game bonus sends SessionPoints plus the bonus and
// one without lets the server pick. Without an active session it does nothing and
// returns nil, nil. A failed end keeps the session so the user can retry.
func (e *Engine) EndSession(ctx context.Context, points *int) (*api.EndSessionResponse, error) {
	const op = "end_session"
	var session models.Session
	ending := false
	e.store.Update(func(s *store.State) store.Topic {
		if s.Phase != store.PhaseActive || s.Session == nil {
			return 0
		}
		session = *s.Session
		if points == nil && s.SessionBonus > 0 {
			total := SessionPoints + s.SessionBonus
			points = &total
		}
		s.Phase = store.PhaseEnding
		ending = true
		return store.TopicSession
	})
	if !ending {
		return nil, nil
	}
	e.logger.Debug("end session", zap.String("op", op), zap.String("district", session.District))

	resp, err := e.backend.EndSession(ctx, session, points)
	if err != nil {
		e.store.Update(func(s *store.State) store.Topic {
			s.Phase = store.PhaseActive
			return store.TopicSession
		})
		return nil, e.fail(op, err)
	}

	e.cancelTransition()
	e.store.Update(func(s *store.State) store.Topic {
		s.Phase = store.PhaseIdle
		s.Session = nil
		s.Summary = nil
		s.SessionBonus = 0
		s.Screen = models.ScreenMap
		s.Notice = &models.Notice{Text: "Сессия завершена: +" + plural(resp.PointsEarned, "очко", "очка", "очков")}
		return store.TopicSession | store.TopicScreen | store.TopicNotice
	})
	e.logger.Info("session ended", zap.Int("points_earned", resp.PointsEarned))

	e.reconcile(ctx, op)
	return resp, nil
}

// CompleteMicrostep rewards a small real-life step. It works with or without a session.
func (e *Engine) CompleteMicrostep(ctx context.Context) (*api.TaskResponse, error) {
	return e.completeTask(ctx, TaskMicrostep, nil)
}

// CompleteExercise reports a finished breathing or placement mini-game and returns
// to the dialog, or to the map when no session is active.
func (e *Engine) CompleteExercise(ctx context.Context, kind string, duration time.Duration) (*api.TaskResponse, error) {
	ms := duration.Milliseconds()
	resp, err := e.completeTask(ctx, kind, &ms)
	if err != nil {
		return nil, err
	}
	e.store.Update(func(s *store.State) store.Topic {
		var topics store.Topic
		next := models.ScreenMap
		if s.Session != nil {
			next = models.ScreenDialog
			s.SessionBonus += ExerciseBonus(kind)
			topics |= store.TopicSession
		}
		if s.Screen != next && s.Screen != models.ScreenCrisis {
			s.Screen = next
			topics |= store.TopicScreen
		}
		return topics
	})
	return resp, nil
}

// completeTask never sends the session's level or act: the server would record
// the whole level as completed.
func (e *Engine) completeTask(ctx context.Context, kind string, durationMS *int64) (*api.TaskResponse, error) {
	op := "complete_" + kind
	req := api.TaskRequest{
		Task:     api.Task{Type: kind, ActionKey: kind},
		Result:   api.TaskResult{Completed: true},
		Duration: durationMS,
	}
	e.logger.Debug("complete task", zap.String("op", op))

	resp, err := e.backend.CompleteTask(ctx, req)
	if err != nil {
		return nil, e.fail(op, err)
	}
	earned := resp.EffortEarned
	if earned == 0 && resp.Rewards != nil {
		earned = resp.Rewards.Effort
	}
	e.store.Notify(fmt.Sprintf("+%d Effort", earned), false)

	e.reconcile(ctx, op)
	return resp, nil
}

// Save asks the server to persist the player's progress.
func (e *Engine) Save(ctx context.Context) error {
	if err := e.backend.Save(ctx); err != nil {
		return e.fail("save", err)
	}
	e.store.Notify("Прогресс сохранён", false)
	return nil
}

func (e *Engine) agentMessage(text string) models.ChatMessage {
	return models.ChatMessage{ID: e.messageID(), Role: models.RoleAgent, Text: text, Status: models.StatusDelivered}
}

func (e *Engine) messageID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextMessageID++
	return e.nextMessageID
}
