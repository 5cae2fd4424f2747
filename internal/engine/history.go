package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
)

// LoadHistory fetches the last limit sessions and the agent's memory notes.
// A non-positive limit uses the configured default.
func (e *Engine) LoadHistory(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = e.historyLimit
	}
	gen := e.store.Begin(store.OpHistory)
	e.logger.Debug("load history", zap.String("op", "load_history"), zap.Int("limit", limit))

	resp, err := e.backend.History(ctx, limit)
	if err != nil {
		if !e.store.Current(store.OpHistory, gen) {
			return nil
		}
		return e.fail("load_history", err)
	}
	e.store.Commit(store.OpHistory, gen, func(s *store.State) store.Topic {
		s.History = models.History{Sessions: resp.Sessions, AgentMemory: resp.AgentMemory}
		return store.TopicHistory
	})
	return nil
}
