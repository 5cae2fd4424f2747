package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tatianab/inner-city/internal/api"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
)

// LoadCards reloads the owned and available lists together. Both requests run in
// parallel and the inventory is replaced only when both succeed.
func (e *Engine) LoadCards(ctx context.Context) error {
	gen := e.store.Begin(store.OpCards)
	e.logger.Debug("load cards", zap.String("op", "load_cards"), zap.Uint64("generation", gen))

	var (
		owned     *api.OwnedCardsResponse
		available *api.AvailableCardsResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		owned, err = e.backend.OwnedCards(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		available, err = e.backend.AvailableCards(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if !e.store.Current(store.OpCards, gen) {
			return nil
		}
		return e.fail("load_cards", err)
	}

	inv := models.Inventory{
		Loaded:    true,
		Owned:     owned.Cards,
		Available: available.Cards,
		Effort:    available.Effort,
	}
	if owned.Equipped != nil {
		inv.Equipped = *owned.Equipped
	}
	if !e.store.Commit(store.OpCards, gen, func(s *store.State) store.Topic {
		s.Inventory = inv
		return store.TopicCards
	}) {
		e.logger.Debug("stale cards dropped", zap.Uint64("generation", gen))
	}
	return nil
}

// UnlockControl, EquipControl and ActivateControl name the lock held while the
// matching card request is in flight.
func UnlockControl(id string) string   { return "unlock:" + id }
func EquipControl(id string) string    { return "equip:" + id }
func ActivateControl(id string) string { return "activate:" + id }

// UnlockCard spends effort on an available card. Cards that are not available,
// or cost more than the known effort, fail without a request.
func (e *Engine) UnlockCard(ctx context.Context, id string) error {
	const op = "unlock_card"
	snap := e.store.Snapshot()
	card, ok := snap.AvailableCard(id)
	if !ok {
		return e.fail(op, fmt.Errorf("%w: %s", ErrUnknownCard, id))
	}
	if effort := snap.Effort(); effort < card.EffortCost {
		return e.fail(op, fmt.Errorf("%w (нужно %d, есть %d)", ErrInsufficientEffort, card.EffortCost, effort))
	}

	err := e.withControl(ctx, op, UnlockControl(id), func() (string, error) {
		resp, err := e.backend.UnlockCard(ctx, id)
		if err != nil {
			return "", err
		}
		name := resp.Card.Name
		if name == "" {
			name = card.Name
		}
		return "Карта открыта: " + name, nil
	})
	if err == nil {
		e.award(AchievementCollector)
	}
	return err
}

// EquipCard puts an owned card into the active slot.
func (e *Engine) EquipCard(ctx context.Context, id string) error {
	const op = "equip_card"
	if !e.store.Snapshot().Owns(id) {
		return e.fail(op, fmt.Errorf("%w: %s", ErrCardNotOwned, id))
	}
	return e.withControl(ctx, op, EquipControl(id), func() (string, error) {
		resp, err := e.backend.EquipCard(ctx, id)
		if err != nil {
			return "", err
		}
		name := resp.CardName
		if name == "" {
			name = id
		}
		return "Карта экипирована: " + name, nil
	})
}

// ActivateCard uses the equipped card. The server decides whether it is consumed.
func (e *Engine) ActivateCard(ctx context.Context, id string) error {
	const op = "activate_card"
	if e.store.Snapshot().Equipped() != id {
		return e.fail(op, fmt.Errorf("%w: %s", ErrCardNotEquipped, id))
	}
	return e.withControl(ctx, op, ActivateControl(id), func() (string, error) {
		resp, err := e.backend.ActivateCard(ctx, id)
		if err != nil {
			return "", err
		}
		return describeActivation(resp), nil
	})
}

// withControl disables control for the duration of call and the reload that
// follows a success. The control is re-enabled on every path.
func (e *Engine) withControl(ctx context.Context, op, control string, call func() (string, error)) error {
	if !e.store.TryLock(control) {
		return e.fail(op, ErrBusy)
	}
	defer e.store.Unlock(control)
	e.logger.Debug("card action", zap.String("op", op), zap.String("control", control))

	notice, err := call()
	if err != nil {
		return e.fail(op, err)
	}
	e.store.Notify(notice, false)

	if err := e.LoadCards(ctx); err != nil {
		e.logger.Debug("reload cards after "+op, zap.Error(err))
	}
	e.reconcile(ctx, op)
	return nil
}

func describeActivation(resp *api.ActivateCardResponse) string {
	text := "Карта активирована"
	for _, eff := range resp.Effects {
		switch eff.Type {
		case "stability":
			text += fmt.Sprintf(", +%d стабильности", eff.Value)
		case "fog_reduction":
			text += fmt.Sprintf(", туман рассеян (%s, %d)", eff.District, eff.Amount)
		case "effort":
			text += fmt.Sprintf(", +%d Effort", eff.Value)
		}
	}
	if resp.Consumed {
		text += ". Карта израсходована"
	}
	return text
}
