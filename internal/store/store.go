// Package store holds the client's single mutable application state.
//
// All mutations go through Update or Commit, which run under one lock and then
// notify subscribers outside of it. Readers work on deep copies returned by
// Snapshot, so no caller ever holds a reference into the live state.
package store

import (
	"maps"
	"slices"
	"sync"

	"github.com/tatianab/inner-city/internal/models"
)

// Topic is a bitmask naming the parts of State a change touched.
type Topic uint32

const (
	TopicProgress Topic = 1 << iota
	TopicSession
	TopicChat
	TopicCards
	TopicOffline
	TopicCrisis
	TopicNotice
	TopicScreen
	TopicLocks
	TopicHistory
	TopicAchievements
	TopicBoss
	TopicGuru

	TopicAll Topic = 1<<iota - 1
)

// Has reports whether t includes any topic of o.
func (t Topic) Has(o Topic) bool {
	return t&o != 0
}

// Change is delivered to subscribers after a committed mutation.
type Change struct {
	Topics Topic
}

// Phase is the session lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseActive
	PhaseEnding
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseActive:
		return "active"
	case PhaseEnding:
		return "ending"
	}
	return "unknown"
}

// Op names a logical operation whose responses are generation-checked.
type Op string

const (
	OpProgress Op = "progress"
	OpCards    Op = "cards"
	OpHistory  Op = "history"
	OpBoss     Op = "boss"
)

// State is the whole client state.
type State struct {
	Progress *models.Progress
	Offline  bool

	Phase   Phase
	Session *models.Session
	Summary *models.SessionSummary
	// SessionBonus is the mini-game bonus earned in the active session.
	SessionBonus int

	Chat   []models.ChatMessage
	Crisis *models.Crisis

	Inventory models.Inventory
	History   models.History

	// Boss is the boss the server currently reports, if any.
	Boss *models.Boss
	// Guru is the transcript of guru-mode questions.
	Guru []models.ChatMessage

	Notice *models.Notice
	Screen models.Screen

	// Locks holds the controls disabled while their request is in flight.
	Locks map[string]bool

	Achievements []models.Achievement
	// DeliveredMessages counts user chat messages the agent answered in this process.
	DeliveredMessages int
}

// Store is the shared state container. Create one with New and pass it to controllers.
type Store struct {
	mu    sync.Mutex
	state State
	gens  map[Op]uint64

	lmu       sync.Mutex
	nextID    int
	listeners []listener
}

type listener struct {
	id int
	fn func(Change)
}

// New creates an empty store showing the map screen.
func New() *Store {
	return &Store{
		state: State{
			Screen: models.ScreenMap,
			Locks:  map[string]bool{},
		},
		gens: map[Op]uint64{},
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Update runs fn under the store lock. fn returns the topics it changed;
// subscribers are notified only when that is non-zero.
func (s *Store) Update(fn func(*State) Topic) Topic {
	s.mu.Lock()
	topics := fn(&s.state)
	s.mu.Unlock()
	s.notify(topics)
	return topics
}

// Begin issues a new generation for op. Responses carrying an older generation
// are discarded by Commit.
func (s *Store) Begin(op Op) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[op]++
	return s.gens[op]
}

// Commit applies fn only if gen is still the latest generation issued for op.
// It reports whether fn ran.
func (s *Store) Commit(op Op, gen uint64, fn func(*State) Topic) bool {
	s.mu.Lock()
	if s.gens[op] != gen {
		s.mu.Unlock()
		return false
	}
	topics := fn(&s.state)
	s.mu.Unlock()
	s.notify(topics)
	return true
}

// Current reports whether gen is the latest generation for op.
func (s *Store) Current(op Op, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[op] == gen
}

// TryLock disables control. It returns false if control is already disabled.
func (s *Store) TryLock(control string) bool {
	locked := false
	s.Update(func(st *State) Topic {
		if st.Locks[control] {
			return 0
		}
		st.Locks[control] = true
		locked = true
		return TopicLocks
	})
	return locked
}

// Unlock re-enables control.
func (s *Store) Unlock(control string) {
	s.Update(func(st *State) Topic {
		if !st.Locks[control] {
			return 0
		}
		delete(st.Locks, control)
		return TopicLocks
	})
}

// Notify records a transient notice for the UI.
func (s *Store) Notify(text string, isError bool) {
	s.Update(func(st *State) Topic {
		st.Notice = &models.Notice{Text: text, Error: isError}
		return TopicNotice
	})
}

// Subscribe registers fn for every committed change. Listeners run in
// registration order on the goroutine that made the change.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(l listener) bool { return l.id == id })
	}
}

func (s *Store) notify(topics Topic) {
	if topics == 0 {
		return
	}
	s.lmu.Lock()
	ls := slices.Clone(s.listeners)
	s.lmu.Unlock()
	for _, l := range ls {
		l.fn(Change{Topics: topics})
	}
}

// Effort is the freshest spendable effort the client knows about.
func (st State) Effort() int {
	if st.Inventory.Loaded {
		return st.Inventory.Effort
	}
	if st.Progress != nil {
		return st.Progress.Effort
	}
	return 0
}

// Locked reports whether control is disabled.
func (st State) Locked(control string) bool {
	return st.Locks[control]
}

// AvailableCard finds id among the cards that can be unlocked.
func (st State) AvailableCard(id string) (models.Card, bool) {
	cards := st.Inventory.Available
	if !st.Inventory.Loaded && st.Progress != nil {
		cards = st.Progress.AvailableCards
	}
	for _, c := range cards {
		if c.CardID == id {
			return c, true
		}
	}
	return models.Card{}, false
}

// Owns reports whether id is among the owned cards.
func (st State) Owns(id string) bool {
	if st.Inventory.Loaded {
		return slices.ContainsFunc(st.Inventory.Owned, func(c models.Card) bool { return c.CardID == id })
	}
	return st.Progress != nil && slices.Contains(st.Progress.OwnedCards, id)
}

// Equipped returns the equipped card id, or "".
func (st State) Equipped() string {
	if st.Inventory.Loaded {
		return st.Inventory.Equipped
	}
	if st.Progress != nil && st.Progress.EquippedCard != nil {
		return *st.Progress.EquippedCard
	}
	return ""
}

// Clone returns a deep copy of st.
func (st State) Clone() State {
	out := st
	out.Progress = CloneProgress(st.Progress)
	if st.Session != nil {
		sess := *st.Session
		sess.Unlocks = slices.Clone(st.Session.Unlocks)
		out.Session = &sess
	}
	if st.Summary != nil {
		sum := *st.Summary
		out.Summary = &sum
	}
	out.Chat = slices.Clone(st.Chat)
	if st.Crisis != nil {
		c := *st.Crisis
		c.Helplines = slices.Clone(st.Crisis.Helplines)
		out.Crisis = &c
	}
	out.Inventory.Owned = slices.Clone(st.Inventory.Owned)
	out.Inventory.Available = slices.Clone(st.Inventory.Available)
	out.History.Sessions = slices.Clone(st.History.Sessions)
	out.History.AgentMemory = slices.Clone(st.History.AgentMemory)
	if st.Notice != nil {
		n := *st.Notice
		out.Notice = &n
	}
	out.Locks = maps.Clone(st.Locks)
	if out.Locks == nil {
		out.Locks = map[string]bool{}
	}
	out.Achievements = slices.Clone(st.Achievements)
	if st.Boss != nil {
		b := *st.Boss
		b.DefeatConditions = slices.Clone(st.Boss.DefeatConditions)
		out.Boss = &b
	}
	out.Guru = slices.Clone(st.Guru)
	return out
}

// CloneProgress deep-copies p. A nil p yields nil.
func CloneProgress(p *models.Progress) *models.Progress {
	if p == nil {
		return nil
	}
	out := *p
	if p.LastSession != nil {
		ts := *p.LastSession
		out.LastSession = &ts
	}
	out.Districts = maps.Clone(p.Districts)
	out.DistrictSessions = maps.Clone(p.DistrictSessions)
	out.ActionsHistory = maps.Clone(p.ActionsHistory)
	out.OwnedCards = slices.Clone(p.OwnedCards)
	out.AvailableCards = slices.Clone(p.AvailableCards)
	out.CompletedLevels = slices.Clone(p.CompletedLevels)
	if p.EquippedCard != nil {
		eq := *p.EquippedCard
		out.EquippedCard = &eq
	}
	return &out
}
