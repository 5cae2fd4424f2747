package models

import "time"

// Progress is the server-authoritative player progress returned by /api/progress.
type Progress struct {
	StabilityPoints  int                      `json:"stability_points"`
	Effort           int                      `json:"effort"`
	ActsCompleted    int                      `json:"acts_completed"`
	LastSession      *Timestamp               `json:"last_session"`
	Districts        map[string]DistrictState `json:"districts"`
	DistrictSessions map[string]int           `json:"district_sessions"`
	ActionsHistory   map[string]int           `json:"actions_history"`
	OwnedCards       []string                 `json:"owned_cards"`
	AvailableCards   []Card                   `json:"available_cards"`
	EquippedCard     *string                  `json:"equipped_card"`
	CompletedLevels  []string                 `json:"completed_levels"`
	GuruModeUnlocked bool                     `json:"guru_mode_unlocked"`
}

// DistrictState describes one district of the city map.
type DistrictState struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Theme       string      `json:"theme,omitempty"`
	Level       int         `json:"level"`
	Unlocked    bool        `json:"unlocked"`
	Visual      VisualState `json:"visual"`
}

// VisualState drives how lit (or foggy) a district looks.
type VisualState struct {
	Brightness  float64 `json:"brightness"`
	FogDensity  float64 `json:"fog_density"`
	LightsCount int     `json:"lights_count"`
}

// Session is an active reflection session. LevelID and Act are assigned by the server.
type Session struct {
	District  string     `json:"district"`
	Emotion   string     `json:"emotion"`
	Intensity int        `json:"intensity"`
	LevelID   string     `json:"level_id,omitempty"`
	Act       int        `json:"act,omitempty"`
	Unlocks   []string   `json:"unlocks,omitempty"`
	StartedAt *Timestamp `json:"started_at,omitempty"`
}

// DistrictInfo is the static description sent alongside a session start.
type DistrictInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Theme       string `json:"theme,omitempty"`
}

// SessionSummary is what the session panel shows while a session is active.
type SessionSummary struct {
	DistrictName string
	Emotion      string
	Intensity    int
	LevelID      string
	Act          int
	Greeting     string
}

type Role string

const (
	RoleAgent Role = "agent"
	RoleUser  Role = "user"
)

type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusDelivered MessageStatus = "delivered"
	StatusFailed    MessageStatus = "failed"
)

// ChatMessage is one entry of the dialog transcript.
type ChatMessage struct {
	// ID is local and only used to pair a reply with its request.
	ID     int           `json:"-"`
	Role   Role          `json:"role"`
	Text   string        `json:"text"`
	Status MessageStatus `json:"status,omitempty"`
}

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Card is a collectible card as listed by the cards endpoints.
type Card struct {
	CardID      string `json:"card_id"`
	Name        string `json:"name"`
	Rarity      Rarity `json:"rarity"`
	Type        string `json:"type"`
	Description string `json:"description"`
	EffortCost  int    `json:"effort_cost"`
}

// Inventory is the detailed card state loaded from /api/cards/owned and /api/cards/available.
type Inventory struct {
	Loaded    bool
	Owned     []Card
	Available []Card
	Equipped  string
	Effort    int
}

// CardEffect is one effect reported by /api/cards/activate.
type CardEffect struct {
	Type     string `json:"type"`
	Value    int    `json:"value,omitempty"`
	District string `json:"district,omitempty"`
	Amount   int    `json:"amount,omitempty"`
}

// Helpline is a crisis resource, rendered verbatim.
type Helpline struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
}

// Crisis is set when the agent flags a chat turn as high risk.
type Crisis struct {
	Message   string
	Helplines []Helpline
}

// HistoryEntry is one past session from /api/history.
type HistoryEntry struct {
	District     string     `json:"district"`
	Emotion      string     `json:"emotion"`
	Intensity    int        `json:"intensity"`
	LevelID      string     `json:"level_id,omitempty"`
	PointsEarned int        `json:"points_earned"`
	Timestamp    *Timestamp `json:"timestamp"`
}

// MemoryEntry is one note the agent keeps about the player.
type MemoryEntry struct {
	Text      string     `json:"text"`
	Timestamp *Timestamp `json:"timestamp"`
}

// History aggregates past sessions and what the agent remembers about the player.
type History struct {
	Sessions    []HistoryEntry
	AgentMemory []MemoryEntry
}

// Notice is a transient notification shown to the user.
type Notice struct {
	Text  string
	Error bool
}

// Screen names the view the client is currently showing.
type Screen string

const (
	ScreenMap       Screen = "map"
	ScreenDialog    Screen = "dialog"
	ScreenCrisis    Screen = "crisis"
	ScreenBreathing Screen = "breathing"
	ScreenPlacement Screen = "placement"
	ScreenBoss      Screen = "boss"
	ScreenGuru      Screen = "guru"
)

// Boss is an obstacle the server raises from the player's patterns.
type Boss struct {
	BossID           string            `json:"boss_id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Dialogue         BossDialogue      `json:"dialogue"`
	DefeatConditions []DefeatCondition `json:"defeat_conditions"`
	// Finale marks the last boss. Defeating it unlocks guru mode.
	Finale bool `json:"finale"`
}

type BossDialogue struct {
	Appearance string `json:"appearance"`
	Defeat     string `json:"defeat"`
}

// DefeatCondition is one way to beat a boss. Type is series, card or full_session.
type DefeatCondition struct {
	Type     string `json:"type"`
	Action   string `json:"action,omitempty"`
	Count    int    `json:"count,omitempty"`
	CardID   string `json:"card_id,omitempty"`
	District string `json:"district,omitempty"`
}

// Achievement is a cosmetic unlock kept on local disk only.
type Achievement struct {
	Name       string    `yaml:"name"`
	UnlockedAt time.Time `yaml:"unlocked_at"`
}
