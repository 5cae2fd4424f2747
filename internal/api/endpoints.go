package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tatianab/inner-city/internal/models"
)

// StartSessionRequest is the body of POST /api/session/start.
type StartSessionRequest struct {
	District  string `json:"district"`
	Emotion   string `json:"emotion"`
	Intensity int    `json:"intensity"`
}

type StartSessionResponse struct {
	Session       models.Session       `json:"session"`
	DistrictInfo  *models.DistrictInfo `json:"district_info"`
	AgentGreeting string               `json:"agent_greeting"`
	Progress      *models.Progress     `json:"progress"`
}

type endSessionRequest struct {
	Session models.Session `json:"session"`
	Points  *int           `json:"points,omitempty"`
}

type EndSessionResponse struct {
	PointsEarned      int              `json:"points_earned"`
	TotalPoints       int              `json:"total_points"`
	DistrictLevel     int              `json:"district_level"`
	UnlockedDistricts []string         `json:"unlocked_districts"`
	Progress          *models.Progress `json:"progress"`
}

// ChatRequest is the body of POST /api/agent/chat.
type ChatRequest struct {
	Message        string `json:"message"`
	District       string `json:"district"`
	Emotion        string `json:"emotion"`
	SessionContext any    `json:"session_context"`
}

type ChatResponse struct {
	Response  string            `json:"response"`
	IsCrisis  bool              `json:"is_crisis"`
	BlockGame bool              `json:"block_game"`
	Helplines []models.Helpline `json:"helplines"`
}

// Task describes what was completed in POST /api/task/complete.
type Task struct {
	Type        string `json:"type"`
	ActionKey   string `json:"action_key"`
	Description string `json:"description,omitempty"`
	LevelID     string `json:"level_id,omitempty"`
	Act         int    `json:"act,omitempty"`
}

type TaskResult struct {
	Completed bool `json:"completed"`
}

type TaskRequest struct {
	Task   Task       `json:"task"`
	Result TaskResult `json:"result"`
	// Duration is in milliseconds.
	Duration *int64 `json:"duration,omitempty"`
}

type Rewards struct {
	StabilityPoints int `json:"stability_points"`
	Effort          int `json:"effort"`
}

type TaskResponse struct {
	EffortEarned int      `json:"effort_earned"`
	TotalEffort  int      `json:"total_effort"`
	Rewards      *Rewards `json:"rewards"`
}

type OwnedCardsResponse struct {
	Cards    []models.Card `json:"cards"`
	Equipped *string       `json:"equipped"`
	Effort   int           `json:"effort"`
}

type AvailableCardsResponse struct {
	Cards  []models.Card `json:"cards"`
	Effort int           `json:"effort"`
}

type cardRequest struct {
	CardID string `json:"card_id"`
}

type UnlockCardResponse struct {
	Card models.Card `json:"card"`
}

type EquipCardResponse struct {
	Equipped string `json:"equipped"`
	CardName string `json:"card_name"`
}

type ActivateCardResponse struct {
	Effects  []models.CardEffect `json:"effects"`
	Consumed bool                `json:"consumed"`
	Expired  bool                `json:"expired"`
}

type HistoryResponse struct {
	Sessions    []models.HistoryEntry `json:"sessions"`
	AgentMemory []models.MemoryEntry  `json:"agent_memory"`
}

type BossCheckResponse struct {
	BossSpawned bool         `json:"boss_spawned"`
	Boss        *models.Boss `json:"boss"`
}

type bossRequest struct {
	BossID string `json:"boss_id"`
}

type BossRewards struct {
	StabilityPoints int    `json:"stability_points"`
	Effort          int    `json:"effort"`
	Achievement     string `json:"achievement"`
}

type DefeatBossResponse struct {
	Boss    models.Boss `json:"boss"`
	Message string      `json:"message"`
	Rewards BossRewards `json:"rewards"`
}

type guruRequest struct {
	Question string `json:"question"`
}

type GuruResponse struct {
	Response string `json:"response"`
	IsCrisis bool   `json:"is_crisis"`
}

func (c *Client) GetProgress(ctx context.Context) (*models.Progress, error) {
	var out models.Progress
	if err := c.Do(ctx, http.MethodGet, "/api/progress", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartSession(ctx context.Context, req StartSessionRequest) (*StartSessionResponse, error) {
	var out StartSessionResponse
	if err := c.Do(ctx, http.MethodPost, "/api/session/start", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EndSession closes session. points, when non-nil, overrides the server's default award.
func (c *Client) EndSession(ctx context.Context, session models.Session, points *int) (*EndSessionResponse, error) {
	var out EndSessionResponse
	body := endSessionRequest{Session: session, Points: points}
	if err := c.Do(ctx, http.MethodPost, "/api/session/end", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.Do(ctx, http.MethodPost, "/api/agent/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteTask(ctx context.Context, req TaskRequest) (*TaskResponse, error) {
	var out TaskResponse
	if err := c.Do(ctx, http.MethodPost, "/api/task/complete", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) OwnedCards(ctx context.Context) (*OwnedCardsResponse, error) {
	var out OwnedCardsResponse
	if err := c.Do(ctx, http.MethodGet, "/api/cards/owned", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AvailableCards(ctx context.Context) (*AvailableCardsResponse, error) {
	var out AvailableCardsResponse
	if err := c.Do(ctx, http.MethodGet, "/api/cards/available", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UnlockCard(ctx context.Context, cardID string) (*UnlockCardResponse, error) {
	var out UnlockCardResponse
	if err := c.Do(ctx, http.MethodPost, "/api/cards/unlock", cardRequest{CardID: cardID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EquipCard(ctx context.Context, cardID string) (*EquipCardResponse, error) {
	var out EquipCardResponse
	if err := c.Do(ctx, http.MethodPost, "/api/cards/equip", cardRequest{CardID: cardID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ActivateCard(ctx context.Context, cardID string) (*ActivateCardResponse, error) {
	var out ActivateCardResponse
	if err := c.Do(ctx, http.MethodPost, "/api/cards/activate", cardRequest{CardID: cardID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Save(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/api/save", nil, nil)
}

func (c *Client) History(ctx context.Context, limit int) (*HistoryResponse, error) {
	var out HistoryResponse
	if err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/api/history?limit=%d", limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CheckBoss(ctx context.Context) (*BossCheckResponse, error) {
	var out BossCheckResponse
	if err := c.Do(ctx, http.MethodGet, "/api/boss/check", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DefeatBoss(ctx context.Context, bossID string) (*DefeatBossResponse, error) {
	var out DefeatBossResponse
	if err := c.Do(ctx, http.MethodPost, "/api/boss/defeat", bossRequest{BossID: bossID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AskGuru sends a free question to the agent. The server answers 403 until guru mode is unlocked.
func (c *Client) AskGuru(ctx context.Context, question string) (*GuruResponse, error) {
	var out GuruResponse
	if err := c.Do(ctx, http.MethodPost, "/api/guru/ask", guruRequest{Question: question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
