// Package player is a model-driven stand-in for a person using the client. It
// picks a district and a mood, then decides turn by turn whether to write to
// the agent, report a step, finish an exercise or close the session.
package player

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"gopkg.in/yaml.v3"

	"github.com/tatianab/inner-city/internal/models"
)

//go:embed prompts/choose_mood.txt
var chooseMoodPrompt string

//go:embed prompts/next_turn.txt
var nextTurnPrompt string

var (
	chooseMoodTmpl = template.Must(template.New("choose_mood").Parse(chooseMoodPrompt))
	nextTurnTmpl   = template.Must(template.New("next_turn").Parse(nextTurnPrompt))
)

const DefaultModel = "gemini-2.5-flash"

// chatWindow is how many recent chat entries go into a turn prompt.
const chatWindow = 8

// Action is what the player does on a turn.
type Action string

const (
	ActionChat     Action = "chat"
	ActionStep     Action = "step"
	ActionExercise Action = "exercise"
	ActionEnd      Action = "end"
)

// Mood opens a session.
type Mood struct {
	District  string `yaml:"district"`
	Emotion   string `yaml:"emotion"`
	Intensity int    `yaml:"intensity"`
}

// Turn is one decision of the player.
type Turn struct {
	Action  Action `yaml:"action"`
	Message string `yaml:"message"`
}

type Player struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func New(ctx context.Context, apiKey, model string) (*Player, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("player: missing Gemini API key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = DefaultModel
	}
	return &Player{client: client, model: client.GenerativeModel(model)}, nil
}

func (p *Player) Close() {
	p.client.Close()
}

type districtOption struct {
	Key  string
	Name string
}

// ChooseMood asks the model for a district among the unlocked ones, an emotion
// and an intensity. hint seeds the character and may be empty.
func (p *Player) ChooseMood(ctx context.Context, progress *models.Progress, hint string) (Mood, error) {
	options := openDistricts(progress)
	if len(options) == 0 {
		return Mood{}, fmt.Errorf("player: no unlocked districts")
	}
	prompt, err := render(chooseMoodTmpl, struct {
		Districts []districtOption
		Hint      string
	}{options, hint})
	if err != nil {
		return Mood{}, err
	}
	text, err := p.generate(ctx, prompt)
	if err != nil {
		return Mood{}, err
	}
	return parseMood(text, options)
}

// NextTurn asks the model what to do given the conversation so far.
func (p *Player) NextTurn(ctx context.Context, mood Mood, chat []models.ChatMessage, turn, maxTurns int) (Turn, error) {
	prompt, err := renderTurn(mood, chat, turn, maxTurns)
	if err != nil {
		return Turn{}, err
	}
	text, err := p.generate(ctx, prompt)
	if err != nil {
		return Turn{}, err
	}
	return parseTurn(text)
}

func (p *Player) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content returned from Gemini")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response type from Gemini")
	}
	return string(text), nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderTurn(mood Mood, chat []models.ChatMessage, turn, maxTurns int) (string, error) {
	if len(chat) > chatWindow {
		chat = chat[len(chat)-chatWindow:]
	}
	return render(nextTurnTmpl, struct {
		Mood
		Chat     []models.ChatMessage
		Turn     int
		MaxTurns int
	}{mood, chat, turn, maxTurns})
}

func openDistricts(p *models.Progress) []districtOption {
	if p == nil {
		return nil
	}
	var out []districtOption
	for key, d := range p.Districts {
		if d.Unlocked {
			out = append(out, districtOption{Key: key, Name: d.Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// cleanYAML strips the code fence models like to wrap YAML in.
func cleanYAML(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```yaml")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseMood(text string, options []districtOption) (Mood, error) {
	clean := cleanYAML(text)
	var m Mood
	if err := yaml.Unmarshal([]byte(clean), &m); err != nil {
		return Mood{}, fmt.Errorf("failed to parse YAML: %v\nOutput was: %s", err, clean)
	}
	m.District = strings.TrimSpace(m.District)
	m.Emotion = strings.TrimSpace(m.Emotion)

	known := false
	for _, o := range options {
		if o.Key == m.District {
			known = true
			break
		}
	}
	if !known {
		m.District = options[0].Key
	}
	if m.Emotion == "" {
		return Mood{}, fmt.Errorf("player: empty emotion in %q", clean)
	}
	m.Intensity = min(max(m.Intensity, 1), 10)
	return m, nil
}

func parseTurn(text string) (Turn, error) {
	clean := cleanYAML(text)
	var t Turn
	if err := yaml.Unmarshal([]byte(clean), &t); err != nil {
		return Turn{}, fmt.Errorf("failed to parse YAML: %v\nOutput was: %s", err, clean)
	}
	t.Action = Action(strings.ToLower(strings.TrimSpace(string(t.Action))))
	t.Message = strings.TrimSpace(t.Message)

	switch t.Action {
	case ActionStep, ActionExercise, ActionEnd:
	case ActionChat, "":
		if t.Message == "" {
			return Turn{}, fmt.Errorf("player: chat turn without a message")
		}
		t.Action = ActionChat
	default:
		return Turn{}, fmt.Errorf("player: unknown action %q", t.Action)
	}
	return t, nil
}
