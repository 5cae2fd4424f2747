package player

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/inner-city/internal/models"
)

var testOptions = []districtOption{{Key: "harbor", Name: "Гавань"}, {Key: "oasis", Name: "Оазис"}}

func TestCleanYAML(t *testing.T) {
	in := "```yaml\naction: end\n```\n"
	assert.Equal(t, "action: end", cleanYAML(in))
	assert.Equal(t, "action: end", cleanYAML("  action: end  "))
}

func TestParseMood(t *testing.T) {
	m, err := parseMood("```yaml\ndistrict: oasis\nemotion: Тревога\nintensity: 7\n```", testOptions)
	require.NoError(t, err)
	assert.Equal(t, Mood{District: "oasis", Emotion: "Тревога", Intensity: 7}, m)
}

func TestParseMoodClampsAndFallsBack(t *testing.T) {
	m, err := parseMood("district: tower\nemotion: грусть\nintensity: 42", testOptions)
	require.NoError(t, err)
	assert.Equal(t, "harbor", m.District, "unknown district falls back to the first open one")
	assert.Equal(t, 10, m.Intensity)

	m, err = parseMood("district: oasis\nemotion: грусть\nintensity: 0", testOptions)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Intensity)

	_, err = parseMood("district: oasis\nintensity: 3", testOptions)
	assert.Error(t, err)

	_, err = parseMood("district: [oasis", testOptions)
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestParseTurn(t *testing.T) {
	tests := []struct {
		in      string
		want    Turn
		wantErr bool
	}{
		{in: "action: chat\nmessage: Мне тревожно", want: Turn{Action: ActionChat, Message: "Мне тревожно"}},
		{in: "message: Привет", want: Turn{Action: ActionChat, Message: "Привет"}},
		{in: "```\naction: Step\n```", want: Turn{Action: ActionStep}},
		{in: "action: exercise", want: Turn{Action: ActionExercise}},
		{in: "action: end\nmessage: Спасибо", want: Turn{Action: ActionEnd, Message: "Спасибо"}},
		{in: "action: chat", wantErr: true},
		{in: "action: dance", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTurn(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenDistricts(t *testing.T) {
	p := &models.Progress{Districts: map[string]models.DistrictState{
		"tower":  {Name: "Башня"},
		"oasis":  {Name: "Оазис", Unlocked: true},
		"harbor": {Name: "Гавань", Unlocked: true},
	}}
	assert.Equal(t, testOptions, openDistricts(p))
	assert.Empty(t, openDistricts(nil))
}

func TestRenderChooseMood(t *testing.T) {
	out, err := render(chooseMoodTmpl, struct {
		Districts []districtOption
		Hint      string
	}{testOptions, "студентка перед сессией"})
	require.NoError(t, err)
	assert.Contains(t, out, "- harbor: Гавань")
	assert.Contains(t, out, "- oasis: Оазис")
	assert.Contains(t, out, "студентка перед сессией")
}

func TestRenderTurnKeepsRecentChat(t *testing.T) {
	var chat []models.ChatMessage
	for i := range 12 {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAgent
		}
		chat = append(chat, models.ChatMessage{Role: role, Text: fmt.Sprintf("msg-%02d", i)})
	}
	mood := Mood{District: "Оазис", Emotion: "Тревога", Intensity: 6}

	out, err := renderTurn(mood, chat, 3, 10)
	require.NoError(t, err)
	assert.Contains(t, out, `district "Оазис" feeling "Тревога" at intensity 6`)
	assert.Contains(t, out, "Turn 3 of 10.")
	assert.NotContains(t, out, "msg-03")
	assert.Contains(t, out, "You: msg-04")
	assert.Contains(t, out, "Aira: msg-11")
	assert.Equal(t, chatWindow, strings.Count(out, "msg-"))
}
