package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/inner-city/internal/engine"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
)

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	agentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	lockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F")).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87D787"))

	crisisStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#FF5F5F")).
			Padding(1, 2)
)

var rarityColors = map[models.Rarity]lipgloss.Color{
	models.RarityCommon:    "#AAAAAA",
	models.RarityRare:      "#5FAFFF",
	models.RarityEpic:      "#AF87FF",
	models.RarityLegendary: "#FFD700",
}

// RenderOffline is the placeholder shown instead of progress while the server is unreachable.
func RenderOffline() string {
	return errorStyle.Render("Офлайн") + "\n" +
		"Не удалось загрузить прогресс с сервера.\n" +
		helpStyle.Render("Проверь соединение и набери /map, чтобы попробовать снова.")
}

// RenderStats shows the headline numbers of p.
func RenderStats(p *models.Progress, effort int) string {
	if p == nil {
		return titleStyle.Render("ПРОГРЕСС") + "\n(загрузка...)"
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("ПРОГРЕСС") + "\n")
	fmt.Fprintf(&b, "Стабильность: %d\n", p.StabilityPoints)
	fmt.Fprintf(&b, "Effort: %d\n", effort)
	fmt.Fprintf(&b, "Актов пройдено: %d\n", p.ActsCompleted)
	if p.LastSession != nil {
		fmt.Fprintf(&b, "Последняя сессия: %s\n", p.LastSession.Format("02.01.2006 15:04"))
	}
	if p.GuruModeUnlocked {
		b.WriteString("Режим гуру открыт: /guru <вопрос>\n")
	}
	return b.String()
}

// RenderDistricts lists the districts of p in key order.
func RenderDistricts(p *models.Progress) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("КВАРТАЛЫ") + "\n")
	if p == nil || len(p.Districts) == 0 {
		b.WriteString("(нет данных)\n")
		return b.String()
	}
	keys := make([]string, 0, len(p.Districts))
	for key := range p.Districts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		d := p.Districts[key]
		name := d.Name
		if name == "" {
			name = key
		}
		if !d.Unlocked {
			b.WriteString(lockedStyle.Render(fmt.Sprintf("  %s [%s] закрыт", name, key)) + "\n")
			continue
		}
		fmt.Fprintf(&b, "  %s [%s] ур. %d  свет %s  туман %s  огни %d",
			name, key, d.Level, meter(d.Visual.Brightness), meter(d.Visual.FogDensity), d.Visual.LightsCount)
		if n := p.DistrictSessions[key]; n > 0 {
			fmt.Fprintf(&b, "  сессий %d", n)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// meter draws v, clamped to [0,1], as five cells.
func meter(v float64) string {
	v = max(0, min(1, v))
	filled := int(v*5 + 0.5)
	return strings.Repeat("▮", filled) + strings.Repeat("▯", 5-filled)
}

// RenderCards lists owned and available cards with their lock and affordability state.
func RenderCards(st store.State) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("КАРТЫ") + "\n")
	if !st.Inventory.Loaded {
		b.WriteString("(набери /cards, чтобы загрузить)\n")
		return b.String()
	}
	effort := st.Effort()
	equipped := st.Equipped()

	b.WriteString("Мои:\n")
	if len(st.Inventory.Owned) == 0 {
		b.WriteString("  (пусто)\n")
	}
	for _, c := range st.Inventory.Owned {
		line := "  " + cardLabel(c)
		if c.CardID == equipped {
			line += " [экипирована]"
		}
		if st.Locked(engine.EquipControl(c.CardID)) || st.Locked(engine.ActivateControl(c.CardID)) {
			line += " (подождите...)"
		}
		b.WriteString(line + "\n")
	}

	fmt.Fprintf(&b, "Доступны (Effort %d):\n", effort)
	if len(st.Inventory.Available) == 0 {
		b.WriteString("  (пусто)\n")
	}
	for _, c := range st.Inventory.Available {
		line := fmt.Sprintf("  %s, цена %d", cardLabel(c), c.EffortCost)
		switch {
		case st.Locked(engine.UnlockControl(c.CardID)):
			line += " (открываем...)"
		case effort < c.EffortCost:
			line = lockedStyle.Render(line + " (недостаточно Effort)")
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func cardLabel(c models.Card) string {
	name := c.Name
	if name == "" {
		name = c.CardID
	}
	label := fmt.Sprintf("%s [%s]", name, c.CardID)
	if color, ok := rarityColors[c.Rarity]; ok {
		label = lipgloss.NewStyle().Foreground(color).Render(label)
	}
	return label
}

// RenderHistory lists past sessions and what the agent remembers.
func RenderHistory(h models.History) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("ИСТОРИЯ") + "\n")
	if len(h.Sessions) == 0 {
		b.WriteString("(сессий пока нет)\n")
	}
	for _, s := range h.Sessions {
		when := ""
		if s.Timestamp != nil {
			when = s.Timestamp.Format("02.01 15:04") + " "
		}
		fmt.Fprintf(&b, "  %s%s: %s (%d/10), +%d\n", when, s.District, s.Emotion, s.Intensity, s.PointsEarned)
	}
	if len(h.AgentMemory) > 0 {
		b.WriteString("Аира помнит:\n")
		for _, m := range h.AgentMemory {
			b.WriteString("  - " + m.Text + "\n")
		}
	}
	return b.String()
}

// RenderSession is the panel of the active session.
func RenderSession(sum *models.SessionSummary, phase store.Phase, bonus int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("СЕССИЯ") + "\n")
	switch {
	case phase == store.PhaseStarting:
		b.WriteString("Начинаем...\n")
		return b.String()
	case sum == nil:
		b.WriteString("Нет активной сессии\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Квартал: %s\n", sum.DistrictName)
	fmt.Fprintf(&b, "Эмоция: %s (%d/10)\n", sum.Emotion, sum.Intensity)
	if sum.LevelID != "" {
		fmt.Fprintf(&b, "Уровень: %s, акт %d\n", sum.LevelID, sum.Act)
	}
	if bonus > 0 {
		fmt.Fprintf(&b, "Бонус мини-игр: +%d\n", bonus)
	}
	if phase == store.PhaseEnding {
		b.WriteString("Завершаем...\n")
	}
	return b.String()
}

// RenderChat renders the dialog transcript wrapped to width. Zero width disables wrapping.
func RenderChat(chat []models.ChatMessage, width int) string {
	if len(chat) == 0 {
		return helpStyle.Render("Напиши Аире, что ты сейчас чувствуешь.")
	}
	user, agent := userStyle, agentStyle
	if width > 0 {
		user = user.Width(width)
		agent = agent.Width(width)
	}
	parts := make([]string, 0, len(chat))
	for _, m := range chat {
		if m.Role == models.RoleUser {
			text := "> " + m.Text
			switch m.Status {
			case models.StatusPending:
				text += " …"
			case models.StatusFailed:
				text += " (не доставлено)"
			}
			parts = append(parts, user.Render(text))
			continue
		}
		parts = append(parts, agent.Render(m.Text))
	}
	return strings.Join(parts, "\n\n")
}

// RenderCrisis shows the crisis message and every helpline exactly as received.
func RenderCrisis(c *models.Crisis) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(errorStyle.Render("Тебе сейчас нужна поддержка живого человека") + "\n\n")
	if c.Message != "" {
		b.WriteString(c.Message + "\n\n")
	}
	for _, h := range c.Helplines {
		b.WriteString(h.Name + ": " + h.Phone + "\n")
		if h.Description != "" {
			b.WriteString("  " + h.Description + "\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render("/chat вернуться к диалогу, /map на карту"))
	return crisisStyle.Render(b.String())
}

// RenderExercise is the instruction screen of a mini-game.
func RenderExercise(screen models.Screen) string {
	switch screen {
	case models.ScreenBreathing:
		return titleStyle.Render("ДЫХАНИЕ") + "\n\n" +
			"Вдох на 4 счёта. Задержка на 4. Выдох на 6.\nПовтори несколько раз.\n\n" +
			helpStyle.Render("/done когда закончишь, /chat вернуться")
	case models.ScreenPlacement:
		return titleStyle.Render("СФЕРЫ") + "\n\n" +
			"Назови три опоры, которые есть у тебя сейчас:\nчеловека, место и действие.\n\n" +
			helpStyle.Render("/done когда закончишь, /chat вернуться")
	}
	return ""
}

// RenderBoss is the boss encounter screen.
func RenderBoss(b *models.Boss) string {
	if b == nil {
		return helpStyle.Render("Босса сейчас нет. /map вернуться на карту")
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(strings.ToUpper(b.Name)) + "\n\n")
	if b.Finale {
		sb.WriteString(errorStyle.Render("Финальный босс") + "\n")
	}
	if b.Description != "" {
		sb.WriteString(b.Description + "\n")
	}
	if b.Dialogue.Appearance != "" {
		sb.WriteString("\n«" + b.Dialogue.Appearance + "»\n")
	}
	if len(b.DefeatConditions) > 0 {
		sb.WriteString("\nКак победить:\n")
		for _, c := range b.DefeatConditions {
			sb.WriteString("  - " + defeatLabel(c) + "\n")
		}
	}
	sb.WriteString("\n" + helpStyle.Render("/defeat когда условие выполнено, /map вернуться"))
	return sb.String()
}

func defeatLabel(c models.DefeatCondition) string {
	switch c.Type {
	case "series":
		return fmt.Sprintf("Серия действий «%s» (%dx)", c.Action, c.Count)
	case "card":
		if c.CardID != "" {
			return "Использовать карту " + c.CardID
		}
		return "Использовать особую карту"
	case "full_session":
		return "Полная сессия в квартале " + c.District
	}
	return c.Type
}

// RenderGuru is the guru-mode screen: free questions to the agent without tasks.
func RenderGuru(msgs []models.ChatMessage, width int) string {
	intro := titleStyle.Render("ВОПРОСЫ К АЙРЕ") + "\n" +
		"Хочешь задать мне что-то? Я здесь.\n" +
		helpStyle.Render("Это пространство без таймеров и заданий. Просто поддержка. /guru <вопрос>, /map выйти")
	if len(msgs) == 0 {
		return intro
	}
	return intro + "\n\n" + RenderChat(msgs, width)
}

// RenderAchievements lists local achievements.
func RenderAchievements(list []models.Achievement) string {
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("ДОСТИЖЕНИЯ") + "\n")
	for _, a := range list {
		b.WriteString("  ★ " + a.Name + "\n")
	}
	return b.String()
}

// RenderNotice renders the transient notice line.
func RenderNotice(n *models.Notice) string {
	if n == nil {
		return ""
	}
	if n.Error {
		return errorStyle.Render("! " + n.Text)
	}
	return noticeStyle.Render(n.Text)
}

// RenderMap is the map screen: stats, districts, cards and history, or the
// offline placeholder when progress could not be loaded.
func RenderMap(st store.State) string {
	if st.Offline {
		return RenderOffline()
	}
	boss := ""
	if st.Boss != nil {
		boss = errorStyle.Render("Босс: "+st.Boss.Name) + helpStyle.Render(" /boss") + "\n"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		RenderStats(st.Progress, st.Effort()),
		boss,
		RenderDistricts(st.Progress),
		RenderCards(st),
		RenderHistory(st.History),
		RenderAchievements(st.Achievements),
	)
}

// RenderPanel is the side panel next to the dialog.
func RenderPanel(st store.State, width, height int) string {
	content := RenderSession(st.Summary, st.Phase, st.SessionBonus) + "\n"
	if st.Offline {
		content += errorStyle.Render("Офлайн") + "\n"
	} else {
		content += RenderStats(st.Progress, st.Effort())
	}
	style := panelStyle
	if width > 0 {
		style = style.Width(width)
	}
	if height > 0 {
		style = style.Height(height)
	}
	return style.Render(content)
}
