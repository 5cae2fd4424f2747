// Package tui is the terminal front end. The model never mutates application
// state itself: it calls the engine from tea.Cmds and re-renders from a fresh
// store snapshot whenever the store reports a change.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/tatianab/inner-city/internal/engine"
	"github.com/tatianab/inner-city/internal/models"
	"github.com/tatianab/inner-city/internal/store"
)

type model struct {
	ctx       context.Context
	engine    *engine.Engine
	logger    *zap.Logger
	state     store.State
	textInput textinput.Model
	viewport  viewport.Model
	width     int
	height    int
	usage     string

	exerciseStarted time.Time
}

// storeChangedMsg is sent by the store subscription after every committed change.
type storeChangedMsg struct {
	topics store.Topic
}

// opDoneMsg ends an engine call. Failures already reached the store as notices.
type opDoneMsg struct {
	op  string
	err error
}

func NewModel(ctx context.Context, eng *engine.Engine, logger *zap.Logger) model {
	ti := textinput.New()
	ti.Placeholder = "/start oasis 7 Тревога, или /help"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	return model{
		ctx:       ctx,
		engine:    eng,
		logger:    logger,
		state:     eng.Store().Snapshot(),
		textInput: ti,
		viewport:  viewport.New(60, 20),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.run("sync", m.engine.Sync))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.textInput.Value()
			m.textInput.Reset()
			return m.handleLine(line)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = m.logWidth()
		m.viewport.Height = max(msg.Height-6, 5)
		m.refreshViewport()

	case storeChangedMsg:
		prev := m.state.Screen
		m.state = m.engine.Store().Snapshot()
		if m.state.Screen != prev && isExercise(m.state.Screen) {
			m.exerciseStarted = time.Now()
		}
		m.refreshViewport()
		return m, nil

	case opDoneMsg:
		if msg.err != nil {
			m.logger.Debug("command finished with error", zap.String("op", msg.op), zap.Error(msg.err))
		}
		return m, nil
	}

	var vpCmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(cmd, vpCmd)
}

func (m model) handleLine(line string) (tea.Model, tea.Cmd) {
	m.usage = ""
	c, err := parseCommand(line)
	if err != nil {
		m.usage = err.Error()
		return m, nil
	}
	if c.name == "" {
		if c.text == "" {
			return m, nil
		}
		text := c.text
		if m.state.Screen == models.ScreenGuru {
			return m, m.run("guru", func(ctx context.Context) error { return m.engine.AskGuru(ctx, text) })
		}
		if m.state.Screen != models.ScreenDialog {
			m.engine.ShowScreen(models.ScreenDialog)
		}
		return m, m.run("chat", func(ctx context.Context) error { return m.engine.SendChat(ctx, text) })
	}

	switch c.name {
	case "quit":
		return m, tea.Quit
	case "help":
		m.usage = commandHelp
	case "start":
		district, intensity, emotion := c.startArgs()
		return m, m.run("start", func(ctx context.Context) error {
			return m.engine.StartSession(ctx, district, emotion, intensity)
		})
	case "end":
		points := c.points()
		return m, m.run("end", func(ctx context.Context) error {
			_, err := m.engine.EndSession(ctx, points)
			return err
		})
	case "step":
		return m, m.run("step", func(ctx context.Context) error {
			_, err := m.engine.CompleteMicrostep(ctx)
			return err
		})
	case "save":
		return m, m.run("save", m.engine.Save)
	case "cards":
		m.engine.ShowScreen(models.ScreenMap)
		return m, m.run("cards", m.engine.LoadCards)
	case "unlock":
		id := c.args[0]
		return m, m.run("unlock", func(ctx context.Context) error { return m.engine.UnlockCard(ctx, id) })
	case "equip":
		id := c.args[0]
		return m, m.run("equip", func(ctx context.Context) error { return m.engine.EquipCard(ctx, id) })
	case "use":
		id := c.args[0]
		return m, m.run("use", func(ctx context.Context) error { return m.engine.ActivateCard(ctx, id) })
	case "history":
		m.engine.ShowScreen(models.ScreenMap)
		return m, m.run("history", func(ctx context.Context) error { return m.engine.LoadHistory(ctx, 0) })
	case "map":
		m.engine.ShowScreen(models.ScreenMap)
		return m, m.run("refresh", m.engine.RefreshProgress)
	case "chat":
		m.engine.ShowScreen(models.ScreenDialog)
	case "boss":
		m.engine.ShowScreen(models.ScreenBoss)
	case "defeat":
		return m, m.run("defeat", m.engine.DefeatBoss)
	case "guru":
		if len(c.args) == 0 {
			m.engine.ShowScreen(models.ScreenGuru)
			return m, nil
		}
		question := strings.Join(c.args, " ")
		return m, m.run("guru", func(ctx context.Context) error { return m.engine.AskGuru(ctx, question) })
	case "done":
		if !isExercise(m.state.Screen) {
			m.usage = "сейчас нет мини-игры"
			return m, nil
		}
		kind := engine.TaskBreathing
		if m.state.Screen == models.ScreenPlacement {
			kind = engine.TaskPlacement
		}
		elapsed := time.Since(m.exerciseStarted)
		return m, m.run("done", func(ctx context.Context) error {
			_, err := m.engine.CompleteExercise(ctx, kind, elapsed)
			return err
		})
	}
	return m, nil
}

// run calls fn off the update loop.
func (m model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func isExercise(s models.Screen) bool {
	return s == models.ScreenBreathing || s == models.ScreenPlacement
}

func (m model) logWidth() int {
	if m.width == 0 {
		return 60
	}
	return int(float64(m.width) * 0.70)
}

func (m *model) refreshViewport() {
	m.viewport.SetContent(m.content())
	if m.state.Screen == models.ScreenDialog {
		m.viewport.GotoBottom()
	}
}

// content renders the main area for the current screen.
func (m model) content() string {
	st := m.state
	switch st.Screen {
	case models.ScreenCrisis:
		return RenderCrisis(st.Crisis)
	case models.ScreenDialog:
		return RenderChat(st.Chat, m.logWidth())
	case models.ScreenBreathing, models.ScreenPlacement:
		return RenderExercise(st.Screen)
	case models.ScreenBoss:
		return RenderBoss(st.Boss)
	case models.ScreenGuru:
		return RenderGuru(st.Guru, m.logWidth())
	}
	return RenderMap(st)
}

func (m model) View() string {
	panelWidth := int(float64(m.width) * 0.27)
	mainView := lipgloss.JoinHorizontal(lipgloss.Top,
		m.viewport.View(),
		RenderPanel(m.state, panelWidth, m.viewport.Height),
	)

	status := RenderNotice(m.state.Notice)
	if m.usage != "" {
		status = helpStyle.Render(m.usage)
	}
	help := helpStyle.Render("Enter отправить, Esc выход. /help список команд.")

	return "\n" + lipgloss.JoinVertical(lipgloss.Left,
		mainView,
		"\n"+m.textInput.View(),
		status,
		help,
	) + "\n"
}

// Run starts the terminal UI and blocks until the user quits.
func Run(ctx context.Context, eng *engine.Engine, logger *zap.Logger) error {
	p := tea.NewProgram(NewModel(ctx, eng, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	// Changes made from inside Update would block on Send, so deliver asynchronously.
	// Order does not matter: every message re-reads the latest snapshot.
	unsubscribe := eng.Store().Subscribe(func(c store.Change) {
		go p.Send(storeChangedMsg{topics: c.Topics})
	})
	defer unsubscribe()
	_, err := p.Run()
	return err
}
