package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// command is one parsed line of input.
type command struct {
	name string
	args []string
	text string
}

var errUsage = errors.New("usage")

// commandHelp lists the slash commands.
const commandHelp = "/start <квартал> <1-10> <эмоция>, /end [очки], /step, /save, /cards, /unlock <id>, " +
	"/equip <id>, /use <id>, /history, /map, /chat, /done, /boss, /defeat, /guru [вопрос], /quit"

// parseCommand splits a line into a slash command and its arguments. A line that
// does not start with "/" is chat text.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{text: line}, nil
	}
	fields := strings.Fields(line)
	cmd := command{name: strings.TrimPrefix(fields[0], "/"), args: fields[1:]}

	switch cmd.name {
	case "start":
		if len(cmd.args) < 3 {
			return cmd, fmt.Errorf("%w: /start <квартал> <1-10> <эмоция>", errUsage)
		}
		if _, err := strconv.Atoi(cmd.args[1]); err != nil {
			return cmd, fmt.Errorf("%w: интенсивность должна быть числом", errUsage)
		}
	case "unlock", "equip", "use":
		if len(cmd.args) != 1 {
			return cmd, fmt.Errorf("%w: /%s <id карты>", errUsage, cmd.name)
		}
	case "end":
		if len(cmd.args) > 1 {
			return cmd, fmt.Errorf("%w: /end [очки]", errUsage)
		}
		if len(cmd.args) == 1 {
			n, err := strconv.Atoi(cmd.args[0])
			if err != nil {
				return cmd, fmt.Errorf("%w: очки должны быть числом", errUsage)
			}
			if n < 0 {
				return cmd, fmt.Errorf("%w: очки не могут быть отрицательными", errUsage)
			}
		}
	case "step", "save", "cards", "history", "map", "chat", "done", "boss", "defeat", "guru", "quit", "help":
	default:
		return cmd, fmt.Errorf("неизвестная команда /%s", cmd.name)
	}
	return cmd, nil
}

// startArgs returns district, intensity and emotion of a parsed /start.
func (c command) startArgs() (string, int, string) {
	intensity, _ := strconv.Atoi(c.args[1])
	return c.args[0], intensity, strings.Join(c.args[2:], " ")
}

// points returns the optional /end argument.
func (c command) points() *int {
	if len(c.args) == 0 {
		return nil
	}
	n, _ := strconv.Atoi(c.args[0])
	return &n
}
