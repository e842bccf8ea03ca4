package cli

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

// LineReader reads one line of user input. It returns io.EOF when the user
// ends the session.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// Terminal is a LineReader with line editing and persistent history.
type Terminal struct {
	state       *liner.State
	historyFile string
	logger      *slog.Logger
}

// NewTerminal puts the terminal in line-editing mode and loads history from
// historyFile. An empty historyFile keeps history in memory only.
func NewTerminal(historyFile string) *Terminal {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	t := &Terminal{
		state:       state,
		historyFile: historyFile,
		logger:      slog.Default().With("component", "cli.terminal"),
	}
	t.loadHistory()
	return t
}

// Prompt reads a line. Ctrl-C and Ctrl-D both end the session with io.EOF.
func (t *Terminal) Prompt(prompt string) (string, error) {
	line, err := t.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		t.state.AppendHistory(line)
	}
	return line, nil
}

// Close saves history and restores the terminal.
func (t *Terminal) Close() error {
	t.saveHistory()
	return t.state.Close()
}

func (t *Terminal) loadHistory() {
	if t.historyFile == "" {
		return
	}
	f, err := os.Open(t.historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := t.state.ReadHistory(f); err != nil {
		t.logger.Debug("failed to read history", "path", t.historyFile, "error", err)
	}
}

func (t *Terminal) saveHistory() {
	if t.historyFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(t.historyFile), 0o700); err != nil {
		t.logger.Warn("failed to create history directory", "path", t.historyFile, "error", err)
		return
	}
	f, err := os.OpenFile(t.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		t.logger.Warn("failed to save history", "path", t.historyFile, "error", err)
		return
	}
	defer f.Close()
	if _, err := t.state.WriteHistory(f); err != nil {
		t.logger.Warn("failed to save history", "path", t.historyFile, "error", err)
	}
}
