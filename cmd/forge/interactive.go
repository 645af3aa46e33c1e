package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/forgelab/wasmforge"
	"github.com/forgelab/wasmforge/optimize"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

var levels = []optimize.Level{
	optimize.LevelNone,
	optimize.LevelSize,
	optimize.LevelSpeed,
	optimize.LevelAggressive,
}

type modelState int

const (
	stateSelectLevel modelState = iota
	stateShowResult
	stateSaveOutput
)

type interactiveModel struct {
	err       error
	compiler  *wasmforge.Compiler
	filename  string
	lang      wasmforge.Language
	compiled  *wasmforge.CompilationResult
	optimized []byte
	optStats  wasmforge.OptimizationStats
	level     optimize.Level
	saveInput textinput.Model
	saved     string
	selected  int
	state     modelState
}

func newInteractiveModel(filename string, lang wasmforge.Language) *interactiveModel {
	return &interactiveModel{
		compiler: wasmforge.New(),
		filename: filename,
		lang:     lang,
		state:    stateSelectLevel,
	}
}

type compiledMsg struct {
	err error
	res *wasmforge.CompilationResult
}

type optimizedMsg struct {
	err   error
	out   []byte
	stats wasmforge.OptimizationStats
	level optimize.Level
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.compileSource
}

func (m *interactiveModel) compileSource() tea.Msg {
	source, err := os.ReadFile(m.filename)
	if err != nil {
		return compiledMsg{err: err}
	}
	res := m.compiler.Generate(string(source), m.lang)
	if !res.Success {
		return compiledMsg{err: fmt.Errorf("%s", strings.Join(res.Errors, "\n"))}
	}
	return compiledMsg{res: res}
}

func (m *interactiveModel) optimizeAt(level optimize.Level) tea.Cmd {
	return func() tea.Msg {
		if level == optimize.LevelNone {
			return optimizedMsg{
				out:   m.compiled.Wasm,
				stats: wasmforge.OptimizationStats{OriginalSize: len(m.compiled.Wasm), OptimizedSize: len(m.compiled.Wasm)},
				level: level,
			}
		}
		out, stats, err := m.compiler.Optimize(context.Background(), m.compiled.Wasm, level)
		return optimizedMsg{err: err, out: out, stats: stats, level: level}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.state == stateSaveOutput {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "enter":
				path := m.saveInput.Value()
				if path != "" {
					if err := os.WriteFile(path, m.optimized, 0o644); err != nil {
						m.err = err
					} else {
						m.saved = path
					}
				}
				m.state = stateShowResult
			case "esc":
				m.state = stateShowResult
			default:
				var cmd tea.Cmd
				m.saveInput, cmd = m.saveInput.Update(msg)
				return m, cmd
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			if m.state == stateSelectLevel && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectLevel && m.selected < len(levels)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectLevel:
				if m.compiled != nil {
					return m, m.optimizeAt(levels[m.selected])
				}
			case stateShowResult:
				m.state = stateSelectLevel
				m.saved = ""
				m.err = nil
			}

		case "s":
			if m.state == stateShowResult && m.err == nil {
				ti := textinput.New()
				ti.Prompt = "output file: "
				ti.SetValue(strings.TrimSuffix(m.filename, ".wat") + ".wasm")
				ti.Width = 40
				ti.Focus()
				m.saveInput = ti
				m.state = stateSaveOutput
			}

		case "esc":
			if m.state == stateShowResult {
				m.state = stateSelectLevel
				m.saved = ""
				m.err = nil
			}
		}

	case compiledMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.compiled = msg.res

	case optimizedMsg:
		m.err = msg.err
		m.optimized = msg.out
		m.optStats = msg.stats
		m.level = msg.level
		m.state = stateShowResult
	}

	return m, nil
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state == stateSelectLevel {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.compiled == nil {
		return "Compiling " + m.filename + "..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("wasmforge"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	st := m.compiled.Stats
	b.WriteString(fmt.Sprintf("%s %d bytes, %d function(s), %d export(s)\n\n",
		labelStyle.Render("compiled:"), st.OutputSize, st.FunctionCount, st.ExportCount))

	switch m.state {
	case stateSelectLevel:
		b.WriteString("Select an optimization level:\n\n")
		for i, lvl := range levels {
			line := "  " + string(lvl)
			if i == m.selected {
				line = selectedStyle.Render("> " + string(lvl))
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter optimize • q quit"))

	case stateShowResult:
		b.WriteString(fmt.Sprintf("Optimized at %s:\n\n", labelStyle.Render(string(m.level))))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(okStyle.Render(fmt.Sprintf("%d -> %d bytes (%.1f%% saved, %s)",
				m.optStats.OriginalSize, m.optStats.OptimizedSize,
				m.optStats.PercentReduction, m.optStats.Duration)))
			if len(m.optStats.PassesApplied) > 0 {
				b.WriteString("\n  passes: " + strings.Join(m.optStats.PassesApplied, ", "))
			}
			if m.saved != "" {
				b.WriteString("\n\n")
				b.WriteString(okStyle.Render("Wrote " + m.saved))
			}
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("s save • enter back • q quit"))

	case stateSaveOutput:
		b.WriteString(m.saveInput.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter write • esc cancel"))
	}

	return b.String()
}

func runInteractive(filename string, lang wasmforge.Language) error {
	p := tea.NewProgram(newInteractiveModel(filename, lang), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
