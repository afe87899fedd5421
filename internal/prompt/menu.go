package prompt

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	questionStyle = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	noteStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// answerMsg is one line of input when answers are not typed on a terminal.
type answerMsg string

// inputClosedMsg ends the menu when no further answers can be read.
type inputClosedMsg struct {
	err error
}

// menu is a numbered option list. Option 0 skips; 1..n pick an option.
type menu struct {
	question string
	options  []string

	// keys is set when answers arrive as key presses, which enables the cursor.
	keys   bool
	cursor int
	input  string
	notes  []string

	choice int
	done   bool
	err    error

	// rejected is signalled after an answer that was not accepted.
	rejected chan<- struct{}
}

func newMenu(question string, options []string) menu {
	return menu{question: question, options: options}
}

func (m menu) Init() tea.Cmd {
	return nil
}

func (m menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case answerMsg:
		m.input = strings.TrimSpace(string(msg))
		return m.submit()
	case inputClosedMsg:
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m menu) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Interrupt
	case tea.KeyEsc:
		return m.accept(0)
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
	case tea.KeyDown:
		if m.cursor < len(m.options) {
			m.cursor++
		}
	case tea.KeyBackspace:
		if m.input != "" {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeyEnter:
		if m.input == "" {
			return m.accept(m.cursor)
		}
		return m.submit()
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

// submit accepts the typed answer or records why it was rejected.
func (m menu) submit() (tea.Model, tea.Cmd) {
	n, err := strconv.Atoi(m.input)
	if err != nil || n < 0 || n > len(m.options) {
		m.notes = append(m.notes, fmt.Sprintf("%q: Please enter a number between 0 and %d", m.input, len(m.options)))
		m.input = ""
		if m.rejected != nil {
			m.rejected <- struct{}{}
		}
		return m, nil
	}
	return m.accept(n)
}

func (m menu) accept(n int) (tea.Model, tea.Cmd) {
	m.choice = n
	m.input = strconv.Itoa(n)
	m.done = true
	return m, tea.Quit
}

func (m menu) View() string {
	var b strings.Builder
	b.WriteString(questionStyle.Render(m.question))
	b.WriteString("\n")

	labels := append([]string{"(skip)"}, m.options...)
	for i, label := range labels {
		line := fmt.Sprintf("%d. %s", i, label)
		switch {
		case m.keys && i == m.cursor && !m.done:
			b.WriteString(cursorStyle.Render("> " + line))
		default:
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	for _, note := range m.notes {
		b.WriteString(noteStyle.Render(note))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Choice [0-%d]: %s\n", len(m.options), m.input)
	return b.String()
}
