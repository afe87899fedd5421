// Package prompt implements interactive option selection.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// ErrInterrupted is returned when the user presses ctrl+c at a prompt.
var ErrInterrupted = errors.New("prompt interrupted")

// Console asks on a terminal. Options are numbered from 1 and 0 skips.
//
// When in is a terminal the menu reads key presses, and the arrow keys move
// a cursor that enter picks. Otherwise answers are read one line at a time
// so that lines meant for later prompts stay unread.
type Console struct {
	in    io.Reader
	out   io.Writer
	tty   bool
	lines *bufio.Scanner
}

// NewConsole creates a console prompter reading answers from in.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{in: in, out: out}
	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		c.tty = true
	} else {
		c.lines = bufio.NewScanner(in)
	}
	return c
}

// Select shows the numbered options and waits for a number in range. Input
// that ends before a valid answer returns io.ErrUnexpectedEOF.
func (c *Console) Select(ctx context.Context, question string, options []string) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	m := newMenu(question, options)
	opts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithOutput(c.out),
		tea.WithoutSignalHandler(),
	}

	var rejected chan struct{}
	if c.tty {
		m.keys = true
		opts = append(opts, tea.WithInput(c.in))
	} else {
		rejected = make(chan struct{}, 1)
		m.rejected = rejected
		opts = append(opts, tea.WithInput(nil))
	}

	p := tea.NewProgram(m, opts...)
	done := make(chan struct{})
	if !c.tty {
		go c.feed(p, rejected, done)
	}

	final, err := p.Run()
	close(done)
	if err != nil {
		if errors.Is(err, tea.ErrInterrupted) {
			return 0, false, ErrInterrupted
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, false, ctxErr
		}
		return 0, false, fmt.Errorf("prompt failed: %w", err)
	}

	result, ok := final.(menu)
	if !ok {
		return 0, false, fmt.Errorf("prompt returned unexpected model %T", final)
	}
	if result.err != nil {
		return 0, false, result.err
	}
	if result.choice == 0 {
		return 0, false, nil
	}
	return result.choice - 1, true, nil
}

// feed sends one answer line to the menu, and another only after the menu
// rejects it.
func (c *Console) feed(p *tea.Program, rejected <-chan struct{}, done <-chan struct{}) {
	for {
		if !c.lines.Scan() {
			err := io.ErrUnexpectedEOF
			if scanErr := c.lines.Err(); scanErr != nil {
				err = fmt.Errorf("failed to read choice: %w", scanErr)
			}
			p.Send(inputClosedMsg{err: err})
			return
		}

		p.Send(answerMsg(c.lines.Text()))
		select {
		case <-rejected:
		case <-done:
			return
		}
	}
}

// ErrScriptExhausted is returned when a Scripted prompter runs out of answers.
var ErrScriptExhausted = errors.New("no scripted answer left")

// Scripted replays fixed answers, numbered the way Console numbers them.
type Scripted struct {
	Answers []int

	// Questions records every question asked, in order.
	Questions []string
	next      int
}

// Select returns the next scripted answer.
func (s *Scripted) Select(_ context.Context, question string, options []string) (int, bool, error) {
	s.Questions = append(s.Questions, question)
	if s.next >= len(s.Answers) {
		return 0, false, ErrScriptExhausted
	}
	answer := s.Answers[s.next]
	s.next++

	if answer < 0 || answer > len(options) {
		return 0, false, fmt.Errorf("scripted answer %d out of range 0-%d", answer, len(options))
	}
	if answer == 0 {
		return 0, false, nil
	}
	return answer - 1, true, nil
}
