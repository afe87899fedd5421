package prompt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var options = []string{"Groceries", "Household"}

func TestConsole_Select(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantIndex int
		wantOK    bool
	}{
		{"first option", "1\n", 0, true},
		{"second option with spaces", "  2 \n", 1, true},
		{"skip", "0\n", 0, false},
		{"re-prompt on out of range", "3\n2\n", 1, true},
		{"re-prompt on text", "groceries\n-1\n1\n", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConsole(strings.NewReader(tt.input), &out)

			index, ok, err := c.Select(context.Background(), "Pick one", options)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantIndex, index)
			}
		})
	}
}

func TestConsole_Output(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("7\n1\n"), &out)

	_, _, err := c.Select(context.Background(), "Select a category for COSTCO", options)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "Select a category for COSTCO")
	for _, line := range []string{"  0. (skip)", "  1. Groceries", "  2. Household"} {
		assert.Contains(t, got, line)
	}
	assert.Contains(t, got, `"7": Please enter a number between 0 and 2`)
	assert.Contains(t, got, "Choice [0-2]: 1")
}

func TestConsole_AnswersForLaterPrompts(t *testing.T) {
	c := NewConsole(strings.NewReader("9\n2\n1\n0\n"), io.Discard)

	want := []struct {
		index int
		ok    bool
	}{{1, true}, {0, true}, {0, false}}

	for i, w := range want {
		index, ok, err := c.Select(context.Background(), fmt.Sprintf("question %d", i+1), options)
		require.NoError(t, err, "question %d", i+1)
		assert.Equal(t, w.ok, ok, "question %d", i+1)
		if ok {
			assert.Equal(t, w.index, index, "question %d", i+1)
		}
	}

	_, _, err := c.Select(context.Background(), "question 4", options)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestConsole_EOF(t *testing.T) {
	c := NewConsole(strings.NewReader("abc\n"), io.Discard)

	_, _, err := c.Select(context.Background(), "Pick one", options)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestConsole_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewConsole(strings.NewReader("1\n"), io.Discard).Select(ctx, "Pick one", options)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScripted(t *testing.T) {
	s := &Scripted{Answers: []int{2, 0, 5}}

	index, ok, err := s.Select(context.Background(), "q1", options)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, index)

	_, ok, err = s.Select(context.Background(), "q2", options)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.Select(context.Background(), "q3", options)
	assert.ErrorContains(t, err, "out of range")

	_, _, err = s.Select(context.Background(), "q4", options)
	assert.ErrorIs(t, err, ErrScriptExhausted)

	assert.Equal(t, []string{"q1", "q2", "q3", "q4"}, s.Questions)
}
