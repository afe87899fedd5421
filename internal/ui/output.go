// Package ui prints progress messages for the command line. Everything goes
// to stderr so that converted rows on stdout can be piped.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Out is where messages are written
var Out io.Writer = color.Error

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	blue   = color.New(color.FgBlue)
	red    = color.New(color.FgRed)
)

// Header prints a formatted header
func Header(text string) {
	line := strings.Repeat("=", 60)
	green.Fprintf(Out, "\n%s\n", line)
	green.Fprintf(Out, "%-60s\n", center(text, 60))
	green.Fprintf(Out, "%s\n\n", line)
}

// Step prints a step indicator
func Step(stepNum, totalSteps int, text string) {
	yellow.Fprintf(Out, "[%d/%d] %s\n", stepNum, totalSteps, text)
}

// Success prints a success message
func Success(text string) {
	green.Fprintf(Out, "  → %s\n", text)
}

// Info prints an info message
func Info(text string) {
	fmt.Fprintf(Out, "  → %s\n", text)
}

// Warning prints a warning message
func Warning(text string) {
	yellow.Fprintf(Out, "  ⚠ %s\n", text)
}

// Error prints an error message
func Error(text string) {
	red.Fprintf(Out, "Error: %s\n", text)
}

// BlueText prints blue text
func BlueText(text string) {
	blue.Fprintln(Out, text)
}

// YellowText prints yellow text
func YellowText(text string) {
	yellow.Fprintln(Out, text)
}

// center left-pads text to center it within width
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
