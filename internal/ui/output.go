// Package ui provides colored terminal output helpers for the CLI.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 60

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	stepColor    = color.New(color.FgBlue)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgWhite)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// Header prints a section header with a rule above and below.
func Header(text string) {
	rule := strings.Repeat("=", headerWidth)
	headerColor.Fprintln(os.Stderr, rule)
	headerColor.Fprintln(os.Stderr, center(text, headerWidth))
	headerColor.Fprintln(os.Stderr, rule)
}

// Step prints a numbered progress step, e.g. "[2/4] Parsing".
func Step(n, total int, text string) {
	stepColor.Fprintf(os.Stderr, "[%d/%d] %s\n", n, total, text)
}

// Success prints a green success line.
func Success(text string) {
	successColor.Fprintf(os.Stderr, "✓ %s\n", text)
}

// Info prints a neutral informational line.
func Info(text string) {
	infoColor.Fprintln(os.Stderr, text)
}

// Warning prints a yellow warning line.
func Warning(text string) {
	warnColor.Fprintf(os.Stderr, "! %s\n", text)
}

// Error prints a red error line.
func Error(text string) {
	errorColor.Fprintf(os.Stderr, "✗ %s\n", text)
}

// BlueText prints text in blue without any prefix.
func BlueText(text string) {
	stepColor.Fprintln(os.Stderr, text)
}

// YellowText prints text in yellow without any prefix.
func YellowText(text string) {
	warnColor.Fprintln(os.Stderr, text)
}

// center left-pads text so it sits in the middle of width columns. Text
// wider than the requested width is returned unchanged.
func center(text string, width int) string {
	pad := (width - len(text)) / 2
	if pad <= 0 {
		return text
	}
	return fmt.Sprintf("%s%s", strings.Repeat(" ", pad), text)
}
