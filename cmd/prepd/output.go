package main

import (
	"fmt"
	"os"
)

// ANSI colors for terminal output. All status output goes to stderr so
// stdout stays clean for piped command results.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

// printTagged is the common shape: a colored glyph prefix, then the message.
func printTagged(color, glyph, format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(color, glyph+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) {
	printTagged(colorGreen, "✓", format, args...)
}

func printError(format string, args ...any) {
	printTagged(colorRed, "✗", format, args...)
}

func printWarning(format string, args ...any) {
	printTagged(colorYellow, "⚠", format, args...)
}

func printStep(format string, args ...any) {
	printTagged(colorCyan, "→", format, args...)
}

// printStatus renders an indented "Label: value" line for status listings.
func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n",
		colorize(colorBold, label+":"),
		fmt.Sprintf(format, args...))
}
