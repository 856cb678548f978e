package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ASCIILogo is printed at the top of interactive commands
const ASCIILogo = `
    ╔════════════════════════════════════════════════════╗
    ║ ██╗  ██╗███╗   ██╗    ███████╗██╗  ██╗██████╗      ║
    ║ ██║ ██╔╝████╗  ██║    ██╔════╝╚██╗██╔╝██╔══██╗     ║
    ║ █████╔╝ ██╔██╗ ██║    █████╗   ╚███╔╝ ██████╔╝     ║
    ║ ██╔═██╗ ██║╚██╗██║    ██╔══╝   ██╔██╗ ██╔═══╝      ║
    ║ ██║  ██╗██║ ╚████║    ███████╗██╔╝ ██╗██║          ║
    ║ ╚═╝  ╚═╝╚═╝  ╚═══╝    ╚══════╝╚═╝  ╚═╝╚═╝          ║
    ║        ALBUM & REPORT EXPORTER FOR KIDSNOTE        ║
    ╚════════════════════════════════════════════════════╝
`

var (
	outMu    sync.Mutex
	out      io.Writer = os.Stdout
	colorOff bool
)

// SetOutput redirects every Print helper; nil restores stdout.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// SetColor turns ANSI colors on or off.
func SetColor(enabled bool) {
	outMu.Lock()
	defer outMu.Unlock()
	colorOff = !enabled
}

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		outMu.Lock()
		off := colorOff
		outMu.Unlock()
		if off {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func printf(format string, args ...interface{}) {
	outMu.Lock()
	w := out
	outMu.Unlock()
	fmt.Fprintf(w, format, args...)
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	printf("%s", Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf("%s\n", Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf("%s\n", Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf("%s\n", Green(msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label string, value string) {
	printf("%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		printf("%s\n", Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		printf("%s\n", Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printf("%s\n", Magenta(msg))
}

// PrintLine prints text uncolored.
func PrintLine(msg string) {
	printf("%s\n", msg)
}

// PrintStatusLine colors a status line by its leading mark.
func PrintStatusLine(line string) {
	printf("%s\n", ColorStatusLine(line))
}

// ColorStatusLine picks a color from the first rune of a progress or summary line.
func ColorStatusLine(line string) string {
	switch {
	case hasMark(line, "✓"):
		return Green(line)
	case hasMark(line, "✗"):
		return Red(line)
	case hasMark(line, "■"):
		return Yellow(line)
	case hasMark(line, "·"):
		return Dim(line)
	}
	return line
}

func hasMark(line, mark string) bool {
	return len(line) >= len(mark) && line[:len(mark)] == mark
}
