package logging

import (
	"io"
	"os"

	"golang.org/x/term"
)

// colorEnabled reports whether log output to w gets ANSI colors. NO_COLOR
// and TERM=dumb turn colors off; otherwise w must be a terminal.
func colorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal(w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
