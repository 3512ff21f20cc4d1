package iostream

import (
	"io"
	"os"

	"github.com/frostml/frost/srcs/go/utils/xterm"
)

// prefixWriter writes each line with a [prefix] in a single Write, so lines
// of concurrent workers sharing a terminal don't interleave.
type prefixWriter struct {
	prefix string
	w      io.Writer
}

func (x prefixWriter) Write(bs []byte) (int, error) {
	line := make([]byte, 0, len(x.prefix)+3+len(bs))
	line = append(line, '[')
	line = append(line, x.prefix...)
	line = append(line, "] "...)
	line = append(line, bs...)
	if _, err := x.w.Write(line); err != nil {
		return 0, err
	}
	return len(bs), nil
}

// NewXTermRedirector prefixes the output of a worker with its name, coloured
// when the standard streams are terminals.
func NewXTermRedirector(name string, c xterm.Color) *StdWriters {
	out, errc := xterm.For(os.Stdout, c), xterm.For(os.Stderr, c)
	return &StdWriters{
		Stdout: prefixWriter{
			prefix: out.S(name) + "::stdout",
			w:      os.Stdout,
		},
		Stderr: prefixWriter{
			prefix: errc.S(name) + "::" + xterm.For(os.Stderr, xterm.Warn).S("stderr"),
			w:      os.Stderr,
		},
	}
}
