package xterm

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

type ColorSet []Color

func (cs ColorSet) Choose(i int) Color {
	return cs[i%len(cs)]
}

var (
	BasicColors = ColorSet{
		Green,
		Blue,
		Yellow,
		Cyan,
	}

	Warn = Magenta
)

type Color interface {
	B(text string) []byte
	S(text string) string
}

type color uint8

// Bold XTerm foreground colors
const (
	Red     color = 31
	Green   color = 32
	Yellow  color = 33
	Blue    color = 34
	Magenta color = 35
	Cyan    color = 36
	Grey    color = 37
)

func (c color) B(text string) []byte {
	return []byte(c.S(text))
}

func (c color) S(text string) string {
	return "\x1b[1;" + strconv.Itoa(int(c)) + "m" + text + "\x1b[m"
}

var NoColor = noColor{}

type noColor struct{}

func (c noColor) B(text string) []byte {
	return []byte(text)
}

func (c noColor) S(text string) string {
	return text
}

var isTerminal = func(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// For returns c if f is a terminal and NO_COLOR is not set, NoColor otherwise.
func For(f *os.File, c Color) Color {
	if c == nil {
		return NoColor
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok || !isTerminal(f) {
		return NoColor
	}
	return c
}
