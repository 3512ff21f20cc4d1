package xterm

import (
	"os"
	"testing"
)

func Test_Color(t *testing.T) {
	if got := Green.S("ok"); got != "\x1b[1;32mok\x1b[m" {
		t.Errorf("unexpected escape sequence %q", got)
	}
	if got := string(Warn.B("w")); got != "\x1b[1;35mw\x1b[m" {
		t.Errorf("unexpected escape sequence %q", got)
	}
	if got := NoColor.S("ok"); got != "ok" {
		t.Errorf("NoColor should not decorate, got %q", got)
	}
	if BasicColors.Choose(len(BasicColors)+1) != BasicColors[1] {
		t.Error("Choose should wrap around")
	}
}

func Test_For(t *testing.T) {
	old := isTerminal
	defer func() { isTerminal = old }()
	isTerminal = func(*os.File) bool { return true }
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")
	if For(os.Stdout, Green) != Green {
		t.Error("color disabled on a terminal")
	}
	if For(os.Stdout, nil) != NoColor {
		t.Error("nil color is not NoColor")
	}
	t.Setenv("NO_COLOR", "1")
	if For(os.Stdout, Green) != NoColor {
		t.Error("NO_COLOR is ignored")
	}
	os.Unsetenv("NO_COLOR")
	isTerminal = func(*os.File) bool { return false }
	if For(os.Stdout, Green) != NoColor {
		t.Error("color enabled on a pipe")
	}
}
