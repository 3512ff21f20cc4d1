package assert

import (
	"errors"
	"strings"
	"testing"
)

func recovered(f func()) (msg string) {
	defer func() {
		if r := recover(); r != nil {
			msg = r.(string)
		}
	}()
	f()
	return ""
}

func Test_True(t *testing.T) {
	if msg := recovered(func() { True(true) }); msg != "" {
		t.Errorf("unexpected panic %q", msg)
	}
	msg := recovered(func() { True(false) })
	if !strings.HasPrefix(msg, "assertTrue failed at assert_test.go:") {
		t.Errorf("unexpected panic %q", msg)
	}
}

func Test_OK(t *testing.T) {
	msg := recovered(func() { OK(errors.New("boom")) })
	if !strings.HasSuffix(msg, ": boom") {
		t.Errorf("unexpected panic %q", msg)
	}
}
