// Package assert checks internal invariants, a failed check is a programming
// error and panics with the caller's location.
package assert

import (
	"fmt"
	"path/filepath"
	"runtime"
)

func fail(name string, err error) {
	_, file, line, _ := runtime.Caller(2)
	msg := fmt.Sprintf("%s failed at %s:%d", name, filepath.Base(file), line)
	if err != nil {
		msg += ": " + err.Error()
	}
	panic(msg)
}

func OK(err error) {
	if err != nil {
		fail(`assertOK`, err)
	}
}

func True(ok bool) {
	if !ok {
		fail(`assertTrue`, nil)
	}
}
