package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/frostml/frost/srcs/go/log"
)

// ExitErr logs err with the location of the caller and exits with code 1.
func ExitErr(err error) {
	_, file, line, _ := runtime.Caller(1)
	log.Errorf("exit on error: %v at %s:%d", err, filepath.Base(file), line)
	os.Exit(1)
}

// MergeErrors joins the non-nil errors of errs, nil if there are none.
func MergeErrors(errs []error, hint string) error {
	var msgs []string
	for _, e := range errs {
		if e != nil {
			msgs = append(msgs, e.Error())
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return fmt.Errorf("%s failed with %s: %s", hint, Pluralize(len(msgs), "error", "errors"), strings.Join(msgs, ", "))
}
