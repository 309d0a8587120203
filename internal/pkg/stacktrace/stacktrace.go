// Package stacktrace trims goroutine stacks down to this module's frames.
package stacktrace

import (
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

const maxDepth = 64

func anchor() {}

// modulePrefix is "<module path>/internal/", read off this package's own
// symbol so the module path is never spelled out here.
var modulePrefix = sync.OnceValue(func() string {
	name := runtime.FuncForPC(reflect.ValueOf(anchor).Pointer()).Name()
	if i := strings.Index(name, "/internal/"); i >= 0 {
		return name[:i+len("/internal/")]
	}
	return "/internal/"
})

// Internal returns "internal/<pkg>/<file>.go:<line>" for each frame above its
// caller's, skipping skip more, that belongs to this module. Called from a
// deferred recover it includes the frames that panicked.
func Internal(skip int) []string {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	prefix := modulePrefix()

	var out []string
	for {
		f, more := frames.Next()
		if strings.HasPrefix(f.Function, prefix) {
			if _, rel, ok := strings.Cut(f.File, "/internal/"); ok {
				out = append(out, "internal/"+rel+":"+strconv.Itoa(f.Line))
			}
		}
		if !more {
			break
		}
	}
	return out
}
