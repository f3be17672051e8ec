package audit

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// RenderResult is the outcome of rendering one audit payload. When Degraded
// is set, Output holds the captured failure trace instead of the canonical
// serialization; the log pipeline itself never raises.
type RenderResult struct {
	Output   string
	Degraded bool
}

// CaptureRender evaluates a renderer and suppresses any failure. The fallback
// path is visible in the result type rather than hidden behind a catch-all:
// a panicking or empty render degrades to a non-empty diagnostic string.
func CaptureRender(render func() string) (result RenderResult) {
	defer func() {
		if r := recover(); r != nil {
			result = RenderResult{
				Output:   fmt.Sprintf("audit render failure: %v\n%s", r, debug.Stack()),
				Degraded: true,
			}
		}
	}()

	out := render()
	if strings.TrimSpace(out) == "" {
		return RenderResult{Output: "audit render failure: renderer produced empty output", Degraded: true}
	}
	return RenderResult{Output: out}
}
