// Package analyzer defines the service's narrow view of the speech analysis
// capability. The analysis itself runs elsewhere; from here it is an opaque,
// potentially slow, potentially failing function from audio bytes to a
// result document.
package analyzer

import "context"

// Analyzer turns a waveform file into an opaque result document. A nil or
// empty result from a non-erroring call is treated as a failure by the
// worker, never stored as a completion.
type Analyzer interface {
	Analyze(ctx context.Context, audioPath string) (map[string]interface{}, error)
}

// Func adapts a plain function to the Analyzer interface. Tests use it to
// inject fast deterministic stubs.
type Func func(ctx context.Context, audioPath string) (map[string]interface{}, error)

func (f Func) Analyze(ctx context.Context, audioPath string) (map[string]interface{}, error) {
	return f(ctx, audioPath)
}
