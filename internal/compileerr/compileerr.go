// Package compileerr defines the single typed error every compiler stage
// returns, so the driver and tests can distinguish which stage aborted
// without parsing message text.
package compileerr

import "fmt"

// Stage names a pipeline component that can fail. The parser reports plain
// errors rather than a Stage (it has no state worth distinguishing from a
// syntax error), and the MIR cleaner never fails: it's a pure rewrite over
// already-lowered MIR.
type Stage string

const (
	StageSymtab   Stage = "symtab"
	StageLower    Stage = "lower"
	StageMIRParse Stage = "mirparse"
	StageCodegen  Stage = "codegen"
)

// CompileError is a single compilation failure. The first CompileError
// returned by any stage aborts the whole pipeline; there is no partial
// output and no recovery.
type CompileError struct {
	Stage Stage
	Msg   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Msg)
}

// New builds a CompileError for stage with a formatted message.
func New(stage Stage, format string, args ...any) *CompileError {
	return &CompileError{Stage: stage, Msg: fmt.Sprintf(format, args...)}
}
