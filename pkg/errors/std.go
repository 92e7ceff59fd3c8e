package errors

import stderrors "errors"

// Is, As and New forward to the standard library so callers importing this
// package under its own name still have them at hand.
var (
	Is  = stderrors.Is
	As  = stderrors.As
	New = stderrors.New
)
