package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInstruction matches every *InvalidInstructionError.
	ErrInvalidInstruction = errors.New("invalid instruction")
	// ErrClosed is returned for instructions sent after Teardown.
	ErrClosed = errors.New("cursor torn down")
	// ErrNotStarted is returned for instructions sent before Start.
	ErrNotStarted = errors.New("cursor not started")
)

// InvalidInstructionError reports an instruction that the current phase
// does not accept. It signals a bug in the caller, never bad content.
type InvalidInstructionError struct {
	Instruction Instruction
	Phase       Phase
	Reason      string
}

func (e *InvalidInstructionError) Error() string {
	msg := fmt.Sprintf("invalid instruction %s in phase %s", e.Instruction, e.Phase)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is makes errors.Is(err, ErrInvalidInstruction) hold.
func (e *InvalidInstructionError) Is(target error) bool {
	return target == ErrInvalidInstruction
}

func invalid(in Instruction, p Phase, reason string, args ...any) error {
	return &InvalidInstructionError{Instruction: in, Phase: p, Reason: fmt.Sprintf(reason, args...)}
}
