package workflow

import (
	"errors"

	"github.com/BaSui01/tailorflow/types"
)

// Sentinel causes carried inside *types.Error values raised by this package.
var (
	ErrUnknownSlot    = errors.New("unknown slot")
	ErrSlotType       = errors.New("slot value has the wrong type")
	ErrUnknownPhase   = errors.New("unknown phase")
	ErrDuplicatePhase = errors.New("duplicate phase")
	ErrReservedPhase  = errors.New("reserved phase id")
	ErrSlotConflict   = errors.New("slot written by more than one phase")
	ErrCycle          = errors.New("cycle detected")
	ErrInvalidRule    = errors.New("invalid routing rule")
	ErrNoRoute        = errors.New("no matching edge")
	ErrStepLimit      = errors.New("step limit exceeded")
	ErrEmptyGraph     = errors.New("graph has no enabled phases")
)

func configError(msg string, cause error) *types.Error {
	return types.NewError(types.ErrConfiguration, msg).WithCause(cause)
}

func routingError(msg string, cause error) *types.Error {
	return types.NewError(types.ErrRoutingFailure, msg).WithCause(cause)
}
