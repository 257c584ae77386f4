package workflow

import (
	"fmt"
	"reflect"

	"github.com/BaSui01/tailorflow/types"
)

// Reducer defines how to merge a state update into the current value.
type Reducer[T any] func(current T, update T) T

// Built-in reducers

// LastValueReducer returns the most recent value.
func LastValueReducer[T any]() Reducer[T] {
	return func(_, update T) T {
		return update
	}
}

// AppendReducer appends slices together. The result never aliases current.
func AppendReducer[T any]() Reducer[[]T] {
	return func(current, update []T) []T {
		result := make([]T, 0, len(current)+len(update))
		result = append(result, current...)
		result = append(result, update...)
		return result
	}
}

var (
	reduceSlot      = LastValueReducer[any]()
	reduceMessages  = AppendReducer[Message]()
	reduceCompleted = AppendReducer[PhaseID]()
)

// Merge folds a Delta into a State and returns the new State. The input is
// not modified. Slots are replaced wholesale; messages and completed phases
// are appended, so merging the same Delta twice duplicates log entries while
// leaving slots equal to the second write.
func Merge(s State, d Delta) (State, error) {
	d = d.normalize(d.Phase)
	for slot, v := range d.Slots {
		if !slot.Valid() {
			return s, types.Errorf(types.ErrConfiguration, "delta declares unknown slot %q", slot).
				WithPhase(string(d.Phase)).
				WithCause(fmt.Errorf("%w: %s", ErrUnknownSlot, slot))
		}
		if want, ok := s.types[slot]; ok && reflect.TypeOf(v) != want {
			return s, types.Errorf(types.ErrConfiguration, "slot %s holds %T, want %s", slot, v, want).
				WithPhase(string(d.Phase)).
				WithCause(fmt.Errorf("%w: %s", ErrSlotType, slot))
		}
	}

	next := s.Snapshot()
	for slot, v := range d.Slots {
		next.slots[slot] = reduceSlot(next.slots[slot], v)
	}
	next.Messages = reduceMessages(s.Messages, d.Messages)

	if d.IsFailed() {
		next.Err = d.Err
		return next, nil
	}
	if d.Phase != "" {
		next.CompletedPhases = reduceCompleted(s.CompletedPhases, []PhaseID{d.Phase})
	}
	return next, nil
}

// MergeAll merges deltas in order, stopping at the first configuration error.
func MergeAll(s State, deltas ...Delta) (State, error) {
	var err error
	for _, d := range deltas {
		if s, err = Merge(s, d); err != nil {
			return s, err
		}
	}
	return s, nil
}
