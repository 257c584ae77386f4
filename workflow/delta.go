package workflow

import (
	"fmt"

	"github.com/BaSui01/tailorflow/types"
)

// Outcome is the routing signal a phase returns with its Delta.
type Outcome int

const (
	// OutcomeNext lets the engine consult the phase's routing rule.
	OutcomeNext Outcome = iota
	// OutcomeError sends the engine to the error terminal.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNext:
		return "next"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Delta is the only way a phase affects State.
type Delta struct {
	Phase    PhaseID      `json:"phase"`
	Slots    map[Slot]any `json:"slots,omitempty"`
	Messages []Message    `json:"messages,omitempty"`
	Outcome  Outcome      `json:"outcome"`
	Err      *types.Error `json:"error,omitempty"`
}

// NewDelta creates an empty successful Delta for a phase.
func NewDelta(phase PhaseID) Delta {
	return Delta{Phase: phase, Slots: make(map[Slot]any)}
}

// Failed creates a Delta that routes to the error terminal.
func Failed(phase PhaseID, err *types.Error, messages ...Message) Delta {
	if err != nil && err.Phase == "" {
		err.Phase = string(phase)
	}
	return Delta{
		Phase:    phase,
		Messages: messages,
		Outcome:  OutcomeError,
		Err:      err,
	}
}

// Set writes a slot value.
func (d *Delta) Set(slot Slot, value any) *Delta {
	if d.Slots == nil {
		d.Slots = make(map[Slot]any)
	}
	d.Slots[slot] = value
	return d
}

// Logf appends a message attributed to the delta's phase.
func (d *Delta) Logf(format string, args ...any) *Delta {
	d.Messages = append(d.Messages, Message{Phase: d.Phase, Text: fmt.Sprintf(format, args...)})
	return d
}

// IsFailed reports whether the delta halts the run.
func (d Delta) IsFailed() bool {
	return d.Outcome == OutcomeError || d.Err != nil
}

// Written lists the slots the delta writes.
func (d Delta) Written() []Slot {
	out := make([]Slot, 0, len(d.Slots))
	for _, s := range allSlots {
		if _, ok := d.Slots[s]; ok {
			out = append(out, s)
		}
	}
	for s := range d.Slots {
		if !s.Valid() {
			out = append(out, s)
		}
	}
	return out
}

// normalize enforces that error and next are mutually exclusive.
func (d Delta) normalize(phase PhaseID) Delta {
	if d.Phase == "" {
		d.Phase = phase
	}
	if d.Err != nil {
		d.Outcome = OutcomeError
		if d.Err.Phase == "" {
			d.Err.Phase = string(d.Phase)
		}
	}
	if d.Outcome == OutcomeError && d.Err == nil {
		d.Err = types.NewError(types.ErrCollaboratorFailure, "phase reported an error without detail").
			WithPhase(string(d.Phase))
	}
	return d
}
