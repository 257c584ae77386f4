package workflow

import (
	"reflect"

	"github.com/BaSui01/tailorflow/types"
)

// Slot names one of the fixed result slots of a run's State.
type Slot string

// Result slots. Each slot is written by exactly one phase of a graph.
const (
	SlotResumeAnalysis           Slot = "resumeAnalysis"
	SlotJobAnalysis              Slot = "jobAnalysis"
	SlotTaskPlan                 Slot = "taskPlan"
	SlotWorkExperienceResult     Slot = "workExperienceResult"
	SlotWorkExperienceValidation Slot = "workExperienceValidation"
	SlotSkillsResult             Slot = "skillsResult"
	SlotSkillsValidation         Slot = "skillsValidation"
	SlotComplianceResult         Slot = "complianceResult"
	SlotRefinementResult         Slot = "refinementResult"
	SlotTailoredDocument         Slot = "tailoredDocument"
)

var allSlots = []Slot{
	SlotResumeAnalysis,
	SlotJobAnalysis,
	SlotTaskPlan,
	SlotWorkExperienceResult,
	SlotWorkExperienceValidation,
	SlotSkillsResult,
	SlotSkillsValidation,
	SlotComplianceResult,
	SlotRefinementResult,
	SlotTailoredDocument,
}

var slotSet = func() map[Slot]struct{} {
	m := make(map[Slot]struct{}, len(allSlots))
	for _, s := range allSlots {
		m[s] = struct{}{}
	}
	return m
}()

// AllSlots returns the enumerated slot set in declaration order.
func AllSlots() []Slot {
	out := make([]Slot, len(allSlots))
	copy(out, allSlots)
	return out
}

// Valid reports whether s belongs to the enumerated slot set.
func (s Slot) Valid() bool {
	_, ok := slotSet[s]
	return ok
}

// Message is one entry of the run's audit log.
type Message struct {
	Phase PhaseID `json:"phase"`
	Text  string  `json:"text"`
}

// Inputs are fixed at run start and never written by phases.
type Inputs struct {
	RunID               string  `json:"run_id"`
	Document            string  `json:"document"`
	JobDescription      string  `json:"job_description"`
	ComplianceThreshold float64 `json:"compliance_threshold"`
}

// State is the shared, incrementally built value of one run. Only the Engine
// replaces it, via Merge; phases receive snapshots and return Deltas.
type State struct {
	Inputs          Inputs
	Messages        []Message
	CurrentPhase    PhaseID
	CompletedPhases []PhaseID
	Err             *types.Error

	slots map[Slot]any
	// types is shared read-only by every snapshot of a run.
	types map[Slot]reflect.Type
}

// NewState creates an empty State for a run.
func NewState(in Inputs) State {
	return State{
		Inputs: in,
		slots:  make(map[Slot]any),
	}
}

// WithSlotTypes returns a copy of s that rejects merges of values whose type
// differs from the declared one. Slots absent from declared accept any value.
func (s State) WithSlotTypes(declared map[Slot]reflect.Type) State {
	s.types = declared
	return s
}

// Get returns the value stored in a slot.
func (s State) Get(slot Slot) (any, bool) {
	v, ok := s.slots[slot]
	return v, ok
}

// Has reports whether a slot has been written.
func (s State) Has(slot Slot) bool {
	_, ok := s.slots[slot]
	return ok
}

// Slots returns a copy of all populated slots.
func (s State) Slots() map[Slot]any {
	out := make(map[Slot]any, len(s.slots))
	for k, v := range s.slots {
		out[k] = v
	}
	return out
}

// Snapshot returns a copy that shares no mutable storage with s.
// Slot values themselves are treated as immutable.
func (s State) Snapshot() State {
	out := s
	out.slots = s.Slots()
	out.Messages = append([]Message(nil), s.Messages...)
	out.CompletedPhases = append([]PhaseID(nil), s.CompletedPhases...)
	return out
}

// SlotValue reads a slot as T. ok is false when the slot is empty or holds
// a different type.
func SlotValue[T any](s State, slot Slot) (T, bool) {
	v, ok := s.slots[slot]
	if !ok {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}
