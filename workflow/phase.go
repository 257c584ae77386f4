package workflow

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// PhaseID identifies a phase, a parallel group, or a terminal state.
type PhaseID string

// Terminal states.
const (
	End           PhaseID = "end"
	ErrorTerminal PhaseID = "error"
)

// IsTerminal reports whether id is end or error.
func (id PhaseID) IsTerminal() bool {
	return id == End || id == ErrorTerminal
}

// Phase is one pipeline step. Run must only read the snapshot it is given
// and must report collaborator failures through the returned Delta.
type Phase interface {
	ID() PhaseID
	// Reads lists the slots the phase consumes.
	Reads() []Slot
	// Writes lists the slots the phase may set. A Delta writing anything
	// else is rejected by the engine.
	Writes() []Slot
	Run(ctx context.Context, snapshot State) Delta
}

// PhaseFunc adapts a function to the Phase interface.
type PhaseFunc struct {
	id     PhaseID
	reads  []Slot
	writes []Slot
	fn     func(ctx context.Context, snapshot State) Delta
}

// NewPhaseFunc creates a function-backed phase.
func NewPhaseFunc(id PhaseID, reads, writes []Slot, fn func(ctx context.Context, snapshot State) Delta) *PhaseFunc {
	return &PhaseFunc{id: id, reads: reads, writes: writes, fn: fn}
}

func (p *PhaseFunc) ID() PhaseID    { return p.id }
func (p *PhaseFunc) Reads() []Slot  { return p.reads }
func (p *PhaseFunc) Writes() []Slot { return p.writes }

func (p *PhaseFunc) Run(ctx context.Context, snapshot State) Delta {
	return p.fn(ctx, snapshot)
}

// Registry maps phase ids to handlers. It is populated at startup; graphs
// referencing an id missing from the registry fail to build.
type Registry struct {
	mu        sync.RWMutex
	phases    map[PhaseID]Phase
	slotTypes map[Slot]reflect.Type
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		phases:    make(map[PhaseID]Phase),
		slotTypes: make(map[Slot]reflect.Type),
	}
}

// DeclareSlot fixes the Go type stored in slot. Graphs built from r carry
// the declarations, and merging a value of another type fails.
func DeclareSlot[T any](r *Registry, slot Slot) error {
	if !slot.Valid() {
		return configError(fmt.Sprintf("cannot declare unknown slot %q", slot), ErrUnknownSlot)
	}
	t := reflect.TypeFor[T]()

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.slotTypes[slot]; ok && prev != t {
		return configError(fmt.Sprintf("slot %s already declared as %s", slot, prev), ErrSlotType)
	}
	r.slotTypes[slot] = t
	return nil
}

// SlotTypes returns a copy of the declared slot types.
func (r *Registry) SlotTypes() map[Slot]reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Slot]reflect.Type, len(r.slotTypes))
	for k, v := range r.slotTypes {
		out[k] = v
	}
	return out
}

// Register adds a phase. Duplicate ids, terminal ids and unknown slots in the
// phase's declared contract are rejected.
func (r *Registry) Register(p Phase) error {
	id := p.ID()
	if id == "" {
		return configError("phase id must not be empty", ErrUnknownPhase)
	}
	if id.IsTerminal() {
		return configError(fmt.Sprintf("phase id %q is reserved", id), ErrReservedPhase)
	}
	for _, s := range append(append([]Slot(nil), p.Reads()...), p.Writes()...) {
		if !s.Valid() {
			return configError(fmt.Sprintf("phase %s declares unknown slot %q", id, s), ErrUnknownSlot)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.phases[id]; exists {
		return configError(fmt.Sprintf("phase %s already registered", id), ErrDuplicatePhase)
	}
	r.phases[id] = p
	return nil
}

// MustRegister registers phases and panics on error.
func (r *Registry) MustRegister(phases ...Phase) *Registry {
	for _, p := range phases {
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

// Get returns the phase registered under id.
func (r *Registry) Get(id PhaseID) (Phase, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.phases[id]
	return p, ok
}

// IDs returns the registered ids, sorted.
func (r *Registry) IDs() []PhaseID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]PhaseID, 0, len(r.phases))
	for id := range r.phases {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
