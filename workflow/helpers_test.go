package workflow

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/BaSui01/tailorflow/types"
)

type testScore float64

func (s testScore) Score() float64 { return float64(s) }

// testPhase is a configurable Phase for engine and builder tests.
type testPhase struct {
	id     PhaseID
	reads  []Slot
	writes []Slot
	value  any
	delay  time.Duration
	fail   *types.Error
	panics bool
	calls  atomic.Int32
}

func (p *testPhase) ID() PhaseID    { return p.id }
func (p *testPhase) Reads() []Slot  { return p.reads }
func (p *testPhase) Writes() []Slot { return p.writes }

func (p *testPhase) Run(ctx context.Context, _ State) Delta {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
		}
	}
	if p.panics {
		panic("boom")
	}
	if p.fail != nil {
		return Failed(p.id, types.NewError(p.fail.Code, p.fail.Message))
	}
	d := NewDelta(p.id)
	for _, s := range p.writes {
		v := p.value
		if v == nil {
			v = string(p.id)
		}
		d.Set(s, v)
	}
	d.Logf("%s done", p.id)
	return d
}

func writer(id PhaseID, slot Slot, reads ...Slot) *testPhase {
	return &testPhase{id: id, reads: reads, writes: []Slot{slot}}
}

func newTestRegistry(phases ...Phase) *Registry {
	return NewRegistry().MustRegister(phases...)
}

func collaboratorErr(msg string) *types.Error {
	return types.NewError(types.ErrCollaboratorFailure, msg)
}

func deltaFor(phase PhaseID) *Delta {
	d := NewDelta(phase)
	return &d
}
