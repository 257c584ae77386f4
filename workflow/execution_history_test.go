package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionHistory_Record(t *testing.T) {
	h := NewExecutionHistory("run-1", "pipeline")
	pe := h.RecordPhaseStart("a", NodePhase)
	h.RecordPhaseEnd(pe, []Slot{SlotResumeAnalysis}, "b", nil)

	failed := h.RecordPhaseStart("b", NodePhase)
	h.RecordPhaseEnd(failed, nil, ErrorTerminal, errors.New("boom"))
	h.Complete(errors.New("boom"))

	require.Len(t, h.GetPhases(), 2)
	assert.Equal(t, ExecutionStatusCompleted, h.GetPhase("a").Status)
	assert.Equal(t, ExecutionStatusFailed, h.GetPhase("b").Status)
	assert.Equal(t, "boom", h.GetPhase("b").Error)
	assert.Nil(t, h.GetPhase("zzz"))
	assert.Equal(t, ExecutionStatusFailed, h.Status)
}

func TestExecutionHistoryStore_EvictsOldest(t *testing.T) {
	store := NewExecutionHistoryStore(2)
	for _, id := range []string{"r1", "r2", "r3"} {
		h := NewExecutionHistory(id, "pipeline")
		h.Complete(nil)
		store.Save(h)
	}

	_, ok := store.Get("r1")
	assert.False(t, ok)
	assert.Len(t, store.ListByGraph("pipeline"), 2)
	assert.Len(t, store.ListByStatus(ExecutionStatusCompleted), 2)
	assert.Empty(t, store.ListByStatus(ExecutionStatusFailed))
}
