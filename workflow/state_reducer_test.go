package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/tailorflow/types"
)

func TestLastValueReducer(t *testing.T) {
	r := LastValueReducer[int]()
	assert.Equal(t, 2, r(1, 2))
}

func TestAppendReducer_DoesNotAliasCurrent(t *testing.T) {
	r := AppendReducer[int]()
	current := make([]int, 1, 8)
	current[0] = 1

	merged := r(current, []int{2})
	merged[0] = 99

	assert.Equal(t, []int{99, 2}, merged)
	assert.Equal(t, 1, current[0])
}

func TestMerge_WritesSlotsAndAppendsMessages(t *testing.T) {
	s := NewState(Inputs{RunID: "r1"})
	d := NewDelta("resume-analysis")
	d.Set(SlotResumeAnalysis, "parsed").Logf("analyzed %d sections", 3)

	next, err := Merge(s, d)
	require.NoError(t, err)

	v, ok := next.Get(SlotResumeAnalysis)
	require.True(t, ok)
	assert.Equal(t, "parsed", v)
	assert.Equal(t, []Message{{Phase: "resume-analysis", Text: "analyzed 3 sections"}}, next.Messages)
	assert.Equal(t, []PhaseID{"resume-analysis"}, next.CompletedPhases)
	assert.Nil(t, next.Err)

	// input untouched
	assert.False(t, s.Has(SlotResumeAnalysis))
	assert.Empty(t, s.Messages)
}

func TestMerge_LastWriteWins(t *testing.T) {
	s := NewState(Inputs{})
	s, err := MergeAll(s,
		*deltaFor("a").Set(SlotTaskPlan, "first"),
		*deltaFor("b").Set(SlotTaskPlan, "second"),
	)
	require.NoError(t, err)

	v, _ := SlotValue[string](s, SlotTaskPlan)
	assert.Equal(t, "second", v)
}

func TestMerge_FailedDeltaSetsErr(t *testing.T) {
	s := NewState(Inputs{})
	d := Failed("job-analysis", collaboratorErr("llm down"), Message{Phase: "job-analysis", Text: "gave up"})

	next, err := Merge(s, d)
	require.NoError(t, err)

	require.NotNil(t, next.Err)
	assert.Equal(t, types.ErrCollaboratorFailure, next.Err.Code)
	assert.Equal(t, "job-analysis", next.Err.Phase)
	assert.Empty(t, next.CompletedPhases)
	assert.Len(t, next.Messages, 1)
}

func TestMerge_ErrorOutcomeWithoutDetail(t *testing.T) {
	d := NewDelta("orchestration")
	d.Outcome = OutcomeError

	next, err := Merge(NewState(Inputs{}), d)
	require.NoError(t, err)
	require.NotNil(t, next.Err)
	assert.Equal(t, types.ErrCollaboratorFailure, next.Err.Code)
}

func TestMerge_UnknownSlot(t *testing.T) {
	d := NewDelta("rogue")
	d.Set(Slot("coverLetter"), "x")

	_, err := Merge(NewState(Inputs{}), d)
	require.Error(t, err)
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
	assert.True(t, errors.Is(err, ErrUnknownSlot))
}

func TestMerge_DeclaredSlotType(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, DeclareSlot[testScore](reg, SlotComplianceResult))
	s := NewState(Inputs{}).WithSlotTypes(reg.SlotTypes())

	_, err := Merge(s, *deltaFor("c").Set(SlotComplianceResult, 91.0))
	require.Error(t, err)
	assert.Equal(t, types.ErrConfiguration, types.GetErrorCode(err))
	assert.ErrorIs(t, err, ErrSlotType)

	next, err := Merge(s, *deltaFor("c").Set(SlotComplianceResult, testScore(91)))
	require.NoError(t, err)
	assert.True(t, next.Has(SlotComplianceResult))

	// undeclared slots accept any value
	_, err = Merge(s, *deltaFor("p").Set(SlotTaskPlan, 7))
	assert.NoError(t, err)
}

func TestSnapshot_IsIsolated(t *testing.T) {
	s, err := Merge(NewState(Inputs{}), *deltaFor("a").Set(SlotJobAnalysis, "x").Logf("hi"))
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.slots[SlotJobAnalysis] = "mutated"
	snap.Messages[0].Text = "mutated"

	v, _ := s.Get(SlotJobAnalysis)
	assert.Equal(t, "x", v)
	assert.Equal(t, "hi", s.Messages[0].Text)
}

func TestSlotValue_TypeMismatch(t *testing.T) {
	s, err := Merge(NewState(Inputs{}), *deltaFor("a").Set(SlotComplianceResult, testScore(91)))
	require.NoError(t, err)

	_, ok := SlotValue[string](s, SlotComplianceResult)
	assert.False(t, ok)

	score, ok := SlotValue[testScore](s, SlotComplianceResult)
	assert.True(t, ok)
	assert.Equal(t, testScore(91), score)

	_, ok = SlotValue[testScore](s, SlotRefinementResult)
	assert.False(t, ok)
}

// Merging the same delta twice leaves slots equal to one merge but doubles
// the message log.
func TestMerge_NotIdempotentForMessages(t *testing.T) {
	slots := AllSlots()
	rapid.Check(t, func(rt *rapid.T) {
		slot := rapid.SampledFrom(slots).Draw(rt, "slot")
		value := rapid.String().Draw(rt, "value")
		nMsgs := rapid.IntRange(0, 5).Draw(rt, "messages")

		d := NewDelta("p")
		d.Set(slot, value)
		for i := 0; i < nMsgs; i++ {
			d.Logf("m%d", i)
		}

		once, err := Merge(NewState(Inputs{}), d)
		require.NoError(rt, err)
		twice, err := Merge(once, d)
		require.NoError(rt, err)

		assert.Equal(rt, once.Slots(), twice.Slots())
		assert.Len(rt, twice.Messages, 2*nMsgs)
		assert.Len(rt, twice.CompletedPhases, 2)
	})
}
