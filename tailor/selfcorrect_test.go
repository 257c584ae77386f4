package tailor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/tailorflow/testutil"
	"github.com/BaSui01/tailorflow/testutil/mocks"
	"github.com/BaSui01/tailorflow/types"
	wf "github.com/BaSui01/tailorflow/workflow"
)

func sectionInput() SectionInput {
	return SectionInput{Section: SectionSkills, Original: "Go, SQL & Kafka"}
}

func TestCustomizeWithCorrection_FirstAttempt(t *testing.T) {
	tailorMock := mocks.NewMockCollaborator[SectionInput, SectionResult]().
		WithResponse(SectionResult{Fragment: `\textbf{Skills:} Go`})

	d := wf.NewDelta(PhaseSkillsCustomization)
	out, err := customizeWithCorrection(testutil.TestContext(t), tailorMock, sectionInput(), &d)
	require.Nil(t, err)

	assert.Equal(t, 1, out.Attempts)
	assert.False(t, out.FellBack)
	assert.Equal(t, SectionSkills, out.Section)
	assert.Equal(t, "Go, SQL & Kafka", out.Original)
	assert.Equal(t, 1, tailorMock.CallCount())
}

func TestCustomizeWithCorrection_RetriesOnceWithClarification(t *testing.T) {
	tailorMock := mocks.NewMockCollaborator[SectionInput, SectionResult]().
		WithSequence(
			SectionResult{Fragment: `\textbf{Skills:} Go & SQL`},
			SectionResult{Fragment: `\textbf{Skills:} Go \& SQL`},
		)

	d := wf.NewDelta(PhaseSkillsCustomization)
	out, err := customizeWithCorrection(context.Background(), tailorMock, sectionInput(), &d)
	require.Nil(t, err)

	assert.Equal(t, 2, out.Attempts)
	assert.False(t, out.FellBack)

	calls := tailorMock.Calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].Clarification)
	assert.Contains(t, calls[1].Clarification, "unescaped")
}

func TestCustomizeWithCorrection_FallsBackToOriginal(t *testing.T) {
	tailorMock := mocks.NewMockCollaborator[SectionInput, SectionResult]().
		WithResponse(SectionResult{Fragment: `\textbf{broken`})

	d := wf.NewDelta(PhaseSkillsCustomization)
	out, err := customizeWithCorrection(context.Background(), tailorMock, sectionInput(), &d)
	require.Nil(t, err, "validation failures never escape the phase")

	assert.True(t, out.FellBack)
	assert.Equal(t, "Go, SQL & Kafka", out.Fragment)
	assert.Equal(t, maxSectionAttempts, tailorMock.CallCount())

	require.NotEmpty(t, d.Messages)
	last := d.Messages[len(d.Messages)-1].Text
	assert.True(t, strings.HasPrefix(last, "[VALIDATION_FAILURE]"), last)
}

func TestCustomizeWithCorrection_CollaboratorErrorIsNotRetried(t *testing.T) {
	tailorMock := mocks.NewMockCollaborator[SectionInput, SectionResult]().
		WithError(errors.New("upstream 503"))

	d := wf.NewDelta(PhaseSkillsCustomization)
	_, err := customizeWithCorrection(context.Background(), tailorMock, sectionInput(), &d)
	require.NotNil(t, err)

	assert.Equal(t, types.ErrCollaboratorFailure, err.Code)
	assert.Equal(t, string(PhaseSkillsCustomization), err.Phase)
	assert.Equal(t, 1, tailorMock.CallCount())
}

func TestKeepValid(t *testing.T) {
	d := wf.NewDelta(PhaseRefinement)
	prev := SectionResult{Section: SectionSkills, Fragment: `\textit{ok}`}

	assert.Equal(t, prev, keepValid(&d, SectionResult{Fragment: "50%"}, prev))
	assert.Len(t, d.Messages, 1)

	revised := SectionResult{Section: SectionSkills, Fragment: `\textit{better}`}
	assert.Equal(t, revised, keepValid(&d, revised, prev))
}
