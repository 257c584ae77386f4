package tailor

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/tailorflow/types"
	wf "github.com/BaSui01/tailorflow/workflow"
)

// maxSectionAttempts bounds the local self-correction loop: one call plus
// one corrective retry.
const maxSectionAttempts = 2

// customizeWithCorrection calls the section tailor and checks the returned
// fragment. A malformed fragment earns exactly one retry with a clarifying
// instruction; if that also fails the section falls back to its original
// text and a VALIDATION_FAILURE message is logged on d. Collaborator errors
// are never retried.
func customizeWithCorrection(ctx context.Context, c Collaborator[SectionInput, SectionResult], in SectionInput, d *wf.Delta) (SectionResult, *types.Error) {
	var lastIssue error
	for attempt := 1; attempt <= maxSectionAttempts; attempt++ {
		if attempt > 1 {
			in.Clarification = clarify(lastIssue)
		}

		out, err := c.Invoke(ctx, in)
		if err != nil {
			return SectionResult{}, types.NewError(types.ErrCollaboratorFailure, "section tailoring failed").
				WithPhase(string(d.Phase)).
				WithCause(err)
		}

		if lastIssue = CheckFragment(out.Fragment); lastIssue == nil {
			if out.Section == "" {
				out.Section = in.Section
			}
			if out.Original == "" {
				out.Original = in.Original
			}
			out.Attempts = attempt
			d.Logf("%s section tailored in %d attempt(s)", in.Section, attempt)
			return out, nil
		}
	}

	d.Logf("[%s] %s section kept original text: %v", types.ErrValidationFailure, in.Section, lastIssue)
	return SectionResult{
		Section:  in.Section,
		Fragment: in.Original,
		Original: in.Original,
		Attempts: maxSectionAttempts,
		FellBack: true,
	}, nil
}

// keepValid returns revised when its fragment passes the format check and
// previous otherwise.
func keepValid(d *wf.Delta, revised, previous SectionResult) SectionResult {
	if err := CheckFragment(revised.Fragment); err != nil {
		d.Logf("[%s] refined %s section discarded: %v", types.ErrValidationFailure, previous.Section, err)
		return previous
	}
	return revised
}

func clarify(issue error) string {
	var b strings.Builder
	b.WriteString("The previous output was not a valid LaTeX fragment")
	if te, ok := types.AsError(issue); ok {
		fmt.Fprintf(&b, " (%s)", te.Message)
	}
	b.WriteString(". Return only the section body, escape the characters & % # _ and balance every brace and environment.")
	return b.String()
}
