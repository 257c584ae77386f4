package tailor

import (
	"context"
	"errors"

	"github.com/BaSui01/tailorflow/types"
	wf "github.com/BaSui01/tailorflow/workflow"
)

// Phase ids of the tailoring pipeline.
const (
	PhaseResumeAnalysis              wf.PhaseID = "resume-analysis"
	PhaseJobAnalysis                 wf.PhaseID = "job-analysis"
	PhaseOrchestration               wf.PhaseID = "orchestration"
	PhaseWorkExperienceCustomization wf.PhaseID = "work-experience-customization"
	PhaseWorkExperienceValidation    wf.PhaseID = "work-experience-validation"
	PhaseSkillsCustomization         wf.PhaseID = "skills-customization"
	PhaseSkillsValidation            wf.PhaseID = "skills-validation"
	PhaseComplianceVerification      wf.PhaseID = "compliance-verification"
	PhaseRefinement                  wf.PhaseID = "refinement"
	PhaseResumeGeneration            wf.PhaseID = "resume-generation"

	// GroupSectionCustomization runs the two section branches in parallel.
	GroupSectionCustomization wf.PhaseID = "section-customization"
)

// Section names used in task plans.
const (
	SectionWorkExperience = "work-experience"
	SectionSkills         = "skills"
)

// NewRegistry registers every tailoring phase backed by c.
func NewRegistry(c Collaborators) (*wf.Registry, error) {
	reg := wf.NewRegistry()
	phases := []wf.Phase{
		resumeAnalysisPhase(c.ResumeAnalyzer),
		jobAnalysisPhase(c.JobAnalyzer),
		orchestrationPhase(c.Planner),
		customizationPhase(PhaseWorkExperienceCustomization, SectionWorkExperience, wf.SlotWorkExperienceResult, c.WorkExperienceTailor),
		validationPhase(PhaseWorkExperienceValidation, wf.SlotWorkExperienceResult, wf.SlotWorkExperienceValidation, c.Validator),
		customizationPhase(PhaseSkillsCustomization, SectionSkills, wf.SlotSkillsResult, c.SkillsTailor),
		validationPhase(PhaseSkillsValidation, wf.SlotSkillsResult, wf.SlotSkillsValidation, c.Validator),
		compliancePhase(c.ComplianceChecker),
		refinementPhase(c.Refiner),
		generationPhase(c.Generator),
	}
	for _, p := range phases {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	if err := declareSlots(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// declareSlots pins each slot to the value type its writer produces.
func declareSlots(reg *wf.Registry) error {
	return errors.Join(
		wf.DeclareSlot[ResumeAnalysis](reg, wf.SlotResumeAnalysis),
		wf.DeclareSlot[JobAnalysis](reg, wf.SlotJobAnalysis),
		wf.DeclareSlot[TaskPlan](reg, wf.SlotTaskPlan),
		wf.DeclareSlot[SectionResult](reg, wf.SlotWorkExperienceResult),
		wf.DeclareSlot[ValidationReport](reg, wf.SlotWorkExperienceValidation),
		wf.DeclareSlot[SectionResult](reg, wf.SlotSkillsResult),
		wf.DeclareSlot[ValidationReport](reg, wf.SlotSkillsValidation),
		wf.DeclareSlot[ComplianceResult](reg, wf.SlotComplianceResult),
		wf.DeclareSlot[RefinementResult](reg, wf.SlotRefinementResult),
		wf.DeclareSlot[TailoredDocument](reg, wf.SlotTailoredDocument),
	)
}

// invoke calls a collaborator and converts its error into a failed Delta.
func invoke[I, O any](ctx context.Context, phase wf.PhaseID, c Collaborator[I, O], in I) (O, *wf.Delta) {
	out, err := c.Invoke(ctx, in)
	if err != nil {
		te := types.NewError(types.ErrCollaboratorFailure, "collaborator call failed").
			WithPhase(string(phase)).
			WithCause(err).
			WithRetryable(errors.Is(err, context.DeadlineExceeded))
		d := wf.Failed(phase, te)
		return out, &d
	}
	return out, nil
}

func resumeAnalysisPhase(c Collaborator[ResumeInput, ResumeAnalysis]) wf.Phase {
	id := PhaseResumeAnalysis
	return wf.NewPhaseFunc(id, nil, []wf.Slot{wf.SlotResumeAnalysis},
		func(ctx context.Context, s wf.State) wf.Delta {
			out, failed := invoke(ctx, id, c, ResumeInput{Document: s.Inputs.Document})
			if failed != nil {
				return *failed
			}
			d := wf.NewDelta(id)
			d.Set(wf.SlotResumeAnalysis, out)
			d.Logf("parsed %d sections, %d skills", len(out.Sections), len(out.Skills))
			return d
		})
}

func jobAnalysisPhase(c Collaborator[JobInput, JobAnalysis]) wf.Phase {
	id := PhaseJobAnalysis
	return wf.NewPhaseFunc(id, nil, []wf.Slot{wf.SlotJobAnalysis},
		func(ctx context.Context, s wf.State) wf.Delta {
			out, failed := invoke(ctx, id, c, JobInput{JobDescription: s.Inputs.JobDescription})
			if failed != nil {
				return *failed
			}
			d := wf.NewDelta(id)
			d.Set(wf.SlotJobAnalysis, out)
			d.Logf("extracted %d keywords", len(out.Keywords))
			return d
		})
}

func orchestrationPhase(c Collaborator[PlanInput, TaskPlan]) wf.Phase {
	id := PhaseOrchestration
	return wf.NewPhaseFunc(id,
		[]wf.Slot{wf.SlotResumeAnalysis, wf.SlotJobAnalysis},
		[]wf.Slot{wf.SlotTaskPlan},
		func(ctx context.Context, s wf.State) wf.Delta {
			resume, _ := wf.SlotValue[ResumeAnalysis](s, wf.SlotResumeAnalysis)
			job, _ := wf.SlotValue[JobAnalysis](s, wf.SlotJobAnalysis)

			out, failed := invoke(ctx, id, c, PlanInput{Resume: resume, Job: job})
			if failed != nil {
				return *failed
			}
			d := wf.NewDelta(id)
			d.Set(wf.SlotTaskPlan, out)
			d.Logf("planned %d tasks", len(out.Tasks))
			return d
		})
}

func customizationPhase(id wf.PhaseID, section string, slot wf.Slot, c Collaborator[SectionInput, SectionResult]) wf.Phase {
	return wf.NewPhaseFunc(id,
		[]wf.Slot{wf.SlotResumeAnalysis, wf.SlotJobAnalysis, wf.SlotTaskPlan},
		[]wf.Slot{slot},
		func(ctx context.Context, s wf.State) wf.Delta {
			resume, _ := wf.SlotValue[ResumeAnalysis](s, wf.SlotResumeAnalysis)
			job, _ := wf.SlotValue[JobAnalysis](s, wf.SlotJobAnalysis)
			plan, _ := wf.SlotValue[TaskPlan](s, wf.SlotTaskPlan)
			task, _ := plan.Task(section)

			in := SectionInput{
				Section:  section,
				Original: originalSection(resume, section, s.Inputs.Document),
				Resume:   resume,
				Job:      job,
				Task:     task,
			}

			d := wf.NewDelta(id)
			out, err := customizeWithCorrection(ctx, c, in, &d)
			if err != nil {
				return wf.Failed(id, err, d.Messages...)
			}
			d.Set(slot, out)
			return d
		})
}

func validationPhase(id wf.PhaseID, source, slot wf.Slot, c Collaborator[ValidationInput, ValidationReport]) wf.Phase {
	return wf.NewPhaseFunc(id, []wf.Slot{source}, []wf.Slot{slot},
		func(ctx context.Context, s wf.State) wf.Delta {
			section, _ := wf.SlotValue[SectionResult](s, source)

			// generation escapes fallback text, so validate what it will emit
			fragment := section.Fragment
			if section.FellBack {
				fragment = EscapeLaTeX(fragment)
			}
			out, failed := invoke(ctx, id, c, ValidationInput{Section: section.Section, Fragment: fragment})
			if failed != nil {
				return *failed
			}
			out.FellBack = section.FellBack
			d := wf.NewDelta(id)
			d.Set(slot, out)
			if out.Valid {
				d.Logf("%s section valid", section.Section)
			} else {
				d.Logf("%s section has %d issue(s)", section.Section, len(out.Issues))
			}
			return d
		})
}

func compliancePhase(c Collaborator[ComplianceInput, ComplianceResult]) wf.Phase {
	id := PhaseComplianceVerification
	return wf.NewPhaseFunc(id,
		[]wf.Slot{wf.SlotResumeAnalysis, wf.SlotJobAnalysis, wf.SlotWorkExperienceResult, wf.SlotSkillsResult},
		[]wf.Slot{wf.SlotComplianceResult},
		func(ctx context.Context, s wf.State) wf.Delta {
			in := ComplianceInput{}
			in.Resume, _ = wf.SlotValue[ResumeAnalysis](s, wf.SlotResumeAnalysis)
			in.Job, _ = wf.SlotValue[JobAnalysis](s, wf.SlotJobAnalysis)
			in.WorkExperience, _ = wf.SlotValue[SectionResult](s, wf.SlotWorkExperienceResult)
			in.Skills, _ = wf.SlotValue[SectionResult](s, wf.SlotSkillsResult)

			out, failed := invoke(ctx, id, c, in)
			if failed != nil {
				return *failed
			}
			d := wf.NewDelta(id)
			d.Set(wf.SlotComplianceResult, out)
			d.Logf("compliance score %.1f (threshold %.1f)", out.Value, s.Inputs.ComplianceThreshold)
			return d
		})
}

func refinementPhase(c Collaborator[RefinementInput, RefinementResult]) wf.Phase {
	id := PhaseRefinement
	return wf.NewPhaseFunc(id,
		[]wf.Slot{wf.SlotJobAnalysis, wf.SlotComplianceResult, wf.SlotWorkExperienceResult, wf.SlotSkillsResult},
		[]wf.Slot{wf.SlotRefinementResult},
		func(ctx context.Context, s wf.State) wf.Delta {
			in := RefinementInput{Threshold: s.Inputs.ComplianceThreshold}
			in.Job, _ = wf.SlotValue[JobAnalysis](s, wf.SlotJobAnalysis)
			in.Compliance, _ = wf.SlotValue[ComplianceResult](s, wf.SlotComplianceResult)
			in.WorkExperience, _ = wf.SlotValue[SectionResult](s, wf.SlotWorkExperienceResult)
			in.Skills, _ = wf.SlotValue[SectionResult](s, wf.SlotSkillsResult)

			out, failed := invoke(ctx, id, c, in)
			if failed != nil {
				return *failed
			}
			d := wf.NewDelta(id)
			out.WorkExperience = keepValid(&d, out.WorkExperience, in.WorkExperience)
			out.Skills = keepValid(&d, out.Skills, in.Skills)
			d.Set(wf.SlotRefinementResult, out)
			d.Logf("refined sections, added %d keyword(s)", len(out.Added))
			return d
		})
}

func generationPhase(c Collaborator[GenerationInput, TailoredDocument]) wf.Phase {
	id := PhaseResumeGeneration
	return wf.NewPhaseFunc(id,
		[]wf.Slot{wf.SlotResumeAnalysis, wf.SlotWorkExperienceResult, wf.SlotSkillsResult, wf.SlotRefinementResult},
		[]wf.Slot{wf.SlotTailoredDocument},
		func(ctx context.Context, s wf.State) wf.Delta {
			in := GenerationInput{Document: s.Inputs.Document}
			in.Resume, _ = wf.SlotValue[ResumeAnalysis](s, wf.SlotResumeAnalysis)
			in.WorkExperience, _ = wf.SlotValue[SectionResult](s, wf.SlotWorkExperienceResult)
			in.Skills, _ = wf.SlotValue[SectionResult](s, wf.SlotSkillsResult)
			if refined, ok := wf.SlotValue[RefinementResult](s, wf.SlotRefinementResult); ok {
				in.WorkExperience = refined.WorkExperience
				in.Skills = refined.Skills
			}

			out, failed := invoke(ctx, id, c, in)
			if failed != nil {
				return *failed
			}
			d := wf.NewDelta(id)
			d.Set(wf.SlotTailoredDocument, out)
			d.Logf("generated %s document (%d bytes)", out.Format, len(out.Content))
			return d
		})
}

// originalSection picks the unmodified resume text for a section. Without a
// matching section the whole document body stands in.
func originalSection(resume ResumeAnalysis, section, document string) string {
	var names []string
	switch section {
	case SectionWorkExperience:
		names = []string{"experience", "work experience", "employment", "professional experience"}
	case SectionSkills:
		names = []string{"skills", "technical skills"}
	default:
		names = []string{section}
	}
	if s, ok := resume.Section(names...); ok {
		return s.Text()
	}
	return document
}
