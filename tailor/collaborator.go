package tailor

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Collaborator is the seam behind which analysis, tailoring, validation,
// scoring and assembly live. Calls are synchronous.
type Collaborator[I, O any] interface {
	Invoke(ctx context.Context, in I) (O, error)
}

// CollaboratorFunc adapts a function to Collaborator.
type CollaboratorFunc[I, O any] func(ctx context.Context, in I) (O, error)

// Invoke calls f.
func (f CollaboratorFunc[I, O]) Invoke(ctx context.Context, in I) (O, error) {
	return f(ctx, in)
}

// WithTimeout bounds every call to c by d. d <= 0 returns c unchanged.
func WithTimeout[I, O any](c Collaborator[I, O], d time.Duration) Collaborator[I, O] {
	if d <= 0 {
		return c
	}
	return CollaboratorFunc[I, O](func(ctx context.Context, in I) (O, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return c.Invoke(ctx, in)
	})
}

// RateLimited waits on limiter before each call. A nil limiter returns c
// unchanged.
func RateLimited[I, O any](c Collaborator[I, O], limiter *rate.Limiter) Collaborator[I, O] {
	if limiter == nil {
		return c
	}
	return CollaboratorFunc[I, O](func(ctx context.Context, in I) (O, error) {
		if err := limiter.Wait(ctx); err != nil {
			var zero O
			return zero, err
		}
		return c.Invoke(ctx, in)
	})
}

// Collaborators is the full set a Pipeline needs, one per phase.
type Collaborators struct {
	ResumeAnalyzer       Collaborator[ResumeInput, ResumeAnalysis]
	JobAnalyzer          Collaborator[JobInput, JobAnalysis]
	Planner              Collaborator[PlanInput, TaskPlan]
	WorkExperienceTailor Collaborator[SectionInput, SectionResult]
	SkillsTailor         Collaborator[SectionInput, SectionResult]
	Validator            Collaborator[ValidationInput, ValidationReport]
	ComplianceChecker    Collaborator[ComplianceInput, ComplianceResult]
	Refiner              Collaborator[RefinementInput, RefinementResult]
	Generator            Collaborator[GenerationInput, TailoredDocument]
}

// Validate reports the collaborators that are missing.
func (c Collaborators) Validate() error {
	var missing []string
	check := func(name string, ok bool) {
		if !ok {
			missing = append(missing, name)
		}
	}
	check("resume analyzer", c.ResumeAnalyzer != nil)
	check("job analyzer", c.JobAnalyzer != nil)
	check("planner", c.Planner != nil)
	check("work experience tailor", c.WorkExperienceTailor != nil)
	check("skills tailor", c.SkillsTailor != nil)
	check("validator", c.Validator != nil)
	check("compliance checker", c.ComplianceChecker != nil)
	check("refiner", c.Refiner != nil)
	check("generator", c.Generator != nil)

	if len(missing) > 0 {
		return errors.New("missing collaborators: " + strings.Join(missing, ", "))
	}
	return nil
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
