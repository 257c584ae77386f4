package local

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/BaSui01/tailorflow/tailor"
)

// Config tunes the local collaborator set.
type Config struct {
	// Timeout bounds each collaborator call. Zero disables it.
	Timeout time.Duration
	// RatePerSecond limits calls across all collaborators. Zero disables it.
	RatePerSecond float64
	Burst         int
}

// NewCollaborators returns the deterministic collaborator set.
func NewCollaborators(cfg Config) tailor.Collaborators {
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return tailor.Collaborators{
		ResumeAnalyzer:       wrap[tailor.ResumeInput, tailor.ResumeAnalysis](ResumeParser{}, cfg, limiter),
		JobAnalyzer:          wrap[tailor.JobInput, tailor.JobAnalysis](JobAnalyzer{}, cfg, limiter),
		Planner:              wrap[tailor.PlanInput, tailor.TaskPlan](Planner{}, cfg, limiter),
		WorkExperienceTailor: wrap[tailor.SectionInput, tailor.SectionResult](ExperienceTailor{}, cfg, limiter),
		SkillsTailor:         wrap[tailor.SectionInput, tailor.SectionResult](SkillsTailor{}, cfg, limiter),
		Validator:            wrap[tailor.ValidationInput, tailor.ValidationReport](Validator{}, cfg, limiter),
		ComplianceChecker:    wrap[tailor.ComplianceInput, tailor.ComplianceResult](ComplianceScorer{}, cfg, limiter),
		Refiner:              wrap[tailor.RefinementInput, tailor.RefinementResult](Refiner{}, cfg, limiter),
		Generator:            wrap[tailor.GenerationInput, tailor.TailoredDocument](NewGenerator(), cfg, limiter),
	}
}

func wrap[I, O any](c tailor.Collaborator[I, O], cfg Config, limiter *rate.Limiter) tailor.Collaborator[I, O] {
	return tailor.WithTimeout(tailor.RateLimited(c, limiter), cfg.Timeout)
}
