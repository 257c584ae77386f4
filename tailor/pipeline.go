package tailor

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/tailorflow/internal/pool"
	"github.com/BaSui01/tailorflow/types"
	wf "github.com/BaSui01/tailorflow/workflow"
)

// GraphName names the tailoring graph in logs, metrics and traces.
const GraphName = "resume-tailoring"

// DefaultThreshold is the compliance bar used when none is configured.
const DefaultThreshold = 90.0

// Recorder persists a finished run. Record errors are logged, never returned
// to the caller of Run.
type Recorder interface {
	Record(ctx context.Context, b *Bundle) error
}

// Options configures a Pipeline.
type Options struct {
	// Disabled phases are skipped; predecessors link to the next enabled one.
	Disabled []wf.PhaseID
	Pool     pool.GoroutinePoolConfig
	History  *wf.ExecutionHistoryStore
	Observer wf.Observer
	Recorder Recorder
	Logger   *zap.Logger
}

// Pipeline runs the tailoring graph. It is safe for concurrent use.
type Pipeline struct {
	registry    *wf.Registry
	pool        *pool.GoroutinePool
	coordinator *wf.GroupCoordinator
	opts        Options
	logger      *zap.Logger
}

// NewPipeline registers the phases for c and validates the graph once so
// configuration errors surface at startup.
func NewPipeline(c Collaborators, opts Options) (*Pipeline, error) {
	if err := c.Validate(); err != nil {
		return nil, types.NewError(types.ErrConfiguration, "invalid collaborator set").WithCause(err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry, err := NewRegistry(c)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		registry: registry,
		opts:     opts,
		logger:   logger.With(zap.String("component", "pipeline")),
	}
	if _, err := p.Graph(DefaultThreshold); err != nil {
		return nil, err
	}

	p.pool = pool.NewGoroutinePool(opts.Pool)
	p.coordinator = wf.NewGroupCoordinator(p.pool, logger)
	return p, nil
}

// Graph builds the tailoring graph for a compliance threshold.
func (p *Pipeline) Graph(threshold float64) (*wf.Graph, error) {
	return wf.NewGraphBuilder(GraphName, p.registry).
		WithLogger(p.logger).
		AddPhase(PhaseResumeAnalysis, wf.Unconditional(PhaseJobAnalysis)).
		AddPhase(PhaseJobAnalysis, wf.Unconditional(PhaseOrchestration)).
		AddPhase(PhaseOrchestration, wf.Unconditional(GroupSectionCustomization)).
		AddGroup(GroupSectionCustomization, wf.Unconditional(PhaseComplianceVerification),
			[]wf.PhaseID{PhaseWorkExperienceCustomization, PhaseWorkExperienceValidation},
			[]wf.PhaseID{PhaseSkillsCustomization, PhaseSkillsValidation},
		).
		AddPhase(PhaseComplianceVerification,
			wf.Thresholded(wf.SlotComplianceResult, threshold, PhaseResumeGeneration, PhaseRefinement)).
		AddPhase(PhaseRefinement, wf.Unconditional(PhaseResumeGeneration)).
		AddPhase(PhaseResumeGeneration, wf.Terminal()).
		Disable(p.opts.Disabled...).
		Build()
}

// Run tailors document to jobDescription. On failure the partial Bundle is
// returned together with the error.
func (p *Pipeline) Run(ctx context.Context, document, jobDescription string, threshold float64) (*Bundle, error) {
	if err := validateRequest(document, jobDescription, threshold); err != nil {
		return nil, err
	}

	graph, err := p.Graph(threshold)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = types.WithRunID(ctx, runID)
	engine := wf.NewEngine(graph, p.coordinator, p.logger,
		wf.WithObserver(p.opts.Observer),
		wf.WithHistoryStore(p.opts.History),
	)

	initial := wf.NewState(wf.Inputs{
		RunID:               runID,
		Document:            document,
		JobDescription:      jobDescription,
		ComplianceThreshold: threshold,
	})

	result, runErr := engine.Run(ctx, initial)
	bundle := NewBundle(result)

	if p.opts.Recorder != nil {
		if err := p.opts.Recorder.Record(context.WithoutCancel(ctx), bundle); err != nil {
			p.logger.Warn("failed to record run", zap.String("run_id", runID), zap.Error(err))
		}
	}
	if runErr != nil {
		return bundle, runErr
	}
	return bundle, nil
}

// Close releases the worker pool.
func (p *Pipeline) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func validateRequest(document, jobDescription string, threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 100 {
		return types.Errorf(types.ErrInvalidRequest, "compliance threshold %v outside 0..100", threshold)
	}
	if strings.TrimSpace(document) == "" {
		return types.NewError(types.ErrInvalidRequest, "document is required")
	}
	if strings.TrimSpace(jobDescription) == "" {
		return types.NewError(types.ErrInvalidRequest, "job description is required")
	}
	return nil
}

// Bundle is the caller-facing result of a run.
type Bundle struct {
	RunID     string             `json:"run_id"`
	Status    wf.ExecutionStatus `json:"status"`
	Threshold float64            `json:"threshold"`

	ResumeAnalysis           *ResumeAnalysis   `json:"resume_analysis,omitempty"`
	JobAnalysis              *JobAnalysis      `json:"job_analysis,omitempty"`
	TaskPlan                 *TaskPlan         `json:"task_plan,omitempty"`
	WorkExperienceResult     *SectionResult    `json:"work_experience_result,omitempty"`
	WorkExperienceValidation *ValidationReport `json:"work_experience_validation,omitempty"`
	SkillsResult             *SectionResult    `json:"skills_result,omitempty"`
	SkillsValidation         *ValidationReport `json:"skills_validation,omitempty"`
	ComplianceResult         *ComplianceResult `json:"compliance_result,omitempty"`
	RefinementResult         *RefinementResult `json:"refinement_result,omitempty"`
	TailoredDocument         *TailoredDocument `json:"tailored_document,omitempty"`

	Messages        []wf.Message  `json:"messages"`
	Visited         []wf.PhaseID  `json:"visited"`
	CompletedPhases []wf.PhaseID  `json:"completed_phases"`
	Error           *types.Error  `json:"error,omitempty"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
}

// NewBundle projects an engine result into a Bundle.
func NewBundle(res *wf.RunResult) *Bundle {
	s := res.State
	b := &Bundle{
		RunID:           s.Inputs.RunID,
		Status:          wf.ExecutionStatusCompleted,
		Threshold:       s.Inputs.ComplianceThreshold,
		Messages:        s.Messages,
		Visited:         res.Visited,
		CompletedPhases: s.CompletedPhases,
		Error:           s.Err,
	}
	if s.Err != nil {
		b.Status = wf.ExecutionStatusFailed
	}
	if res.History != nil {
		b.StartedAt = res.History.StartTime
		b.Duration = res.History.Duration
	}

	b.ResumeAnalysis = slotPtr[ResumeAnalysis](s, wf.SlotResumeAnalysis)
	b.JobAnalysis = slotPtr[JobAnalysis](s, wf.SlotJobAnalysis)
	b.TaskPlan = slotPtr[TaskPlan](s, wf.SlotTaskPlan)
	b.WorkExperienceResult = slotPtr[SectionResult](s, wf.SlotWorkExperienceResult)
	b.WorkExperienceValidation = slotPtr[ValidationReport](s, wf.SlotWorkExperienceValidation)
	b.SkillsResult = slotPtr[SectionResult](s, wf.SlotSkillsResult)
	b.SkillsValidation = slotPtr[ValidationReport](s, wf.SlotSkillsValidation)
	b.ComplianceResult = slotPtr[ComplianceResult](s, wf.SlotComplianceResult)
	b.RefinementResult = slotPtr[RefinementResult](s, wf.SlotRefinementResult)
	b.TailoredDocument = slotPtr[TailoredDocument](s, wf.SlotTailoredDocument)
	return b
}

// Score returns the compliance score, or -1 when compliance did not run.
func (b *Bundle) Score() float64 {
	if b.ComplianceResult == nil {
		return -1
	}
	return b.ComplianceResult.Value
}

// Summary is a one-line description for CLI output and logs.
func (b *Bundle) Summary() string {
	if b.Error != nil {
		return fmt.Sprintf("run %s %s at %s: %s", b.RunID, b.Status, b.Error.Phase, b.Error.Message)
	}
	return fmt.Sprintf("run %s %s via %d phases", b.RunID, b.Status, len(b.Visited))
}

func slotPtr[T any](s wf.State, slot wf.Slot) *T {
	v, ok := wf.SlotValue[T](s, slot)
	if !ok {
		return nil
	}
	return &v
}
