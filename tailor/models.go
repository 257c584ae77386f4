package tailor

// Section is a named block of a resume.
type Section struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

// Text joins the section lines with newlines.
func (s Section) Text() string {
	return joinLines(s.Lines)
}

// ResumeAnalysis is the structured view of the input document.
type ResumeAnalysis struct {
	Name       string    `json:"name,omitempty"`
	Sections   []Section `json:"sections"`
	Experience []string  `json:"experience,omitempty"`
	Skills     []string  `json:"skills,omitempty"`
}

// Section returns the first section whose name matches one of names,
// ignoring case.
func (r ResumeAnalysis) Section(names ...string) (Section, bool) {
	for _, s := range r.Sections {
		for _, n := range names {
			if equalFold(s.Name, n) {
				return s, true
			}
		}
	}
	return Section{}, false
}

// JobAnalysis is the structured view of the job description.
type JobAnalysis struct {
	Title        string   `json:"title,omitempty"`
	Keywords     []string `json:"keywords"`
	Requirements []string `json:"requirements,omitempty"`
}

// Task is one unit of tailoring work for a resume section.
type Task struct {
	Section     string   `json:"section"`
	Keywords    []string `json:"keywords,omitempty"`
	Instruction string   `json:"instruction"`
}

// TaskPlan is produced by orchestration and drives the customization phases.
type TaskPlan struct {
	Tasks []Task `json:"tasks"`
}

// Task returns the task planned for a section.
func (p TaskPlan) Task(section string) (Task, bool) {
	for _, t := range p.Tasks {
		if equalFold(t.Section, section) {
			return t, true
		}
	}
	return Task{}, false
}

// SectionResult is a tailored section rendered as a LaTeX fragment.
type SectionResult struct {
	Section  string `json:"section"`
	Fragment string `json:"fragment"`
	// Original is the unmodified section text the fragment was built from.
	Original string `json:"original,omitempty"`
	Attempts int    `json:"attempts"`
	FellBack bool   `json:"fell_back,omitempty"`
}

// ValidationReport is the verdict of a section validator.
type ValidationReport struct {
	Section string   `json:"section"`
	Valid   bool     `json:"valid"`
	Issues  []string `json:"issues,omitempty"`
	// FellBack marks a report on the escaped original text.
	FellBack bool `json:"fell_back,omitempty"`
}

// ComplianceResult is the keyword compliance of the tailored sections.
// Value is a percentage in 0..100.
type ComplianceResult struct {
	Value   float64  `json:"score"`
	Matched []string `json:"matched,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// Score implements workflow.Scorer.
func (c ComplianceResult) Score() float64 { return c.Value }

// RefinementResult carries sections revised after a compliance miss.
type RefinementResult struct {
	WorkExperience SectionResult `json:"work_experience"`
	Skills         SectionResult `json:"skills"`
	Added          []string      `json:"added,omitempty"`
}

// TailoredDocument is the final assembled document.
type TailoredDocument struct {
	Format  string `json:"format"`
	Content string `json:"content"`
}

// Collaborator inputs. Each is the projection of run state one phase needs.
type (
	ResumeInput struct {
		Document string `json:"document"`
	}

	JobInput struct {
		JobDescription string `json:"job_description"`
	}

	PlanInput struct {
		Resume ResumeAnalysis `json:"resume"`
		Job    JobAnalysis    `json:"job"`
	}

	SectionInput struct {
		Section  string         `json:"section"`
		Original string         `json:"original"`
		Resume   ResumeAnalysis `json:"resume"`
		Job      JobAnalysis    `json:"job"`
		Task     Task           `json:"task"`
		// Clarification is set on the single corrective retry.
		Clarification string `json:"clarification,omitempty"`
	}

	ValidationInput struct {
		Section  string `json:"section"`
		Fragment string `json:"fragment"`
	}

	ComplianceInput struct {
		Resume         ResumeAnalysis `json:"resume"`
		Job            JobAnalysis    `json:"job"`
		WorkExperience SectionResult  `json:"work_experience"`
		Skills         SectionResult  `json:"skills"`
	}

	RefinementInput struct {
		Job            JobAnalysis      `json:"job"`
		Compliance     ComplianceResult `json:"compliance"`
		Threshold      float64          `json:"threshold"`
		WorkExperience SectionResult    `json:"work_experience"`
		Skills         SectionResult    `json:"skills"`
	}

	GenerationInput struct {
		Document       string         `json:"document"`
		Resume         ResumeAnalysis `json:"resume"`
		WorkExperience SectionResult  `json:"work_experience"`
		Skills         SectionResult  `json:"skills"`
	}
)
