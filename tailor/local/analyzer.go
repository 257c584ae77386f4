package local

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/BaSui01/tailorflow/tailor"
)

var headerPattern = regexp.MustCompile(`^(#+\s*)?([A-Za-z][A-Za-z &/]{1,40}):?$`)

// ResumeParser splits a plain-text resume into sections. A line is a header
// when it is upper case, ends with a colon or starts with '#'.
type ResumeParser struct{}

// Invoke implements tailor.Collaborator.
func (ResumeParser) Invoke(_ context.Context, in tailor.ResumeInput) (tailor.ResumeAnalysis, error) {
	var out tailor.ResumeAnalysis
	current := tailor.Section{Name: "Summary"}

	flush := func() {
		if len(current.Lines) > 0 {
			out.Sections = append(out.Sections, current)
		}
	}

	for _, raw := range strings.Split(in.Document, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if name, ok := sectionHeader(line); ok {
			flush()
			current = tailor.Section{Name: name}
			continue
		}
		if out.Name == "" && len(out.Sections) == 0 && len(current.Lines) == 0 && looksLikeName(line) {
			out.Name = line
			continue
		}
		current.Lines = append(current.Lines, line)
	}
	flush()

	if s, ok := out.Section("experience", "work experience", "employment", "professional experience"); ok {
		for _, l := range s.Lines {
			out.Experience = append(out.Experience, trimBullet(l))
		}
	}
	if s, ok := out.Section("skills", "technical skills"); ok {
		for _, l := range s.Lines {
			out.Skills = append(out.Skills, splitList(trimBullet(l))...)
		}
		out.Skills = dedupe(out.Skills)
	}
	return out, nil
}

func sectionHeader(line string) (string, bool) {
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[2])
	// short upper-case lines such as "AWS" are skills, not headers
	upper := len(name) >= 4 && name == strings.ToUpper(name)
	if m[1] != "" || strings.HasSuffix(line, ":") || upper {
		return titleCase(name), true
	}
	return "", false
}

// looksLikeName accepts two to four capitalized words.
func looksLikeName(line string) bool {
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		r := []rune(w)
		if !unicode.IsUpper(r[0]) {
			return false
		}
	}
	return true
}

// JobAnalyzer extracts keywords from a job description by splitting on
// requirement phrases, conjunctions and list punctuation.
type JobAnalyzer struct{}

var (
	requirementPhrases = regexp.MustCompile(`(?i)\b(requires|required|requirements|must have|experience with|knowledge of|proficiency in|familiarity with)\b:?`)
	listSeparators     = regexp.MustCompile(`(?i)[,;\n•]|\band\b|\bor\b`)
	titlePattern       = regexp.MustCompile(`(?i)^\s*(title|role|position)\s*:\s*(.+)$`)
)

// Invoke implements tailor.Collaborator.
func (JobAnalyzer) Invoke(_ context.Context, in tailor.JobInput) (tailor.JobAnalysis, error) {
	var out tailor.JobAnalysis
	var body []string
	for _, line := range strings.Split(in.JobDescription, "\n") {
		if m := titlePattern.FindStringSubmatch(line); m != nil && out.Title == "" {
			out.Title = strings.TrimSpace(m[2])
			continue
		}
		if t := strings.TrimSpace(line); t != "" {
			out.Requirements = append(out.Requirements, t)
			body = append(body, t)
		}
	}

	text := requirementPhrases.ReplaceAllString(strings.Join(body, "\n"), ",")
	for _, part := range listSeparators.Split(text, -1) {
		kw := strings.Trim(strings.TrimSpace(part), ".:!?()[]\"'")
		if kw == "" || len(strings.Fields(kw)) > 4 {
			continue
		}
		out.Keywords = append(out.Keywords, kw)
	}
	out.Keywords = dedupe(out.Keywords)
	return out, nil
}

// Planner turns the analyses into one task per tailored section.
type Planner struct{}

// Invoke implements tailor.Collaborator.
func (Planner) Invoke(_ context.Context, in tailor.PlanInput) (tailor.TaskPlan, error) {
	have := make(map[string]bool, len(in.Resume.Skills))
	for _, s := range in.Resume.Skills {
		have[strings.ToLower(s)] = true
	}
	var missing []string
	for _, kw := range in.Job.Keywords {
		if !have[strings.ToLower(kw)] {
			missing = append(missing, kw)
		}
	}

	return tailor.TaskPlan{Tasks: []tailor.Task{
		{
			Section:     tailor.SectionWorkExperience,
			Keywords:    in.Job.Keywords,
			Instruction: "Emphasize experience that demonstrates the job keywords.",
		},
		{
			Section:     tailor.SectionSkills,
			Keywords:    missing,
			Instruction: "List matching skills first.",
		},
	}}, nil
}

func trimBullet(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "-*•· \t"))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == '|' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		key := strings.ToLower(it)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
