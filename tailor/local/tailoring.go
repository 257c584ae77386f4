package local

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/BaSui01/tailorflow/tailor"
)

// ExperienceTailor renders experience bullets as an itemize fragment, with
// bullets that mention a job keyword first and the keywords in bold.
type ExperienceTailor struct{}

// Invoke implements tailor.Collaborator.
func (ExperienceTailor) Invoke(_ context.Context, in tailor.SectionInput) (tailor.SectionResult, error) {
	bullets := in.Resume.Experience
	if len(bullets) == 0 {
		for _, l := range strings.Split(in.Original, "\n") {
			if l = trimBullet(l); l != "" {
				bullets = append(bullets, l)
			}
		}
	}

	keywords := in.Task.Keywords
	if len(keywords) == 0 {
		keywords = in.Job.Keywords
	}
	ranked := append([]string(nil), bullets...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return countMatches(ranked[i], keywords) > countMatches(ranked[j], keywords)
	})

	items := make([]string, len(ranked))
	for i, b := range ranked {
		items[i] = highlight(tailor.EscapeLaTeX(b), keywords)
	}
	return tailor.SectionResult{
		Section:  in.Section,
		Fragment: itemize(items, "No experience listed"),
		Original: in.Original,
	}, nil
}

// SkillsTailor lists resume skills, job matches first.
type SkillsTailor struct{}

// Invoke implements tailor.Collaborator.
func (SkillsTailor) Invoke(_ context.Context, in tailor.SectionInput) (tailor.SectionResult, error) {
	skills := append([]string(nil), in.Resume.Skills...)
	sort.SliceStable(skills, func(i, j int) bool {
		return containsFold(in.Job.Keywords, skills[i]) && !containsFold(in.Job.Keywords, skills[j])
	})
	return tailor.SectionResult{
		Section:  in.Section,
		Fragment: skillsFragment(skills),
		Original: in.Original,
	}, nil
}

// Validator checks fragments with tailor.FragmentIssues.
type Validator struct{}

// Invoke implements tailor.Collaborator.
func (Validator) Invoke(_ context.Context, in tailor.ValidationInput) (tailor.ValidationReport, error) {
	issues := tailor.FragmentIssues(in.Fragment)
	return tailor.ValidationReport{
		Section: in.Section,
		Valid:   len(issues) == 0,
		Issues:  issues,
	}, nil
}

// ComplianceScorer scores keyword coverage of the tailored sections and the
// resume body as a percentage.
type ComplianceScorer struct{}

// Invoke implements tailor.Collaborator.
func (ComplianceScorer) Invoke(_ context.Context, in tailor.ComplianceInput) (tailor.ComplianceResult, error) {
	var corpus strings.Builder
	corpus.WriteString(in.WorkExperience.Fragment)
	corpus.WriteString("\n")
	corpus.WriteString(in.Skills.Fragment)
	for _, s := range in.Resume.Sections {
		corpus.WriteString("\n")
		corpus.WriteString(s.Text())
	}
	text := strings.ToLower(corpus.String())

	var out tailor.ComplianceResult
	for _, kw := range in.Job.Keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			out.Matched = append(out.Matched, kw)
		} else {
			out.Missing = append(out.Missing, kw)
		}
	}
	out.Value = 100
	if total := len(in.Job.Keywords); total > 0 {
		out.Value = math.Round(float64(len(out.Matched))/float64(total)*1000) / 10
	}
	return out, nil
}

// Refiner injects the keywords compliance found missing into the skills
// section.
type Refiner struct{}

// Invoke implements tailor.Collaborator.
func (Refiner) Invoke(_ context.Context, in tailor.RefinementInput) (tailor.RefinementResult, error) {
	out := tailor.RefinementResult{
		WorkExperience: in.WorkExperience,
		Skills:         in.Skills,
		Added:          append([]string(nil), in.Compliance.Missing...),
	}
	if len(out.Added) == 0 {
		return out, nil
	}

	skills := extractSkills(in.Skills.Fragment)
	for _, kw := range out.Added {
		if !containsFold(skills, kw) {
			skills = append(skills, tailor.EscapeLaTeX(kw))
		}
	}
	out.Skills.Fragment = skillsFragmentEscaped(skills)
	return out, nil
}

var skillsPrefix = `\textbf{Skills:} `

func skillsFragment(skills []string) string {
	escaped := make([]string, len(skills))
	for i, s := range skills {
		escaped[i] = tailor.EscapeLaTeX(s)
	}
	return skillsFragmentEscaped(escaped)
}

func skillsFragmentEscaped(skills []string) string {
	if len(skills) == 0 {
		return `\textit{No skills listed}`
	}
	return skillsPrefix + strings.Join(skills, ", ")
}

// extractSkills reverses skillsFragment; the returned items stay escaped.
func extractSkills(fragment string) []string {
	if !strings.HasPrefix(fragment, skillsPrefix) {
		return nil
	}
	var out []string
	for _, s := range strings.Split(strings.TrimPrefix(fragment, skillsPrefix), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func itemize(items []string, empty string) string {
	if len(items) == 0 {
		return fmt.Sprintf(`\textit{%s}`, empty)
	}
	var b strings.Builder
	b.WriteString("\\begin{itemize}\n")
	for _, it := range items {
		b.WriteString("  \\item ")
		b.WriteString(it)
		b.WriteString("\n")
	}
	b.WriteString("\\end{itemize}")
	return b.String()
}

// highlight wraps keyword occurrences in \textbf. text is already escaped.
func highlight(text string, keywords []string) string {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		pattern := regexp.QuoteMeta(tailor.EscapeLaTeX(kw))
		if isWordByte(kw[0]) {
			pattern = `\b` + pattern
		}
		if isWordByte(kw[len(kw)-1]) {
			pattern += `\b`
		}
		re, err := regexp.Compile(`(?i)` + pattern)
		if err != nil {
			continue
		}
		text = re.ReplaceAllStringFunc(text, func(m string) string {
			return `\textbf{` + m + `}`
		})
	}
	return text
}

func countMatches(text string, keywords []string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

func containsFold(items []string, s string) bool {
	for _, it := range items {
		if strings.EqualFold(it, s) {
			return true
		}
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
