package tailor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/tailorflow/types"
)

var (
	envPattern  = regexp.MustCompile(`\\(begin|end)\{([^}]*)\}`)
	latexEscape = strings.NewReplacer(
		`\`, `\textbackslash{}`,
		`&`, `\&`,
		`%`, `\%`,
		`$`, `\$`,
		`#`, `\#`,
		`_`, `\_`,
		`{`, `\{`,
		`}`, `\}`,
		`~`, `\textasciitilde{}`,
		`^`, `\textasciicircum{}`,
	)
)

// EscapeLaTeX escapes text so it can be embedded in a LaTeX fragment.
func EscapeLaTeX(s string) string {
	return latexEscape.Replace(s)
}

// FragmentIssues lists the problems that keep fragment from being embedded
// in the generated document. An empty result means the fragment is usable.
func FragmentIssues(fragment string) []string {
	var issues []string
	if strings.TrimSpace(fragment) == "" {
		return []string{"fragment is empty"}
	}
	if strings.Contains(fragment, `\documentclass`) || strings.Contains(fragment, `\begin{document}`) {
		issues = append(issues, "fragment must not contain a document preamble")
	}

	depth := 0
	for i := 0; i < len(fragment); i++ {
		switch fragment[i] {
		case '\\':
			i++ // skip the escaped character
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				issues = append(issues, fmt.Sprintf("unbalanced closing brace at offset %d", i))
				depth = 0
			}
		case '&', '%', '#', '_':
			issues = append(issues, fmt.Sprintf("unescaped %q at offset %d", fragment[i], i))
		}
	}
	if depth > 0 {
		issues = append(issues, fmt.Sprintf("%d unclosed brace(s)", depth))
	}

	var stack []string
	for _, m := range envPattern.FindAllStringSubmatch(fragment, -1) {
		kind, env := m[1], m[2]
		if kind == "begin" {
			stack = append(stack, env)
			continue
		}
		if len(stack) == 0 || stack[len(stack)-1] != env {
			issues = append(issues, fmt.Sprintf(`\end{%s} without matching \begin`, env))
			continue
		}
		stack = stack[:len(stack)-1]
	}
	for _, env := range stack {
		issues = append(issues, fmt.Sprintf(`\begin{%s} is never closed`, env))
	}

	if strings.Contains(fragment, `\begin{itemize}`) && !strings.Contains(fragment, `\item`) {
		issues = append(issues, "itemize environment has no items")
	}
	return issues
}

// CheckFragment returns a VALIDATION_FAILURE error when fragment is not a
// well-formed LaTeX fragment.
func CheckFragment(fragment string) error {
	issues := FragmentIssues(fragment)
	if len(issues) == 0 {
		return nil
	}
	return types.NewError(types.ErrValidationFailure, strings.Join(issues, "; "))
}
