package local

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/BaSui01/tailorflow/tailor"
)

const documentTemplate = `\documentclass[11pt]{article}
\usepackage[margin=1in]{geometry}
\begin{document}

\section*{ {{- .Name -}} }
{{- if .Summary }}

{{ .Summary }}
{{- end }}

\section*{Experience}
{{ .Experience }}

\section*{Skills}
{{ .Skills }}

\end{document}
`

// Generator assembles the final LaTeX document with text/template.
type Generator struct {
	tmpl *template.Template
}

// NewGenerator parses the document template.
func NewGenerator() *Generator {
	return &Generator{tmpl: template.Must(template.New("resume").Parse(documentTemplate))}
}

type documentData struct {
	Name       string
	Summary    string
	Experience string
	Skills     string
}

// Invoke implements tailor.Collaborator.
func (g *Generator) Invoke(_ context.Context, in tailor.GenerationInput) (tailor.TailoredDocument, error) {
	data := documentData{
		Name:       tailor.EscapeLaTeX(in.Resume.Name),
		Experience: fragment(in.WorkExperience),
		Skills:     fragment(in.Skills),
	}
	if data.Name == "" {
		data.Name = "Resume"
	}
	if s, ok := in.Resume.Section("summary", "profile", "objective"); ok {
		data.Summary = tailor.EscapeLaTeX(s.Text())
	} else if len(in.Resume.Sections) == 0 {
		data.Summary = tailor.EscapeLaTeX(strings.TrimSpace(in.Document))
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return tailor.TailoredDocument{}, fmt.Errorf("render document: %w", err)
	}
	return tailor.TailoredDocument{Format: "latex", Content: buf.String()}, nil
}

// fragment returns a section's LaTeX, escaping text that fell back to the
// unmodified original.
func fragment(s tailor.SectionResult) string {
	if s.FellBack {
		return tailor.EscapeLaTeX(s.Fragment)
	}
	return s.Fragment
}
