// Package export renders prompt templates and chat transcripts for download.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PabloGalante/promptlab/internal/domain"
)

// TemplateMarkdown writes the template with its placeholders intact.
func TemplateMarkdown(t domain.Template) string {
	var b strings.Builder

	base := t.BasePrompt
	if base == "" {
		base = "Not specified."
	}
	fmt.Fprintf(&b, "# Base Prompt (Template)\n%s\n\n", base)

	if len(t.Attributes) > 0 {
		b.WriteString("## Attributes (Template)\n")
		for _, a := range t.Attributes {
			fmt.Fprintf(&b, "- **%s**: %s\n", a.Name, a.Value)
		}
		b.WriteString("\n")
	}

	if len(t.Variables) > 0 {
		b.WriteString("## Input Variables (Test Values)\n")
		for _, v := range t.Variables {
			fmt.Fprintf(&b, "- **%s**: %s\n", v.Name, v.TestValue)
		}
	}
	return b.String()
}

type templateFile struct {
	BasePrompt     string              `json:"basePrompt"`
	Attributes     []templateAttribute `json:"attributes"`
	InputVariables []templateVariable  `json:"inputVariables"`
}

type templateAttribute struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

type templateVariable struct {
	Name      string `json:"name"`
	TestValue string `json:"testValue"`
}

// TemplateJSON writes the portable template shape. Ids are not exported.
func TemplateJSON(t domain.Template) ([]byte, error) {
	out := templateFile{
		BasePrompt:     t.BasePrompt,
		Attributes:     make([]templateAttribute, 0, len(t.Attributes)),
		InputVariables: make([]templateVariable, 0, len(t.Variables)),
	}
	for _, a := range t.Attributes {
		out.Attributes = append(out.Attributes, templateAttribute{Name: a.Name, Value: a.Value, Description: a.Description})
	}
	for _, v := range t.Variables {
		out.InputVariables = append(out.InputVariables, templateVariable{Name: v.Name, TestValue: v.TestValue})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal template: %w", err)
	}
	return data, nil
}
