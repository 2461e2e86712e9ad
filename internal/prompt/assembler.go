// Package prompt assembles the text sent to the model from a base prompt,
// an ordered attribute list and input variable bindings.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PabloGalante/promptlab/internal/domain"
)

// EmptyPromptText is returned by Assemble when there is nothing to send.
// Callers detect the empty case by comparing against it.
const EmptyPromptText = "Prompt is empty. Add a base prompt or attributes."

const attributesHeader = "--- Attributes ---"

// PlaceholderPattern matches any {{ name }} placeholder.
var PlaceholderPattern = regexp.MustCompile(`\{\{\s*([^}\s]+)\s*\}\}`)

func variablePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`\{\{\s*` + regexp.QuoteMeta(name) + `\s*\}\}`)
}

// SubstituteVariables replaces every {{ name }} with the variable's test value.
// Variables with an empty name are ignored. Values are inserted verbatim.
func SubstituteVariables(text string, vars []domain.InputVariable) string {
	out := text
	for _, v := range vars {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			continue
		}
		out = variablePattern(name).ReplaceAllLiteralString(out, v.TestValue)
	}
	return out
}

// Assemble builds the final prompt. Attributes keep the order they are given in.
func Assemble(base string, attrs []domain.Attribute, vars []domain.InputVariable) string {
	var b strings.Builder

	if substituted := strings.TrimSpace(SubstituteVariables(base, vars)); substituted != "" {
		b.WriteString(substituted)
		b.WriteString("\n\n")
	}

	header := false
	for _, a := range attrs {
		if strings.TrimSpace(a.Name) == "" && strings.TrimSpace(a.Value) == "" {
			continue
		}
		if !header {
			b.WriteString(attributesHeader)
			b.WriteString("\n")
			header = true
		}
		b.WriteString(strings.TrimSpace(a.Name))
		b.WriteString(": ")
		b.WriteString(SubstituteVariables(a.Value, vars))
		b.WriteString("\n")
	}

	final := strings.TrimSpace(b.String())
	if final == "" {
		return EmptyPromptText
	}
	return final
}

// IsEmpty reports whether an assembled prompt is the empty sentinel.
func IsEmpty(assembled string) bool {
	return assembled == EmptyPromptText
}

// ReferencedNames lists placeholder names found in text, first occurrence first.
func ReferencedNames(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range PlaceholderPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Validate runs the pre-flight checks done before anything is sent.
func Validate(base string, attrs []domain.Attribute, vars []domain.InputVariable) error {
	if IsEmpty(Assemble(base, attrs, vars)) {
		return &domain.ValidationError{Message: "Prompt is empty. Please add content before starting a chat."}
	}

	texts := []string{base}
	for _, a := range attrs {
		texts = append(texts, a.Value)
	}
	if !hasPlaceholder(texts) {
		return nil
	}

	var missing []string
	for _, v := range vars {
		name := strings.TrimSpace(v.Name)
		if name == "" || strings.TrimSpace(v.TestValue) != "" {
			continue
		}
		if referenced(variablePattern(name), texts) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	return &domain.ValidationError{
		Message: fmt.Sprintf("The prompt uses variables that need test values. Missing for: %s.", strings.Join(missing, ", ")),
		Missing: missing,
	}
}

func hasPlaceholder(texts []string) bool {
	return referenced(PlaceholderPattern, texts)
}

func referenced(re *regexp.Regexp, texts []string) bool {
	for _, t := range texts {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}
