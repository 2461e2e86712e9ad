// Package templatefile imports prompt templates written by hand or exported earlier.
package templatefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v2"

	"github.com/PabloGalante/promptlab/internal/domain"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatHJSON Format = "hjson"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported template format")
	ErrInvalidTemplate   = errors.New("invalid template")
)

// FormatOf maps a file name or a bare format name to a Format.
func FormatOf(name string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		ext = strings.ToLower(name)
	}
	switch ext {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "hjson":
		return FormatHJSON, nil
	}
	return "", fmt.Errorf("%q: %w", name, ErrUnsupportedFormat)
}

// Load reads and parses a template file.
func Load(path string) (*domain.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes data using the format implied by filename.
func Parse(filename string, data []byte) (*domain.Template, error) {
	format, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}
	return Decode(format, data)
}

// Decode decodes data in the given format. Malformed JSON gets one repair attempt.
func Decode(format Format, data []byte) (*domain.Template, error) {
	var t domain.Template

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("%w: yaml: %w", ErrInvalidTemplate, err)
		}
	case FormatHJSON:
		if err := hjson.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("%w: hjson: %w", ErrInvalidTemplate, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &t); err != nil {
			repaired, rerr := jsonrepair.RepairJSON(string(data))
			if rerr != nil {
				return nil, fmt.Errorf("%w: json: %w", ErrInvalidTemplate, err)
			}
			t = domain.Template{}
			if err := json.Unmarshal([]byte(repaired), &t); err != nil {
				return nil, fmt.Errorf("%w: repaired json: %w", ErrInvalidTemplate, err)
			}
		}
	default:
		return nil, fmt.Errorf("%q: %w", format, ErrUnsupportedFormat)
	}

	return normalize(&t)
}

// normalize drops ids from the file and rejects blank attributes.
// An attribute with a value but no name is kept, as the assembler keeps it.
func normalize(t *domain.Template) (*domain.Template, error) {
	for i := range t.Attributes {
		a := &t.Attributes[i]
		a.ID = ""
		if strings.TrimSpace(a.Name) == "" && strings.TrimSpace(a.Value) == "" {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("Attribute %d has no name or value.", i+1)}
		}
	}
	for i := range t.Variables {
		t.Variables[i].ID = ""
	}
	if t.BasePrompt == "" && len(t.Attributes) == 0 && len(t.Variables) == 0 {
		return nil, &domain.ValidationError{Message: "Template is empty."}
	}
	return t, nil
}
