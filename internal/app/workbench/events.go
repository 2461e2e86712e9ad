package workbench

import (
	"fmt"
	"strings"

	"github.com/PabloGalante/promptlab/internal/domain"
)

// Event is a user edit. Every event except SetPendingInput invalidates the chat.
type Event interface {
	apply(State) (State, error)
}

type SetBasePrompt struct {
	Text string
}

func (e SetBasePrompt) apply(s State) (State, error) {
	s = s.invalidate()
	s.BasePrompt = e.Text
	return s, nil
}

type AddAttribute struct {
	Attribute domain.Attribute
}

func (e AddAttribute) apply(s State) (State, error) {
	s = s.invalidate()
	s.Attributes = append(cloneAttributes(s.Attributes), e.Attribute)
	return s, nil
}

// UpdateAttribute changes the non-nil fields of one attribute.
type UpdateAttribute struct {
	ID          domain.AttributeID
	Name        *string
	Value       *string
	Description *string
}

func (e UpdateAttribute) apply(s State) (State, error) {
	i := attributeIndex(s.Attributes, e.ID)
	if i < 0 {
		return s, fmt.Errorf("attribute %q: %w", e.ID, domain.ErrNotFound)
	}

	s = s.invalidate()
	s.Attributes = cloneAttributes(s.Attributes)
	a := &s.Attributes[i]
	if e.Name != nil {
		a.Name = *e.Name
	}
	if e.Value != nil {
		a.Value = *e.Value
	}
	if e.Description != nil {
		a.Description = *e.Description
	}
	return s, nil
}

type DeleteAttribute struct {
	ID domain.AttributeID
}

func (e DeleteAttribute) apply(s State) (State, error) {
	i := attributeIndex(s.Attributes, e.ID)
	if i < 0 {
		return s, fmt.Errorf("attribute %q: %w", e.ID, domain.ErrNotFound)
	}

	s = s.invalidate()
	attrs := cloneAttributes(s.Attributes)
	s.Attributes = append(attrs[:i], attrs[i+1:]...)
	return s, nil
}

// ReorderAttributes replaces the whole order at once.
type ReorderAttributes struct {
	Order []domain.AttributeID
}

func (e ReorderAttributes) apply(s State) (State, error) {
	if len(e.Order) != len(s.Attributes) {
		return s, ErrInvalidOrder
	}

	byID := make(map[domain.AttributeID]domain.Attribute, len(s.Attributes))
	for _, a := range cloneAttributes(s.Attributes) {
		byID[a.ID] = a
	}

	reordered := make([]domain.Attribute, 0, len(e.Order))
	for _, id := range e.Order {
		a, ok := byID[id]
		if !ok {
			return s, ErrInvalidOrder
		}
		delete(byID, id)
		reordered = append(reordered, a)
	}

	s = s.invalidate()
	s.Attributes = reordered
	return s, nil
}

type AddVariable struct {
	Variable domain.InputVariable
}

func (e AddVariable) apply(s State) (State, error) {
	v := e.Variable
	v.Name = CleanVariableName(v.Name)
	if nameTaken(s.Variables, v.Name, "") {
		return s, fmt.Errorf("%q: %w", v.Name, ErrDuplicateVariable)
	}

	s = s.invalidate()
	s.Variables = append(append([]domain.InputVariable(nil), s.Variables...), v)
	return s, nil
}

// UpdateVariable changes the non-nil fields of one variable.
type UpdateVariable struct {
	ID        domain.VariableID
	Name      *string
	TestValue *string
}

func (e UpdateVariable) apply(s State) (State, error) {
	i := variableIndex(s.Variables, e.ID)
	if i < 0 {
		return s, fmt.Errorf("variable %q: %w", e.ID, domain.ErrNotFound)
	}

	vars := append([]domain.InputVariable(nil), s.Variables...)
	if e.Name != nil {
		name := CleanVariableName(*e.Name)
		if nameTaken(vars, name, e.ID) {
			return s, fmt.Errorf("%q: %w", name, ErrDuplicateVariable)
		}
		vars[i].Name = name
	}
	if e.TestValue != nil {
		vars[i].TestValue = *e.TestValue
	}

	s = s.invalidate()
	s.Variables = vars
	return s, nil
}

type DeleteVariable struct {
	ID domain.VariableID
}

func (e DeleteVariable) apply(s State) (State, error) {
	i := variableIndex(s.Variables, e.ID)
	if i < 0 {
		return s, fmt.Errorf("variable %q: %w", e.ID, domain.ErrNotFound)
	}

	s = s.invalidate()
	vars := append([]domain.InputVariable(nil), s.Variables...)
	s.Variables = append(vars[:i], vars[i+1:]...)
	return s, nil
}

// SelectDomain sets the domain; nil clears it.
type SelectDomain struct {
	DomainID *string
}

func (e SelectDomain) apply(s State) (State, error) {
	s = s.invalidate()
	s.SelectedDomainID = copyString(e.DomainID)
	return s, nil
}

// SetSearch toggles search augmentation. A change discards an open session;
// otherwise the flag applies to the next chat. Setting the current value is a no-op.
type SetSearch struct {
	Enabled bool
}

func (e SetSearch) apply(s State) (State, error) {
	if e.Enabled == s.UseSearch {
		return s, nil
	}
	if s.session != nil {
		s = s.invalidate()
	}
	s.UseSearch = e.Enabled
	return s, nil
}

// LoadTemplate replaces the whole prompt definition, e.g. from an example or an imported file.
type LoadTemplate struct {
	Template domain.Template
	DomainID *string
}

func (e LoadTemplate) apply(s State) (State, error) {
	vars := make([]domain.InputVariable, 0, len(e.Template.Variables))
	for _, v := range e.Template.Variables {
		v.Name = CleanVariableName(v.Name)
		if nameTaken(vars, v.Name, "") {
			return s, fmt.Errorf("%q: %w", v.Name, ErrDuplicateVariable)
		}
		vars = append(vars, v)
	}

	s = s.invalidate()
	s.BasePrompt = e.Template.BasePrompt
	s.Attributes = cloneAttributes(e.Template.Attributes)
	s.Variables = vars
	s.SelectedDomainID = copyString(e.DomainID)
	return s, nil
}

// ResetChat discards the chat without touching the prompt.
type ResetChat struct{}

func (ResetChat) apply(s State) (State, error) {
	return s.invalidate(), nil
}

// SetPendingInput stores the follow-up being typed. It does not invalidate anything.
type SetPendingInput struct {
	Text string
}

func (e SetPendingInput) apply(s State) (State, error) {
	s.PendingInput = e.Text
	return s, nil
}

var braces = strings.NewReplacer("{{", "", "}}", "")

// CleanVariableName strips placeholder braces and surrounding whitespace.
func CleanVariableName(name string) string {
	return strings.TrimSpace(braces.Replace(name))
}

func nameTaken(vars []domain.InputVariable, name string, except domain.VariableID) bool {
	if name == "" {
		return false
	}
	for _, v := range vars {
		if v.ID != except && strings.TrimSpace(v.Name) == name {
			return true
		}
	}
	return false
}

func attributeIndex(attrs []domain.Attribute, id domain.AttributeID) int {
	for i, a := range attrs {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func variableIndex(vars []domain.InputVariable, id domain.VariableID) int {
	for i, v := range vars {
		if v.ID == id {
			return i
		}
	}
	return -1
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
