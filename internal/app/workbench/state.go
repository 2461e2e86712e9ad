package workbench

import (
	"errors"

	"github.com/PabloGalante/promptlab/internal/domain"
)

var (
	// ErrBusy is returned when a remote call is already outstanding. State is untouched.
	ErrBusy = errors.New("a response is already in progress")
	// ErrNoActiveChat is returned by follow-ups when no session is open.
	ErrNoActiveChat = errors.New("no active chat session")
	// ErrSuperseded is returned when the chat was reset while the request was in flight.
	ErrSuperseded = errors.New("chat was reset while the request was in flight")

	ErrDuplicateVariable = errors.New("variable name already in use")
	ErrInvalidOrder      = errors.New("attribute order must list every attribute exactly once")
)

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseStarting Phase = "starting"
	PhaseActive   Phase = "active"
	PhaseAwaiting Phase = "awaiting"
	// PhaseEnded: history exists but no session could be opened.
	PhaseEnded Phase = "ended"
)

// RequestKind identifies the outstanding remote call, if any.
type RequestKind string

const (
	RequestNone     RequestKind = ""
	RequestStart    RequestKind = "start"
	RequestFollowUp RequestKind = "follow_up"
	RequestGenerate RequestKind = "generate"
)

// State is everything one page session knows about its prompt and chat.
type State struct {
	BasePrompt       string
	Attributes       []domain.Attribute
	Variables        []domain.InputVariable
	SelectedDomainID *string
	UseSearch        bool

	History      []domain.ChatMessage
	PendingInput string
	LastError    string
	// LastResponse is the result of the session-less Generate mode.
	LastResponse *domain.ChatMessage

	// Generation increments on every edit that invalidates the chat.
	// Requests remember the generation they were issued under.
	Generation uint64
	Pending    RequestKind
	// pendingGen is the generation Pending was issued under.
	pendingGen uint64

	session domain.ChatSession
}

// Responding reports whether a remote call is outstanding.
func (s State) Responding() bool {
	return s.Pending != RequestNone
}

func (s State) HasSession() bool {
	return s.session != nil
}

func (s State) Phase() Phase {
	if len(s.History) == 0 && s.session == nil {
		return PhaseIdle
	}
	if s.Pending != RequestNone && s.pendingGen == s.Generation {
		switch s.Pending {
		case RequestStart:
			return PhaseStarting
		case RequestFollowUp:
			return PhaseAwaiting
		}
	}
	if s.session == nil {
		return PhaseEnded
	}
	return PhaseActive
}

// Template returns the prompt definition without any chat state.
func (s State) Template() domain.Template {
	return domain.Template{
		BasePrompt: s.BasePrompt,
		Attributes: cloneAttributes(s.Attributes),
		Variables:  append([]domain.InputVariable(nil), s.Variables...),
	}
}

// Apply is the pure transition function for edit events.
func (s State) Apply(ev Event) (State, error) {
	return ev.apply(s)
}

// invalidate discards the chat. An outstanding request keeps running,
// but its result will not match the new generation.
func (s State) invalidate() State {
	s.History = nil
	s.session = nil
	s.PendingInput = ""
	s.LastError = ""
	s.LastResponse = nil
	s.Generation++
	return s
}

func (s State) clone() State {
	out := s
	out.Attributes = cloneAttributes(s.Attributes)
	out.Variables = append([]domain.InputVariable(nil), s.Variables...)
	out.History = append([]domain.ChatMessage(nil), s.History...)
	if s.SelectedDomainID != nil {
		id := *s.SelectedDomainID
		out.SelectedDomainID = &id
	}
	if s.LastResponse != nil {
		r := *s.LastResponse
		out.LastResponse = &r
	}
	return out
}

func cloneAttributes(attrs []domain.Attribute) []domain.Attribute {
	if attrs == nil {
		return nil
	}
	out := make([]domain.Attribute, len(attrs))
	for i, a := range attrs {
		a.ValueOptions = append([]string(nil), a.ValueOptions...)
		out[i] = a
	}
	return out
}
