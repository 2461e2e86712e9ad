// Package workbench owns the state of one prompt-editing session and drives
// its chat with the model: when a session starts, when it continues, and when
// an edit throws it away.
package workbench

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/promptlab/internal/domain"
	"github.com/PabloGalante/promptlab/internal/observability"
	"github.com/PabloGalante/promptlab/internal/prompt"
)

type Options struct {
	ModelName string
	// DomainID is the initially selected domain; empty means none.
	DomainID string

	Now   func() time.Time
	NewID func() string
}

type Workbench struct {
	id        domain.WorkbenchID
	model     domain.ChatModel
	modelName string
	now       func() time.Time
	newID     func() string

	mu    sync.Mutex
	state State
}

func New(id domain.WorkbenchID, model domain.ChatModel, opts Options) *Workbench {
	w := &Workbench{
		id:        id,
		model:     model,
		modelName: opts.ModelName,
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.newID == nil {
		w.newID = uuid.NewString
	}
	if opts.DomainID != "" {
		d := opts.DomainID
		w.state.SelectedDomainID = &d
	}
	return w
}

func (w *Workbench) ID() domain.WorkbenchID {
	return w.id
}

// Snapshot returns a copy of the current state.
func (w *Workbench) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.clone()
}

// Preview assembles the current prompt.
func (w *Workbench) Preview() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return prompt.Assemble(w.state.BasePrompt, w.state.Attributes, w.state.Variables)
}

// BannerError is the general error to show, unless the chat history already carries it.
func (w *Workbench) BannerError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range w.state.History {
		if m.Error != "" {
			return ""
		}
	}
	return w.state.LastError
}

// Dispatch applies an edit event. Ids are assigned to new attributes and variables.
func (w *Workbench) Dispatch(ctx context.Context, ev Event) (State, error) {
	ev = w.withIDs(ev)

	w.mu.Lock()
	defer w.mu.Unlock()

	next, err := w.state.Apply(ev)
	if err != nil {
		return w.state.clone(), err
	}

	if next.Generation != w.state.Generation {
		w.logger(ctx).Debug("chat invalidated",
			"event", eventName(ev),
			"generation", next.Generation,
			"discarded_messages", len(w.state.History),
		)
	}
	w.state = next
	return w.state.clone(), nil
}

// StartChat assembles the prompt, opens a session and sends it as the first message.
// Remote failures are recorded in the history; only guard and validation problems
// are returned as errors.
func (w *Workbench) StartChat(ctx context.Context) (*domain.ChatMessage, error) {
	log := w.logger(ctx)

	w.mu.Lock()
	if pending := w.state.Pending; pending != RequestNone {
		w.mu.Unlock()
		log.Warn("start chat ignored, request in flight", "pending", pending)
		return nil, ErrBusy
	}

	st := w.state
	if st.Phase() != PhaseIdle {
		st = st.invalidate()
	}
	st.LastError = ""

	text := prompt.Assemble(st.BasePrompt, st.Attributes, st.Variables)
	if err := prompt.Validate(st.BasePrompt, st.Attributes, st.Variables); err != nil {
		st.LastError = err.Error()
		w.state = st
		w.mu.Unlock()
		log.Info("start chat rejected", "reason", err)
		return nil, err
	}

	st.History = []domain.ChatMessage{w.message(domain.RoleUser, text)}
	st.Pending = RequestStart
	st.pendingGen = st.Generation
	gen := st.Generation
	cfg := domain.SessionConfig{Model: w.modelName, UseSearch: st.UseSearch}
	w.state = st
	w.mu.Unlock()

	log.Info("starting chat", "generation", gen, "use_search", cfg.UseSearch, "prompt_chars", len(text))

	// The remote call outlives the caller: edits reset local state, they never abort it.
	rctx := context.WithoutCancel(ctx)

	session, err := w.model.NewSession(rctx, cfg)
	var reply *domain.Reply
	if err == nil {
		w.mu.Lock()
		if w.state.Generation == gen {
			w.state.session = session
		}
		w.mu.Unlock()
		reply, err = session.Send(rctx, text)
	}

	return w.resolve(log, gen, reply, err)
}

// SendFollowUp sends raw text through the open session. An empty text
// falls back to the pending input.
func (w *Workbench) SendFollowUp(ctx context.Context, text string) (*domain.ChatMessage, error) {
	log := w.logger(ctx)

	w.mu.Lock()
	if w.state.Responding() {
		w.mu.Unlock()
		log.Warn("follow-up ignored, request in flight")
		return nil, ErrBusy
	}
	if w.state.session == nil {
		w.mu.Unlock()
		return nil, ErrNoActiveChat
	}
	if text == "" {
		text = w.state.PendingInput
	}
	if strings.TrimSpace(text) == "" {
		w.mu.Unlock()
		return nil, &domain.ValidationError{Message: "Message is empty."}
	}

	st := w.state
	st.LastError = ""
	st.History = append(append([]domain.ChatMessage(nil), st.History...), w.message(domain.RoleUser, text))
	st.PendingInput = ""
	st.Pending = RequestFollowUp
	st.pendingGen = st.Generation
	gen := st.Generation
	session := st.session
	w.state = st
	w.mu.Unlock()

	log.Info("sending follow-up", "generation", gen, "history_len", len(st.History))

	reply, err := session.Send(context.WithoutCancel(ctx), text)
	return w.resolve(log, gen, reply, err)
}

// Generate is the session-less mode: one request, one answer, no history.
func (w *Workbench) Generate(ctx context.Context) (*domain.ChatMessage, error) {
	log := w.logger(ctx)

	w.mu.Lock()
	if w.state.Responding() {
		w.mu.Unlock()
		return nil, ErrBusy
	}

	st := w.state
	st.LastError = ""
	st.LastResponse = nil
	if err := prompt.Validate(st.BasePrompt, st.Attributes, st.Variables); err != nil {
		st.LastError = err.Error()
		w.state = st
		w.mu.Unlock()
		return nil, err
	}

	text := prompt.Assemble(st.BasePrompt, st.Attributes, st.Variables)
	st.Pending = RequestGenerate
	st.pendingGen = st.Generation
	gen := st.Generation
	useSearch := st.UseSearch
	w.state = st
	w.mu.Unlock()

	log.Info("generating response", "generation", gen, "use_search", useSearch)

	reply, err := w.model.Complete(context.WithoutCancel(ctx), text, useSearch)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.state.Pending = RequestNone
	if w.state.Generation != gen {
		log.Info("discarding stale response", "request_generation", gen, "generation", w.state.Generation)
		return nil, ErrSuperseded
	}

	msg := w.modelMessage(reply, err)
	if msg.Error != "" {
		w.state.LastError = msg.Error
		log.Error("generate failed", "error", err)
	}
	w.state.LastResponse = &msg
	return &msg, nil
}

// resolve records the outcome of a chat request. A result issued under an
// older generation is dropped.
func (w *Workbench) resolve(log *slog.Logger, gen uint64, reply *domain.Reply, err error) (*domain.ChatMessage, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.state.Pending = RequestNone
	if w.state.Generation != gen {
		log.Info("discarding stale response", "request_generation", gen, "generation", w.state.Generation)
		return nil, ErrSuperseded
	}

	msg := w.modelMessage(reply, err)
	if msg.Error != "" {
		w.state.LastError = msg.Error
		log.Error("chat request failed", "error", err)
	}
	w.state.History = append(w.state.History, msg)

	log.Info("chat response recorded", "generation", gen, "phase", w.state.Phase(), "citations", len(msg.Citations))
	return &msg, nil
}

func (w *Workbench) modelMessage(reply *domain.Reply, err error) domain.ChatMessage {
	msg := w.message(domain.RoleModel, "")
	if err != nil {
		msg.Text = "Error: " + err.Error()
		msg.Error = err.Error()
		return msg
	}
	if reply != nil {
		msg.Text = reply.Text
		msg.Citations = reply.Citations
	}
	return msg
}

func (w *Workbench) message(role domain.Role, text string) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        domain.MessageID(w.newID()),
		Role:      role,
		Text:      text,
		Timestamp: w.now(),
	}
}

func (w *Workbench) withIDs(ev Event) Event {
	switch e := ev.(type) {
	case AddAttribute:
		if e.Attribute.ID == "" {
			e.Attribute.ID = domain.AttributeID(w.newID())
		}
		return e
	case AddVariable:
		if e.Variable.ID == "" {
			e.Variable.ID = domain.VariableID(w.newID())
		}
		return e
	case LoadTemplate:
		t := e.Template
		t.Attributes = cloneAttributes(t.Attributes)
		for i := range t.Attributes {
			t.Attributes[i].ID = domain.AttributeID(w.newID())
		}
		t.Variables = append([]domain.InputVariable(nil), t.Variables...)
		for i := range t.Variables {
			t.Variables[i].ID = domain.VariableID(w.newID())
		}
		e.Template = t
		return e
	}
	return ev
}

func (w *Workbench) logger(ctx context.Context) *slog.Logger {
	return observability.LoggerFromContext(ctx).With("workbench_id", w.id)
}

func eventName(ev Event) string {
	switch ev.(type) {
	case SetBasePrompt:
		return "set_base_prompt"
	case AddAttribute:
		return "add_attribute"
	case UpdateAttribute:
		return "update_attribute"
	case DeleteAttribute:
		return "delete_attribute"
	case ReorderAttributes:
		return "reorder_attributes"
	case AddVariable:
		return "add_variable"
	case UpdateVariable:
		return "update_variable"
	case DeleteVariable:
		return "delete_variable"
	case SelectDomain:
		return "select_domain"
	case SetSearch:
		return "set_search"
	case LoadTemplate:
		return "load_template"
	case ResetChat:
		return "reset_chat"
	case SetPendingInput:
		return "set_pending_input"
	}
	return "unknown"
}
