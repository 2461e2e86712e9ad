package workbench_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PabloGalante/promptlab/internal/adapters/llm"
	"github.com/PabloGalante/promptlab/internal/app/workbench"
	"github.com/PabloGalante/promptlab/internal/domain"
)

func newWorkbench(t *testing.T) (*workbench.Workbench, *llm.MockLLM) {
	t.Helper()
	model := llm.NewMockLLM()
	wb := workbench.New("wb-test", model, workbench.Options{ModelName: "test-model", DomainID: "general"})
	return wb, model
}

func dispatch(t *testing.T, wb *workbench.Workbench, ev workbench.Event) workbench.State {
	t.Helper()
	st, err := wb.Dispatch(context.Background(), ev)
	if err != nil {
		t.Fatalf("Dispatch(%T) failed: %v", ev, err)
	}
	return st
}

func setupExplain(t *testing.T, wb *workbench.Workbench) {
	t.Helper()
	dispatch(t, wb, workbench.SetBasePrompt{Text: "Explain {{topic}}"})
	dispatch(t, wb, workbench.AddAttribute{Attribute: domain.Attribute{Name: "Tone", Value: "Formal"}})
	dispatch(t, wb, workbench.AddVariable{Variable: domain.InputVariable{Name: "topic", TestValue: "gravity"}})
}

func waitEntered(t *testing.T, model *llm.MockLLM) string {
	t.Helper()
	select {
	case text := <-model.Entered():
		return text
	case <-time.After(2 * time.Second):
		t.Fatalf("request never reached the model")
	}
	return ""
}

func TestStartChatAndFollowUp(t *testing.T) {
	ctx := context.Background()
	wb, model := newWorkbench(t)
	setupExplain(t, wb)
	dispatch(t, wb, workbench.SetSearch{Enabled: true})

	model.QueueReply(domain.Reply{
		Text:      "Gravity is...",
		Citations: []domain.Citation{{Web: &domain.Source{URI: "https://example.com", Title: "Example"}}},
	})

	reply, err := wb.StartChat(ctx)
	if err != nil {
		t.Fatalf("StartChat failed: %v", err)
	}
	if reply.Role != domain.RoleModel || reply.Text != "Gravity is..." || len(reply.Citations) != 1 {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	st := wb.Snapshot()
	if st.Phase() != workbench.PhaseActive {
		t.Fatalf("expected active phase, got %s", st.Phase())
	}
	want := "Explain gravity\n\n--- Attributes ---\nTone: Formal"
	if len(st.History) != 2 || st.History[0].Role != domain.RoleUser || st.History[0].Text != want {
		t.Fatalf("unexpected history: %+v", st.History)
	}

	sessions := model.Sessions()
	if len(sessions) != 1 || sessions[0].Model != "test-model" || !sessions[0].UseSearch {
		t.Fatalf("unexpected session config: %+v", sessions)
	}

	// follow-ups are sent raw, without re-substituting variables
	if _, err := wb.SendFollowUp(ctx, "And {{topic}} on Mars?"); err != nil {
		t.Fatalf("SendFollowUp failed: %v", err)
	}
	sent := model.Sent()
	if sent[len(sent)-1] != "And {{topic}} on Mars?" {
		t.Fatalf("expected raw follow-up text, got %q", sent[len(sent)-1])
	}
	if got := len(wb.Snapshot().History); got != 4 {
		t.Fatalf("expected 4 messages, got %d", got)
	}
	if len(model.Sessions()) != 1 {
		t.Fatalf("follow-up must reuse the session")
	}
}

func TestStartChatValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("empty prompt", func(t *testing.T) {
		wb, model := newWorkbench(t)
		_, err := wb.StartChat(ctx)
		if !domain.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if len(model.Sent()) != 0 || len(model.Sessions()) != 0 {
			t.Fatalf("no remote call expected")
		}
		if wb.BannerError() == "" {
			t.Fatalf("expected banner error")
		}
	})

	t.Run("missing test value", func(t *testing.T) {
		wb, model := newWorkbench(t)
		dispatch(t, wb, workbench.SetBasePrompt{Text: "Tell me about {{x}}"})
		dispatch(t, wb, workbench.AddVariable{Variable: domain.InputVariable{Name: "x"}})

		_, err := wb.StartChat(ctx)
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || len(ve.Missing) != 1 || ve.Missing[0] != "x" {
			t.Fatalf("expected missing x, got %v", err)
		}
		if !strings.Contains(wb.Snapshot().LastError, "x") {
			t.Fatalf("last error should name x: %q", wb.Snapshot().LastError)
		}
		if len(model.Sent()) != 0 || len(model.Sessions()) != 0 {
			t.Fatalf("no remote call expected")
		}
		if wb.Snapshot().Phase() != workbench.PhaseIdle {
			t.Fatalf("expected idle after rejected start")
		}
	})
}

func TestEditInvalidatesActiveChat(t *testing.T) {
	ctx := context.Background()

	edits := []workbench.Event{
		workbench.SetBasePrompt{Text: "Explain {{topic}} briefly"},
		workbench.AddAttribute{Attribute: domain.Attribute{Name: "Length", Value: "short"}},
		workbench.AddVariable{Variable: domain.InputVariable{Name: "level", TestValue: "kids"}},
		workbench.SelectDomain{DomainID: nil},
		workbench.SetSearch{Enabled: true},
		workbench.ResetChat{},
	}

	for _, ev := range edits {
		wb, _ := newWorkbench(t)
		setupExplain(t, wb)
		if _, err := wb.StartChat(ctx); err != nil {
			t.Fatalf("StartChat failed: %v", err)
		}
		dispatch(t, wb, workbench.SetPendingInput{Text: "draft"})
		before := wb.Snapshot()

		after := dispatch(t, wb, ev)
		if after.Phase() != workbench.PhaseIdle {
			t.Fatalf("%T: expected idle, got %s", ev, after.Phase())
		}
		if len(after.History) != 0 || after.PendingInput != "" || after.HasSession() {
			t.Fatalf("%T: chat not cleared: %+v", ev, after)
		}
		if after.Generation <= before.Generation {
			t.Fatalf("%T: generation not bumped", ev)
		}
		if _, err := wb.SendFollowUp(ctx, "still there?"); !errors.Is(err, workbench.ErrNoActiveChat) {
			t.Fatalf("%T: expected ErrNoActiveChat, got %v", ev, err)
		}
	}
}

func TestAttributeEditsInvalidate(t *testing.T) {
	ctx := context.Background()
	wb, _ := newWorkbench(t)
	setupExplain(t, wb)
	dispatch(t, wb, workbench.AddAttribute{Attribute: domain.Attribute{Name: "Role", Value: "Teacher"}})

	attrs := wb.Snapshot().Attributes
	edits := []workbench.Event{
		workbench.UpdateAttribute{ID: attrs[0].ID, Value: ptr("Casual")},
		workbench.ReorderAttributes{Order: []domain.AttributeID{attrs[1].ID, attrs[0].ID}},
		workbench.DeleteAttribute{ID: attrs[1].ID},
	}
	for _, ev := range edits {
		if _, err := wb.StartChat(ctx); err != nil {
			t.Fatalf("StartChat failed: %v", err)
		}
		if st := dispatch(t, wb, ev); st.Phase() != workbench.PhaseIdle || len(st.History) != 0 {
			t.Fatalf("%T: expected idle with empty history", ev)
		}
	}

	vars := wb.Snapshot().Variables
	if _, err := wb.StartChat(ctx); err != nil {
		t.Fatalf("StartChat failed: %v", err)
	}
	if st := dispatch(t, wb, workbench.UpdateVariable{ID: vars[0].ID, TestValue: ptr("light")}); st.Phase() != workbench.PhaseIdle {
		t.Fatalf("variable update should invalidate")
	}
}

func TestFollowUpWhileRespondingIsNoop(t *testing.T) {
	ctx := context.Background()
	wb, model := newWorkbench(t)
	setupExplain(t, wb)
	if _, err := wb.StartChat(ctx); err != nil {
		t.Fatalf("StartChat failed: %v", err)
	}
	waitEntered(t, model)

	release := model.Hold()
	done := make(chan error, 1)
	go func() {
		_, err := wb.SendFollowUp(ctx, "first")
		done <- err
	}()
	waitEntered(t, model)

	st := wb.Snapshot()
	if st.Phase() != workbench.PhaseAwaiting || !st.Responding() {
		t.Fatalf("expected awaiting, got %s", st.Phase())
	}

	if _, err := wb.SendFollowUp(ctx, "second"); !errors.Is(err, workbench.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if _, err := wb.StartChat(ctx); !errors.Is(err, workbench.ErrBusy) {
		t.Fatalf("expected ErrBusy for start, got %v", err)
	}
	if got := len(wb.Snapshot().History); got != len(st.History) {
		t.Fatalf("history changed while busy: %d -> %d", len(st.History), got)
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("follow-up failed: %v", err)
	}
	if got := len(wb.Snapshot().History); got != 4 {
		t.Fatalf("expected 4 messages, got %d", got)
	}
}

func TestEditDuringStartDiscardsStaleResponse(t *testing.T) {
	ctx := context.Background()
	wb, model := newWorkbench(t)
	setupExplain(t, wb)

	release := model.Hold()
	done := make(chan error, 1)
	go func() {
		_, err := wb.StartChat(ctx)
		done <- err
	}()
	waitEntered(t, model)

	if st := wb.Snapshot(); st.Phase() != workbench.PhaseStarting {
		t.Fatalf("expected starting, got %s", st.Phase())
	}

	st := dispatch(t, wb, workbench.SetBasePrompt{Text: "Describe {{topic}}"})
	if st.Phase() != workbench.PhaseIdle || len(st.History) != 0 {
		t.Fatalf("edit must reset synchronously, got %s with %d messages", st.Phase(), len(st.History))
	}
	// the outstanding call still holds the single request slot
	if _, err := wb.StartChat(ctx); !errors.Is(err, workbench.ErrBusy) {
		t.Fatalf("expected ErrBusy while stale call is outstanding, got %v", err)
	}

	release()
	if err := <-done; !errors.Is(err, workbench.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}

	st = wb.Snapshot()
	if len(st.History) != 0 || st.HasSession() || st.Responding() {
		t.Fatalf("stale response leaked into new state: %+v", st)
	}

	if _, err := wb.StartChat(ctx); err != nil {
		t.Fatalf("StartChat after stale response failed: %v", err)
	}
	if got := wb.Snapshot().History[0].Text; !strings.HasPrefix(got, "Describe gravity") {
		t.Fatalf("new chat should use the edited prompt, got %q", got)
	}
}

func TestRemoteFailureBecomesMessage(t *testing.T) {
	ctx := context.Background()
	wb, model := newWorkbench(t)
	setupExplain(t, wb)
	model.QueueError(errors.New("quota exceeded"))

	msg, err := wb.StartChat(ctx)
	if err != nil {
		t.Fatalf("remote failures must not be returned: %v", err)
	}
	if msg.Text != "Error: quota exceeded" || msg.Error != "quota exceeded" {
		t.Fatalf("unexpected error message: %+v", msg)
	}

	st := wb.Snapshot()
	if st.LastError != "quota exceeded" {
		t.Fatalf("expected last error, got %q", st.LastError)
	}
	if wb.BannerError() != "" {
		t.Fatalf("banner must stay empty when history shows the error")
	}
	// the session was opened, so the user can keep going
	if st.Phase() != workbench.PhaseActive {
		t.Fatalf("expected active, got %s", st.Phase())
	}
	if _, err := wb.SendFollowUp(ctx, "retry"); err != nil {
		t.Fatalf("follow-up failed: %v", err)
	}
	if wb.Snapshot().LastError != "" {
		t.Fatalf("successful follow-up should clear the last error")
	}
}

func TestSessionCreationFailure(t *testing.T) {
	ctx := context.Background()
	wb, model := newWorkbench(t)
	setupExplain(t, wb)
	model.FailSessions(domain.ErrMissingAPIKey)

	msg, err := wb.StartChat(ctx)
	if err != nil {
		t.Fatalf("StartChat returned error: %v", err)
	}
	if msg.Error != domain.ErrMissingAPIKey.Error() {
		t.Fatalf("unexpected message: %+v", msg)
	}

	st := wb.Snapshot()
	if st.Phase() != workbench.PhaseEnded || len(st.History) != 2 {
		t.Fatalf("expected ended with 2 messages, got %s/%d", st.Phase(), len(st.History))
	}
	if _, err := wb.SendFollowUp(ctx, "hello?"); !errors.Is(err, workbench.ErrNoActiveChat) {
		t.Fatalf("expected ErrNoActiveChat, got %v", err)
	}

	model.FailSessions(nil)
	if _, err := wb.StartChat(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if wb.Snapshot().Phase() != workbench.PhaseActive {
		t.Fatalf("expected active after restart")
	}
}

func TestStartChatFromActiveRestarts(t *testing.T) {
	ctx := context.Background()
	wb, model := newWorkbench(t)
	setupExplain(t, wb)

	if _, err := wb.StartChat(ctx); err != nil {
		t.Fatalf("StartChat failed: %v", err)
	}
	if _, err := wb.SendFollowUp(ctx, "more"); err != nil {
		t.Fatalf("SendFollowUp failed: %v", err)
	}
	gen := wb.Snapshot().Generation

	if _, err := wb.StartChat(ctx); err != nil {
		t.Fatalf("second StartChat failed: %v", err)
	}
	st := wb.Snapshot()
	if len(st.History) != 2 || st.Generation == gen {
		t.Fatalf("expected a fresh chat, got %d messages gen %d", len(st.History), st.Generation)
	}
	if len(model.Sessions()) != 2 {
		t.Fatalf("expected a second session")
	}
}

func TestSetSearchWithoutSessionKeepsState(t *testing.T) {
	wb, _ := newWorkbench(t)
	setupExplain(t, wb)
	gen := wb.Snapshot().Generation

	st := dispatch(t, wb, workbench.SetSearch{Enabled: true})
	if !st.UseSearch || st.Generation != gen {
		t.Fatalf("toggle without a session should not invalidate")
	}
}

func TestSetSearchUnchangedKeepsSession(t *testing.T) {
	ctx := context.Background()
	wb, model := newWorkbench(t)
	setupExplain(t, wb)
	if _, err := wb.StartChat(ctx); err != nil {
		t.Fatalf("StartChat failed: %v", err)
	}
	before := wb.Snapshot()

	st := dispatch(t, wb, workbench.SetSearch{Enabled: false})
	if st.Phase() != workbench.PhaseActive || st.Generation != before.Generation || len(st.History) != 2 {
		t.Fatalf("setting the current value should keep the chat, got %s gen %d", st.Phase(), st.Generation)
	}
	if _, err := wb.SendFollowUp(ctx, "more"); err != nil {
		t.Fatalf("SendFollowUp failed: %v", err)
	}
	if len(model.Sessions()) != 1 {
		t.Fatalf("session should be reused")
	}

	st = dispatch(t, wb, workbench.SetSearch{Enabled: true})
	if st.Phase() != workbench.PhaseIdle || st.Generation == before.Generation {
		t.Fatalf("an actual change should discard the chat")
	}
}

func TestFollowUpUsesPendingInput(t *testing.T) {
	ctx := context.Background()
	wb, model := newWorkbench(t)
	setupExplain(t, wb)
	if _, err := wb.StartChat(ctx); err != nil {
		t.Fatalf("StartChat failed: %v", err)
	}

	if _, err := wb.SendFollowUp(ctx, "   "); !domain.IsValidation(err) {
		t.Fatalf("expected validation error for blank input, got %v", err)
	}

	dispatch(t, wb, workbench.SetPendingInput{Text: "typed earlier"})
	if _, err := wb.SendFollowUp(ctx, ""); err != nil {
		t.Fatalf("SendFollowUp failed: %v", err)
	}
	sent := model.Sent()
	if sent[len(sent)-1] != "typed earlier" {
		t.Fatalf("expected pending input to be sent, got %q", sent[len(sent)-1])
	}
	if wb.Snapshot().PendingInput != "" {
		t.Fatalf("pending input should be cleared")
	}
}

func TestGenerateOneShot(t *testing.T) {
	ctx := context.Background()
	wb, model := newWorkbench(t)
	setupExplain(t, wb)
	model.QueueReply(domain.Reply{Text: "one shot"})

	msg, err := wb.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if msg.Text != "one shot" {
		t.Fatalf("unexpected reply %+v", msg)
	}

	st := wb.Snapshot()
	if len(st.History) != 0 || len(model.Sessions()) != 0 {
		t.Fatalf("generate must not touch the chat")
	}
	if st.LastResponse == nil || st.LastResponse.Text != "one shot" {
		t.Fatalf("expected last response to be stored")
	}

	model.QueueError(errors.New("model overloaded"))
	msg, err = wb.Generate(ctx)
	if err != nil {
		t.Fatalf("remote failure must be data: %v", err)
	}
	if msg.Error != "model overloaded" || wb.Snapshot().LastError != "model overloaded" {
		t.Fatalf("unexpected failure handling: %+v", msg)
	}

	dispatch(t, wb, workbench.SetBasePrompt{Text: "changed"})
	if wb.Snapshot().LastResponse != nil {
		t.Fatalf("edits should clear the last response")
	}
}

func TestPreview(t *testing.T) {
	wb, _ := newWorkbench(t)
	if wb.Preview() != "Prompt is empty. Add a base prompt or attributes." {
		t.Fatalf("unexpected empty preview %q", wb.Preview())
	}
	setupExplain(t, wb)
	if wb.Preview() != "Explain gravity\n\n--- Attributes ---\nTone: Formal" {
		t.Fatalf("unexpected preview %q", wb.Preview())
	}
}

func ptr(s string) *string {
	return &s
}
