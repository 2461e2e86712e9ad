package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/PabloGalante/promptlab/internal/adapters/storage/memory"
	"github.com/PabloGalante/promptlab/internal/app/workbench"
	"github.com/PabloGalante/promptlab/internal/catalog"
	"github.com/PabloGalante/promptlab/internal/domain"
	"github.com/PabloGalante/promptlab/internal/export"
	"github.com/PabloGalante/promptlab/internal/observability"
	"github.com/PabloGalante/promptlab/internal/prompt"
	"github.com/PabloGalante/promptlab/internal/templatefile"
)

const maxTemplateBytes = 1 << 20

type Options struct {
	ModelName   string
	FrontendURL string
	Now         func() time.Time
}

type Server struct {
	store     *memory.WorkbenchStore
	catalog   *catalog.Catalog
	model     domain.ChatModel
	modelName string
	now       func() time.Time
}

func NewServer(store *memory.WorkbenchStore, cat *catalog.Catalog, model domain.ChatModel, opts Options) http.Handler {
	s := &Server{
		store:     store,
		catalog:   cat,
		model:     model,
		modelName: opts.ModelName,
		now:       opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	r := chi.NewRouter()
	r.Use(withRequestID)
	r.Use(withLogging)
	r.Use(chimw.Recoverer)
	r.Use(withCORS(opts.FrontendURL))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/catalog", s.handleCatalog)

	r.Route("/workbenches", func(r chi.Router) {
		r.Get("/", s.handleListWorkbenches)
		r.Post("/", s.handleCreateWorkbench)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetWorkbench)
			r.Delete("/", s.handleDeleteWorkbench)

			r.Put("/base-prompt", s.handleSetBasePrompt)
			r.Post("/attributes", s.handleAddAttribute)
			r.Put("/attributes/order", s.handleReorderAttributes)
			r.Patch("/attributes/{attrID}", s.handleUpdateAttribute)
			r.Delete("/attributes/{attrID}", s.handleDeleteAttribute)
			r.Post("/variables", s.handleAddVariable)
			r.Patch("/variables/{varID}", s.handleUpdateVariable)
			r.Delete("/variables/{varID}", s.handleDeleteVariable)
			r.Put("/domain", s.handleSelectDomain)
			r.Put("/search", s.handleSetSearch)
			r.Post("/examples/{exampleID}", s.handleLoadExample)
			r.Post("/template", s.handleImportTemplate)
			r.Get("/preview", s.handlePreview)

			r.Post("/chat", s.handleStartChat)
			r.Delete("/chat", s.handleResetChat)
			r.Put("/chat/input", s.handleSetPendingInput)
			r.Post("/chat/messages", s.handleSendMessage)
			r.Post("/generate", s.handleGenerate)

			r.Get("/export/template", s.handleExportTemplate)
			r.Get("/export/chat", s.handleExportChat)
		})
	})

	return r
}

// ─────────────────────────────────────────────
// Catalog and workbench lifecycle
// ─────────────────────────────────────────────

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalogResponse{
		DefaultDomain: s.catalog.DefaultDomain(),
		Attributes:    s.catalog.PredefinedAttributes(),
		Domains:       s.catalog.Domains(),
		Examples:      s.catalog.Examples(),
	})
}

func (s *Server) handleListWorkbenches(w http.ResponseWriter, r *http.Request) {
	wbs := s.store.List(0)
	out := make([]workbenchSummary, 0, len(wbs))
	for _, wb := range wbs {
		out = append(out, toWorkbenchSummary(wb))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateWorkbench(w http.ResponseWriter, r *http.Request) {
	var req createWorkbenchRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(w, "invalid JSON body")
			return
		}
	}

	defaultDomain := s.catalog.DefaultDomain()
	wb := workbench.New(domain.WorkbenchID(uuid.NewString()), s.model, workbench.Options{
		ModelName: s.modelName,
		DomainID:  defaultDomain,
		Now:       s.now,
	})

	if req.ExampleID != "" {
		ex, err := s.catalog.Example(req.ExampleID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if _, err := wb.Dispatch(r.Context(), workbench.LoadTemplate{Template: ex.Template, DomainID: &defaultDomain}); err != nil {
			writeError(w, r, err)
			return
		}
	}

	if err := s.store.Create(wb); err != nil {
		writeError(w, r, err)
		return
	}

	observability.LoggerFromContext(r.Context()).Info("workbench created", "workbench_id", wb.ID(), "example_id", req.ExampleID)
	writeJSON(w, http.StatusCreated, toWorkbenchResponse(wb))
}

func (s *Server) handleGetWorkbench(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbench(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toWorkbenchResponse(wb))
}

func (s *Server) handleDeleteWorkbench(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(domain.WorkbenchID(chi.URLParam(r, "id"))); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─────────────────────────────────────────────
// Prompt edits
// ─────────────────────────────────────────────

func (s *Server) handleSetBasePrompt(w http.ResponseWriter, r *http.Request) {
	var req setBasePromptRequest
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, workbench.SetBasePrompt{Text: req.Text})
}

func (s *Server) handleAddAttribute(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbench(w, r)
	if !ok {
		return
	}
	var req addAttributeRequest
	if !decode(w, r, &req) {
		return
	}

	var domainID string
	if d := wb.Snapshot().SelectedDomainID; d != nil {
		domainID = *d
	}
	attr, err := s.catalog.NewAttribute(domainID, req.Name, req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Description != nil {
		attr.Description = *req.Description
	}

	s.apply(w, r, wb, workbench.AddAttribute{Attribute: attr})
}

func (s *Server) handleUpdateAttribute(w http.ResponseWriter, r *http.Request) {
	var req updateAttributeRequest
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, workbench.UpdateAttribute{
		ID:          domain.AttributeID(chi.URLParam(r, "attrID")),
		Name:        req.Name,
		Value:       req.Value,
		Description: req.Description,
	})
}

func (s *Server) handleDeleteAttribute(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, workbench.DeleteAttribute{ID: domain.AttributeID(chi.URLParam(r, "attrID"))})
}

func (s *Server) handleReorderAttributes(w http.ResponseWriter, r *http.Request) {
	var req reorderAttributesRequest
	if !decode(w, r, &req) {
		return
	}
	order := make([]domain.AttributeID, 0, len(req.Order))
	for _, id := range req.Order {
		order = append(order, domain.AttributeID(id))
	}
	s.dispatch(w, r, workbench.ReorderAttributes{Order: order})
}

func (s *Server) handleAddVariable(w http.ResponseWriter, r *http.Request) {
	var req addVariableRequest
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, workbench.AddVariable{Variable: domain.InputVariable{Name: req.Name, TestValue: req.TestValue}})
}

func (s *Server) handleUpdateVariable(w http.ResponseWriter, r *http.Request) {
	var req updateVariableRequest
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, workbench.UpdateVariable{
		ID:        domain.VariableID(chi.URLParam(r, "varID")),
		Name:      req.Name,
		TestValue: req.TestValue,
	})
}

func (s *Server) handleDeleteVariable(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, workbench.DeleteVariable{ID: domain.VariableID(chi.URLParam(r, "varID"))})
}

func (s *Server) handleSelectDomain(w http.ResponseWriter, r *http.Request) {
	var req selectDomainRequest
	if !decode(w, r, &req) {
		return
	}
	if req.DomainID != nil && *req.DomainID == "" {
		req.DomainID = nil
	}
	if req.DomainID != nil {
		if _, err := s.catalog.Domain(*req.DomainID); err != nil {
			badRequest(w, err.Error())
			return
		}
	}
	s.dispatch(w, r, workbench.SelectDomain{DomainID: req.DomainID})
}

func (s *Server) handleSetSearch(w http.ResponseWriter, r *http.Request) {
	var req setSearchRequest
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, workbench.SetSearch{Enabled: req.Enabled})
}

func (s *Server) handleLoadExample(w http.ResponseWriter, r *http.Request) {
	ex, err := s.catalog.Example(chi.URLParam(r, "exampleID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defaultDomain := s.catalog.DefaultDomain()
	s.dispatch(w, r, workbench.LoadTemplate{Template: ex.Template, DomainID: &defaultDomain})
}

func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbench(w, r)
	if !ok {
		return
	}

	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(templatefile.FormatJSON)
	}
	format, err := templatefile.FormatOf(name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTemplateBytes))
	if err != nil {
		badRequest(w, "could not read template body")
		return
	}
	tmpl, err := templatefile.Decode(format, data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.apply(w, r, wb, workbench.LoadTemplate{Template: *tmpl, DomainID: wb.Snapshot().SelectedDomainID})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbench(w, r)
	if !ok {
		return
	}
	text := wb.Preview()
	writeJSON(w, http.StatusOK, previewResponse{Text: text, Empty: prompt.IsEmpty(text)})
}

// ─────────────────────────────────────────────
// Chat
// ─────────────────────────────────────────────

func (s *Server) handleStartChat(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbench(w, r)
	if !ok {
		return
	}
	msg, err := wb.StartChat(r.Context())
	s.respondChat(w, r, wb, msg, err)
}

func (s *Server) handleResetChat(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, workbench.ResetChat{})
}

func (s *Server) handleSetPendingInput(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, workbench.SetPendingInput{Text: req.Text})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbench(w, r)
	if !ok {
		return
	}
	var req sendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := wb.SendFollowUp(r.Context(), req.Text)
	s.respondChat(w, r, wb, msg, err)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbench(w, r)
	if !ok {
		return
	}
	msg, err := wb.Generate(r.Context())
	s.respondChat(w, r, wb, msg, err)
}

func (s *Server) respondChat(w http.ResponseWriter, r *http.Request, wb *workbench.Workbench, msg *domain.ChatMessage, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Message: msg, Workbench: toWorkbenchResponse(wb)})
}

// ─────────────────────────────────────────────
// Export
// ─────────────────────────────────────────────

func (s *Server) handleExportTemplate(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbench(w, r)
	if !ok {
		return
	}
	tmpl := wb.Snapshot().Template()

	switch format := r.URL.Query().Get("format"); format {
	case "", "md", "markdown":
		writeAttachment(w, "prompt_template.md", "text/markdown; charset=utf-8", []byte(export.TemplateMarkdown(tmpl)))
	case "json":
		data, err := export.TemplateJSON(tmpl)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeAttachment(w, "prompt_template.json", "application/json", data)
	default:
		badRequest(w, fmt.Sprintf("unsupported format %q", format))
	}
}

func (s *Server) handleExportChat(w http.ResponseWriter, r *http.Request) {
	wb, ok := s.workbench(w, r)
	if !ok {
		return
	}
	history := wb.Snapshot().History
	stamp := s.now()
	suffix := stamp.Format("20060102-150405")

	switch format := r.URL.Query().Get("format"); format {
	case "", "md", "markdown":
		writeAttachment(w, "chat_export_"+suffix+".md", "text/markdown; charset=utf-8", []byte(export.ChatMarkdown(history, stamp)))
	case "json":
		data, err := export.ChatJSON(history)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeAttachment(w, "chat_export_"+suffix+".json", "application/json", data)
	case "html":
		out, err := export.ChatHTML(history)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, out)
	default:
		badRequest(w, fmt.Sprintf("unsupported format %q", format))
	}
}

// ─────────────────────────────────────────────
// Workbench helpers
// ─────────────────────────────────────────────

func (s *Server) workbench(w http.ResponseWriter, r *http.Request) (*workbench.Workbench, bool) {
	wb, err := s.store.Get(domain.WorkbenchID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return wb, true
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, ev workbench.Event) {
	wb, ok := s.workbench(w, r)
	if !ok {
		return
	}
	s.apply(w, r, wb, ev)
}

func (s *Server) apply(w http.ResponseWriter, r *http.Request, wb *workbench.Workbench, ev workbench.Event) {
	if _, err := wb.Dispatch(r.Context(), ev); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkbenchResponse(wb))
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps domain and workbench errors to status codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: ve.Message, Missing: ve.Missing})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, workbench.ErrBusy),
		errors.Is(err, workbench.ErrNoActiveChat),
		errors.Is(err, workbench.ErrSuperseded):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, workbench.ErrDuplicateVariable),
		errors.Is(err, workbench.ErrInvalidOrder),
		errors.Is(err, templatefile.ErrUnsupportedFormat),
		errors.Is(err, templatefile.ErrInvalidTemplate),
		errors.Is(err, memory.ErrWorkbenchExists):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		observability.LoggerFromContext(r.Context()).Error("request failed", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
