package httpadapter

import (
	"github.com/PabloGalante/promptlab/internal/app/workbench"
	"github.com/PabloGalante/promptlab/internal/catalog"
	"github.com/PabloGalante/promptlab/internal/domain"
)

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type createWorkbenchRequest struct {
	ExampleID string `json:"example_id,omitempty"`
}

type setBasePromptRequest struct {
	Text string `json:"text"`
}

type addAttributeRequest struct {
	Name        string  `json:"name"`
	Value       string  `json:"value"`
	Description *string `json:"description,omitempty"`
}

type updateAttributeRequest struct {
	Name        *string `json:"name,omitempty"`
	Value       *string `json:"value,omitempty"`
	Description *string `json:"description,omitempty"`
}

type reorderAttributesRequest struct {
	Order []string `json:"order"`
}

type addVariableRequest struct {
	Name      string `json:"name"`
	TestValue string `json:"test_value"`
}

type updateVariableRequest struct {
	Name      *string `json:"name,omitempty"`
	TestValue *string `json:"test_value,omitempty"`
}

type selectDomainRequest struct {
	DomainID *string `json:"domain_id"`
}

type setSearchRequest struct {
	Enabled bool `json:"enabled"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type workbenchResponse struct {
	ID               string                 `json:"id"`
	Phase            workbench.Phase        `json:"phase"`
	Responding       bool                   `json:"responding"`
	Generation       uint64                 `json:"generation"`
	BasePrompt       string                 `json:"base_prompt"`
	Attributes       []domain.Attribute     `json:"attributes"`
	Variables        []domain.InputVariable `json:"input_variables"`
	SelectedDomainID *string                `json:"selected_domain_id"`
	UseSearch        bool                   `json:"use_search"`
	History          []domain.ChatMessage   `json:"history"`
	PendingInput     string                 `json:"pending_input,omitempty"`
	LastResponse     *domain.ChatMessage    `json:"last_response,omitempty"`
	Preview          string                 `json:"preview"`
	Error            string                 `json:"error,omitempty"`
}

type workbenchSummary struct {
	ID         string          `json:"id"`
	Phase      workbench.Phase `json:"phase"`
	Generation uint64          `json:"generation"`
	Messages   int             `json:"messages"`
}

type chatResponse struct {
	Message   *domain.ChatMessage `json:"message"`
	Workbench workbenchResponse   `json:"workbench"`
}

type catalogResponse struct {
	DefaultDomain string                  `json:"default_domain"`
	Attributes    []catalog.AttributeInfo `json:"attributes"`
	Domains       []domain.Domain         `json:"domains"`
	Examples      []domain.ExamplePrompt  `json:"examples"`
}

type previewResponse struct {
	Text  string `json:"text"`
	Empty bool   `json:"empty"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func toWorkbenchResponse(wb *workbench.Workbench) workbenchResponse {
	st := wb.Snapshot()
	history := st.History
	if history == nil {
		history = []domain.ChatMessage{}
	}
	attrs := st.Attributes
	if attrs == nil {
		attrs = []domain.Attribute{}
	}
	vars := st.Variables
	if vars == nil {
		vars = []domain.InputVariable{}
	}

	return workbenchResponse{
		ID:               string(wb.ID()),
		Phase:            st.Phase(),
		Responding:       st.Responding(),
		Generation:       st.Generation,
		BasePrompt:       st.BasePrompt,
		Attributes:       attrs,
		Variables:        vars,
		SelectedDomainID: st.SelectedDomainID,
		UseSearch:        st.UseSearch,
		History:          history,
		PendingInput:     st.PendingInput,
		LastResponse:     st.LastResponse,
		Preview:          wb.Preview(),
		Error:            wb.BannerError(),
	}
}

func toWorkbenchSummary(wb *workbench.Workbench) workbenchSummary {
	st := wb.Snapshot()
	return workbenchSummary{
		ID:         string(wb.ID()),
		Phase:      st.Phase(),
		Generation: st.Generation,
		Messages:   len(st.History),
	}
}
