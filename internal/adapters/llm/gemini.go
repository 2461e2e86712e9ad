package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/PabloGalante/promptlab/internal/domain"
	"github.com/PabloGalante/promptlab/internal/observability"
)

const (
	safetyBlockedText = "Response blocked due to safety settings. Try adjusting your prompt."
	incompleteText    = "Response was empty or incomplete for other reasons. Please try again or adjust your prompt."
)

// GeminiConfig selects the backend. A GCP project switches to Vertex AI,
// otherwise the Gemini API is used with APIKey.
type GeminiConfig struct {
	APIKey    string
	Project   string
	Location  string
	ModelName string
}

// GeminiClient implements domain.ChatModel on top of google.golang.org/genai.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

var _ domain.ChatModel = (*GeminiClient)(nil)

// NewGeminiClient builds the client. Without credentials it still succeeds,
// but every call fails with domain.ErrMissingAPIKey.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	var cc *genai.ClientConfig
	switch {
	case cfg.Project != "":
		location := cfg.Location
		if location == "" {
			location = "us-central1"
		}
		cc = &genai.ClientConfig{
			Project:  cfg.Project,
			Location: location,
			Backend:  genai.BackendVertexAI,
		}
	case cfg.APIKey != "":
		cc = &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
	default:
		observability.WithFields("model", modelName).Error("API_KEY environment variable not set, Gemini calls will fail")
		return &GeminiClient{modelName: modelName}, nil
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
	}, nil
}

func (g *GeminiClient) ModelName() string {
	return g.modelName
}

// NewSession opens a chat. Tools are fixed for the session's lifetime.
func (g *GeminiClient) NewSession(ctx context.Context, cfg domain.SessionConfig) (domain.ChatSession, error) {
	if g.client == nil {
		return nil, domain.ErrMissingAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = g.modelName
	}

	chat, err := g.client.Chats.Create(ctx, model, generateConfig(cfg.UseSearch), nil)
	if err != nil {
		return nil, fmt.Errorf("creating chat session: %w", err)
	}
	return &geminiSession{chat: chat}, nil
}

// Complete sends a single request without a session.
func (g *GeminiClient) Complete(ctx context.Context, text string, useSearch bool) (*domain.Reply, error) {
	if g.client == nil {
		return nil, domain.ErrMissingAPIKey
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(text), generateConfig(useSearch))
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}
	return replyFromResponse(res), nil
}

type geminiSession struct {
	chat *genai.Chat
}

func (s *geminiSession) Send(ctx context.Context, text string) (*domain.Reply, error) {
	res, err := s.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}
	return replyFromResponse(res), nil
}

func generateConfig(useSearch bool) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if useSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return cfg
}

// replyFromResponse extracts the text and citations of the first candidate.
// Blocked or truncated responses become explanatory text, not errors.
func replyFromResponse(res *genai.GenerateContentResponse) *domain.Reply {
	if res == nil {
		return &domain.Reply{Text: incompleteText}
	}

	text := res.Text()
	var cand *genai.Candidate
	if len(res.Candidates) > 0 {
		cand = res.Candidates[0]
	}

	if text == "" {
		if cand != nil && cand.FinishReason == genai.FinishReasonSafety {
			return &domain.Reply{Text: safetyBlockedText}
		}
		return &domain.Reply{Text: incompleteText}
	}

	reply := &domain.Reply{Text: text}
	if cand == nil || cand.GroundingMetadata == nil {
		return reply
	}
	for _, chunk := range cand.GroundingMetadata.GroundingChunks {
		if chunk == nil {
			continue
		}
		var c domain.Citation
		if chunk.Web != nil {
			c.Web = source(chunk.Web.URI, chunk.Web.Title)
		}
		if chunk.RetrievedContext != nil {
			c.RetrievedContext = source(chunk.RetrievedContext.URI, chunk.RetrievedContext.Title)
		}
		reply.Citations = append(reply.Citations, c)
	}
	return reply
}

func source(uri, title string) *domain.Source {
	if title == "" {
		title = uri
	}
	return &domain.Source{URI: uri, Title: title}
}
