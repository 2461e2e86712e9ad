package domain

// ChatMessage is one entry of a conversation with the model.
// A model message with Error set stands in for a failed request.
type ChatMessage struct {
	ID        MessageID  `json:"id"`
	Role      Role       `json:"role"`
	Text      string     `json:"text"`
	Timestamp Timestamp  `json:"timestamp"`
	Citations []Citation `json:"groundingChunks,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Source is a referenced document (URI + title).
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Citation is a grounding chunk attached to a model reply.
// At most one of Web / RetrievedContext is populated.
type Citation struct {
	Web              *Source `json:"web,omitempty"`
	RetrievedContext *Source `json:"retrievedContext,omitempty"`
}

// Source returns whichever variant is populated, or nil.
func (c Citation) Source() *Source {
	if c.Web != nil {
		return c.Web
	}
	return c.RetrievedContext
}

// Reply is what the remote model returns for a single request.
type Reply struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"groundingChunks,omitempty"`
}
