package domain

import "context"

// ChatModel defines how the application talks to the hosted language model.
type ChatModel interface {
	// NewSession opens a multi-turn conversation.
	NewSession(ctx context.Context, cfg SessionConfig) (ChatSession, error)
	// Complete runs a single, session-less request.
	Complete(ctx context.Context, text string, useSearch bool) (*Reply, error)
}

// ChatSession is an open conversation with the model.
type ChatSession interface {
	Send(ctx context.Context, text string) (*Reply, error)
}

// SessionConfig is fixed for the lifetime of a session.
type SessionConfig struct {
	Model     string
	UseSearch bool
}
