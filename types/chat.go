package types

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

/**
 * ChatStream yields text chunks; Recv returns io.EOF once the stream ends.
 */
type ChatStream interface {
	Recv() (string, error)
	Close() error
}

type ChatCompleter interface {
	StreamChat(ctx context.Context, req *ChatRequest) (ChatStream, error)
}
