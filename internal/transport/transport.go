package transport

import "context"

// Message is one inbound chat message scoped to a thread.
type Message struct {
	SenderID string
	Text     string
	ThreadID string
}

// Transport posts engine messages into a conversation thread. Inbound
// delivery is push-based: the platform adapter invokes a Handler for every
// message it sees.
type Transport interface {
	PostToThread(ctx context.Context, threadID, text string) (messageID string, err error)
}

type Handler func(ctx context.Context, msg Message)
