package discord

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"rollcall.local/rollcall/internal/transport"
)

// Adapter bridges one Discord bot session to the engine: inbound channel
// messages become transport.Messages, outbound engine text becomes channel
// sends. The channel id doubles as the thread id.
type Adapter struct {
	token   string
	handler transport.Handler
	logger  *log.Logger

	mu      sync.Mutex
	session *discordgo.Session
}

func NewAdapter(botToken string, handler transport.Handler, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Adapter{
		token:   normalizeBotToken(botToken),
		handler: handler,
		logger:  logger,
	}
}

func (a *Adapter) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		return fmt.Errorf("discord adapter already started")
	}

	s, err := discordgo.New(a.token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
	s.AddHandler(a.handleMessage)
	if err := s.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	a.session = s
	a.logger.Printf("discord adapter started")
	return nil
}

func (a *Adapter) Stop() error {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.mu.Unlock()

	if s == nil {
		return nil
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	a.logger.Printf("discord adapter stopped")
	return nil
}

var _ transport.Transport = (*Adapter)(nil)

func (a *Adapter) PostToThread(_ context.Context, threadID, text string) (string, error) {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()
	if s == nil {
		return "", fmt.Errorf("discord adapter is not started")
	}

	msg, err := s.ChannelMessageSend(threadID, text)
	if err != nil {
		return "", fmt.Errorf("send discord message channel_id=%s: %w", threadID, err)
	}
	return msg.ID, nil
}

func (a *Adapter) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	if m.Author.Bot {
		return
	}
	if a.handler == nil {
		return
	}

	a.handler(context.Background(), transport.Message{
		SenderID: m.Author.ID,
		Text:     m.Content,
		ThreadID: m.ChannelID,
	})
}

func normalizeBotToken(token string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(strings.ToLower(token), "bot ") {
		return token
	}
	return "Bot " + token
}
