package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	agentpkg "github.com/zhouzirui/gold-agents/backend/internal/agent"
	"github.com/zhouzirui/gold-agents/backend/internal/model/chat"
)

var (
	ErrAgentRequired        = errors.New("agent name is required")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrAgentMismatch        = errors.New("conversation belongs to another agent")
)

type entry struct {
	meta    chat.Message
	message *schema.Message
}

// Service keeps conversation threads in memory.
type Service struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	entries       map[string][]entry
	now           func() time.Time
}

// NewService bootstraps an empty in-memory store.
func NewService() *Service {
	return &Service{
		conversations: make(map[string]chat.Conversation),
		entries:       make(map[string][]entry),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateConversation provisions a conversation bound to an agent.
func (s *Service) CreateConversation(_ context.Context, agentName string) (chat.Conversation, error) {
	if agentName == "" {
		return chat.Conversation{}, ErrAgentRequired
	}

	conv := chat.Conversation{
		ID:        uuid.NewString(),
		Agent:     agentName,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.entries[conv.ID] = make([]entry, 0, 16)
	s.mu.Unlock()

	return conv, nil
}

// GetConversation retrieves a conversation by identifier.
func (s *Service) GetConversation(_ context.Context, id string) (chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return chat.Conversation{}, ErrConversationNotFound
	}
	return conv, nil
}

// Append adds messages to the end of a conversation, in order.
func (s *Service) Append(_ context.Context, id string, messages ...*schema.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return ErrConversationNotFound
	}

	now := s.now()
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		s.entries[id] = append(s.entries[id], entry{
			meta: chat.Message{
				ID:             uuid.NewString(),
				ConversationID: id,
				Role:           string(msg.Role),
				Content:        agentpkg.MessageText(msg),
				ToolCalls:      len(msg.ToolCalls),
				CreatedAt:      now,
			},
			message: msg,
		})
	}
	return nil
}

// LoadTranscript returns the stored transcript entries of a conversation.
func (s *Service) LoadTranscript(_ context.Context, id string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.entries[id]
	if !ok {
		return nil, ErrConversationNotFound
	}

	out := make([]chat.Message, len(entries))
	for i, e := range entries {
		out[i] = e.meta
	}
	return out, nil
}

// Messages returns the stored messages of a conversation in append order.
func (s *Service) Messages(_ context.Context, id string) ([]*schema.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.entries[id]
	if !ok {
		return nil, ErrConversationNotFound
	}

	out := make([]*schema.Message, len(entries))
	for i, e := range entries {
		out[i] = e.message
	}
	return out, nil
}

// Thread binds a conversation to the agent.Thread contract.
func (s *Service) Thread(id string) agentpkg.Thread {
	return &thread{svc: s, id: id}
}

// ThreadFor returns the thread of conversation id after checking it is bound
// to agentName. An empty id means the caller wants no thread: it returns nil.
func (s *Service) ThreadFor(ctx context.Context, id, agentName string) (agentpkg.Thread, error) {
	if id == "" {
		return nil, nil
	}
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.Agent != agentName {
		return nil, fmt.Errorf("%w: %s", ErrAgentMismatch, conv.Agent)
	}
	return s.Thread(id), nil
}

type thread struct {
	svc *Service
	id  string
}

func (t *thread) Append(ctx context.Context, messages ...*schema.Message) error {
	return t.svc.Append(ctx, t.id, messages...)
}

func (t *thread) Messages(ctx context.Context) ([]*schema.Message, error) {
	return t.svc.Messages(ctx, t.id)
}
