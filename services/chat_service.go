package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hrdesk/api"
	"hrdesk/chatparse"
	"hrdesk/domain"
	"hrdesk/errors"

	"github.com/google/uuid"
)

// CredentialSource yields the credential of the active session.
type CredentialSource interface {
	Credential() (domain.Credential, bool)
}

// historyEntry is the shape the backend expects in the history field.
type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Turn is the outcome of one chat exchange. Assistant is nil on an
// upload-only turn, where Ack carries the ingestion acknowledgment.
type Turn struct {
	Assistant *domain.ChatMessage
	Parsed    chatparse.Response
	Ack       string
}

// ChatService owns the append-only conversation transcript. Every turn
// forwards the recent transcript as history so follow-up questions work
// with or without a fresh file upload.
type ChatService struct {
	chat         api.Chat
	source       CredentialSource
	log          *slog.Logger
	historyLimit int

	mu         sync.Mutex
	transcript []domain.ChatMessage
}

func NewChatService(chat api.Chat, source CredentialSource, historyLimit int, log *slog.Logger) *ChatService {
	return &ChatService{chat: chat, source: source, historyLimit: historyLimit, log: log}
}

// Ask posts one turn. A nil upload is a pure follow-up question against
// already-ingested context; an empty query with an upload ingests the
// document without asking anything.
func (s *ChatService) Ask(ctx context.Context, query string, upload *api.Upload) (Turn, error) {
	cred, ok := s.source.Credential()
	if !ok {
		return Turn{}, errors.ErrSessionExpired
	}

	history, err := s.historyJSON()
	if err != nil {
		return Turn{}, fmt.Errorf("serialize history: %w", err)
	}

	answer, err := s.chat.Ask(ctx, cred, api.ChatRequest{
		Query:       query,
		Upload:      upload,
		HistoryJSON: history,
	})
	if err != nil {
		return Turn{}, err
	}

	if query == "" {
		// Upload-only turn: nothing to append, nothing to parse.
		return Turn{Ack: answer.Message}, nil
	}

	now := time.Now().UTC()
	userMsg := domain.ChatMessage{
		ID:         uuid.New(),
		Role:       domain.RoleUser,
		RawContent: query,
		Timestamp:  now,
	}
	assistantMsg := domain.ChatMessage{
		ID:         uuid.New(),
		Role:       domain.RoleAssistant,
		RawContent: answer.Answer,
		Timestamp:  now,
	}

	s.mu.Lock()
	s.transcript = append(s.transcript, userMsg, assistantMsg)
	s.mu.Unlock()

	return Turn{
		Assistant: &assistantMsg,
		Parsed:    chatparse.Parse(answer.Answer),
	}, nil
}

// Transcript returns a copy of the conversation so far.
func (s *ChatService) Transcript() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Reset drops the transcript, e.g. when the session ends.
func (s *ChatService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
}

func (s *ChatService) historyJSON() (string, error) {
	s.mu.Lock()
	recent := s.transcript
	if s.historyLimit > 0 && len(recent) > s.historyLimit {
		recent = recent[len(recent)-s.historyLimit:]
	}
	entries := make([]historyEntry, 0, len(recent))
	for _, msg := range recent {
		entries = append(entries, historyEntry{Role: string(msg.Role), Content: msg.RawContent})
	}
	s.mu.Unlock()

	if len(entries) == 0 {
		return "", nil
	}
	blob, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(blob), nil
}
