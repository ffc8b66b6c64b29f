// Package session keeps bounded per-conversation history so follow-up
// questions can reference earlier exchanges.
package session

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Message is a single entry in a conversation history.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

const (
	// RoleUser marks a message written by the person asking questions.
	RoleUser = "user"
	// RoleAssistant marks a model response.
	RoleAssistant = "assistant"
)

// Store holds conversation histories in memory, keyed by session ID.
// Histories are bounded: only the most recent maxTurns exchanges survive.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]Message
	maxTurns int
}

// NewStore creates a Store keeping at most maxTurns user/assistant
// exchanges per session.
func NewStore(maxTurns int) *Store {
	if maxTurns < 1 {
		maxTurns = 1
	}
	return &Store{
		sessions: make(map[string][]Message),
		maxTurns: maxTurns,
	}
}

// Create registers a new empty session and returns its ID.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = nil
	s.mu.Unlock()
	return id
}

// AddExchange appends one user/assistant turn to the session, creating
// the session if the ID is unknown, and evicts the oldest entries past
// the turn limit.
func (s *Store) AddExchange(id, userMsg, assistantMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[id],
		Message{Role: RoleUser, Content: userMsg},
		Message{Role: RoleAssistant, Content: assistantMsg},
	)
	if limit := s.maxTurns * 2; len(history) > limit {
		history = history[len(history)-limit:]
	}
	s.sessions[id] = history
}

// History returns a copy of the session's messages, oldest first.
// Unknown IDs yield nil.
func (s *Store) History(id string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[id]
	if len(history) == 0 {
		return nil
	}
	out := make([]Message, len(history))
	copy(out, history)
	return out
}

// FormatHistory renders the session history as a plain-text transcript
// for prompt injection. Empty or unknown sessions yield "".
func (s *Store) FormatHistory(id string) string {
	history := s.History(id)
	if len(history) == 0 {
		return ""
	}

	lines := make([]string, 0, len(history))
	for _, m := range history {
		label := "User"
		if m.Role == RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, m.Content))
	}
	return strings.Join(lines, "\n")
}

// Clear removes the session entirely.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
