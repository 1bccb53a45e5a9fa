package usecase

import (
	"sync"
	"time"

	"rin-bot/internal/domain"
)

// DefaultHistoryDepth is the number of non-system messages kept per thread.
const DefaultHistoryDepth = 12

// ConversationStore owns all per-identity message threads. Index 0 of every
// thread is the system persona message; it is never evicted by trimming,
// only replaced through SetPersona. All methods are safe for concurrent use.
type ConversationStore struct {
	mu             sync.RWMutex
	threads        map[string][]domain.Message
	defaultPersona string
	historyDepth   int
}

// NewConversationStore creates a store. Threads created without an explicit
// persona get defaultPersona. historyDepth <= 0 falls back to DefaultHistoryDepth.
func NewConversationStore(defaultPersona string, historyDepth int) *ConversationStore {
	if historyDepth <= 0 {
		historyDepth = DefaultHistoryDepth
	}
	return &ConversationStore{
		threads:        make(map[string][]domain.Message),
		defaultPersona: defaultPersona,
		historyDepth:   historyDepth,
	}
}

// EnsureThread creates the thread for identity if it does not exist. The
// persona argument applies only on creation; an existing thread keeps its
// system message untouched. Pass "" to use the default persona.
func (s *ConversationStore) EnsureThread(identity, persona string) {
	s.mu.RLock()
	_, ok := s.threads[identity]
	s.mu.RUnlock()
	if ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock.
	if _, ok := s.threads[identity]; ok {
		return
	}
	if persona == "" {
		persona = s.defaultPersona
	}
	s.threads[identity] = []domain.Message{{
		Role:      domain.RoleSystem,
		Content:   persona,
		Timestamp: time.Now(),
	}}
}

// SetPersona overwrites the system message for identity, creating the
// thread if needed. History is not touched.
func (s *ConversationStore) SetPersona(identity, persona string) {
	s.EnsureThread(identity, persona)
	s.mu.Lock()
	defer s.mu.Unlock()
	thread := s.threads[identity]
	thread[0].Content = persona
	thread[0].Timestamp = time.Now()
}

// AppendUser appends a user message and re-applies the trim invariant.
func (s *ConversationStore) AppendUser(identity, text string) {
	s.append(identity, domain.RoleUser, text)
}

// AppendAssistant appends an assistant message and re-applies the trim invariant.
func (s *ConversationStore) AppendAssistant(identity, text string) {
	s.append(identity, domain.RoleAssistant, text)
}

func (s *ConversationStore) append(identity, role, text string) {
	s.EnsureThread(identity, "")
	s.mu.Lock()
	defer s.mu.Unlock()
	thread := append(s.threads[identity], domain.Message{
		Role:      role,
		Content:   text,
		Timestamp: time.Now(),
	})
	s.threads[identity] = s.trim(thread)
}

// trim keeps the system message plus the historyDepth most recent messages.
func (s *ConversationStore) trim(thread []domain.Message) []domain.Message {
	if len(thread) <= 1+s.historyDepth {
		return thread
	}
	trimmed := make([]domain.Message, 0, 1+s.historyDepth)
	trimmed = append(trimmed, thread[0])
	trimmed = append(trimmed, thread[len(thread)-s.historyDepth:]...)
	return trimmed
}

// Reset removes the thread entirely. The next interaction starts fresh
// with the default persona.
func (s *ConversationStore) Reset(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, identity)
}

// Snapshot returns a copy of the thread for identity, or nil if none exists.
// The live slice is never exposed.
func (s *ConversationStore) Snapshot(identity string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread, ok := s.threads[identity]
	if !ok {
		return nil
	}
	cp := make([]domain.Message, len(thread))
	copy(cp, thread)
	return cp
}

// Len returns the current thread length for identity (0 if none).
func (s *ConversationStore) Len(identity string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.threads[identity])
}
