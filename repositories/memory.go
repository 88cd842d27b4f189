package repositories

import (
	"sync"

	"chat-core/domain"
)

// MemoryStore backs the pure in-memory deployment: the session store is the
// source of truth and durability is not required. Writes are retained so
// tests can observe them.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]domain.SessionRecord
	messages map[domain.SessionID][]domain.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[domain.SessionID]domain.SessionRecord),
		messages: make(map[domain.SessionID][]domain.Message),
	}
}

func (s *MemoryStore) SaveMessage(message domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[message.Session] = append(s.messages[message.Session], message)
	return nil
}

func (s *MemoryStore) SaveSession(record domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[record.ID] = record
	return nil
}

func (s *MemoryStore) LoadMessages(session domain.SessionID, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.messages[session]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]domain.Message(nil), msgs...), nil
}

func (s *MemoryStore) LoadSessionsFor(user domain.UserID) ([]domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.SessionRecord
	for _, record := range s.sessions {
		for _, p := range record.Participants {
			if p == user {
				out = append(out, record)
				break
			}
		}
	}
	return out, nil
}
