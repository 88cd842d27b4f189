// Package store owns ChatSession and Message lifetime. Each session is
// guarded by its own lock so only one mutation is in flight per session;
// the store-level lock only protects the session table itself.
package store

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-core/domain"
	cherr "chat-core/errors"
)

type entry struct {
	mu      sync.Mutex
	session *domain.Session
}

type Store struct {
	mu       sync.RWMutex
	log      *slog.Logger
	sessions map[domain.SessionID]*entry
}

func NewStore(log *slog.Logger) *Store {
	return &Store{
		log:      log,
		sessions: make(map[domain.SessionID]*entry),
	}
}

// Snapshot is a read-only copy of a session handed out to callers.
type Snapshot struct {
	ID           domain.SessionID
	Type         domain.SessionType
	State        domain.SessionState
	Participants []domain.UserID
	Messages     []domain.Message
	CreatedAt    time.Time
}

func (s Snapshot) IsParticipant(user domain.UserID) bool {
	return lo.Contains(s.Participants, user)
}

// Summary backs the inbox view: one line per session with its last message.
type Summary struct {
	ID           domain.SessionID
	Type         domain.SessionType
	Participants []domain.UserID
	LastMessage  *domain.Message
}

// CreateDirect allocates a fresh pending direct session. The inviter is the
// only participant until the target accepts.
func (s *Store) CreateDirect(inviter, target domain.UserID) domain.SessionID {
	return s.create(domain.DirectSession, inviter, []domain.UserID{inviter, target})
}

// CreateGroup allocates a pending group session, unless a live group session
// of the inviter already expects the identical participant set; then the
// existing id is returned. Duplicate detection only applies to invites with
// more than one target; a single-target group invite always opens a fresh
// session. Lookup and creation run under one lock so two back-to-back
// identical invites cannot both create.
func (s *Store) CreateGroup(inviter domain.UserID, targets []domain.UserID) (domain.SessionID, bool) {
	expected := append([]domain.UserID{inviter}, targets...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(targets) > 1 {
		for id, e := range s.sessions {
			e.mu.Lock()
			match := e.session.Type == domain.GroupSession &&
				e.session.State != domain.SessionRetired &&
				e.session.IsParticipant(inviter) &&
				domain.SameMembers(e.session.Expected, expected)
			e.mu.Unlock()
			if match {
				s.log.Debug("Reusing group session with identical participants", "session", id)
				return id, true
			}
		}
	}
	return s.createLocked(domain.GroupSession, inviter, expected), false
}

func (s *Store) create(typ domain.SessionType, creator domain.UserID, expected []domain.UserID) domain.SessionID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(typ, creator, expected)
}

func (s *Store) createLocked(typ domain.SessionType, creator domain.UserID, expected []domain.UserID) domain.SessionID {
	id := domain.SessionID(uuid.NewString())
	s.sessions[id] = &entry{session: &domain.Session{
		ID:           id,
		Type:         typ,
		State:        domain.SessionPending,
		Participants: []domain.UserID{creator},
		Expected:     expected,
		CreatedAt:    time.Now().UTC(),
	}}
	s.log.Debug("Session created", "session", id, "type", typ)
	return id
}

func (s *Store) lookup(id domain.SessionID) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, cherr.ErrSessionNotFound)
	}
	return e, nil
}

// AddParticipant appends user to the active set and returns the updated
// participant list. Joining a retired session reports SessionNotFound;
// joining twice reports AlreadyActive.
func (s *Store) AddParticipant(id domain.SessionID, user domain.UserID) ([]domain.UserID, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.State == domain.SessionRetired {
		return nil, fmt.Errorf("%s is retired: %w", id, cherr.ErrSessionNotFound)
	}
	if e.session.IsParticipant(user) {
		return nil, fmt.Errorf("%s in %s: %w", user, id, cherr.ErrAlreadyActive)
	}
	e.session.Participants = append(e.session.Participants, user)
	if !lo.Contains(e.session.Expected, user) {
		e.session.Expected = append(e.session.Expected, user)
	}
	e.session.State = domain.SessionActive
	return snapshotUsers(e.session.Participants), nil
}

// RemoveParticipant drops user from the active set. Emptying the set
// retires the session; the object is kept so history stays queryable, the
// id is never reused.
func (s *Store) RemoveParticipant(id domain.SessionID, user domain.UserID) (remaining []domain.UserID, retired bool, err error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.session.IsParticipant(user) {
		return nil, false, fmt.Errorf("%s in %s: %w", user, id, cherr.ErrNotParticipant)
	}
	e.session.Participants = lo.Without(e.session.Participants, user)
	if len(e.session.Participants) == 0 {
		e.session.State = domain.SessionRetired
		s.log.Debug("Session retired", "session", id)
		return nil, true, nil
	}
	return snapshotUsers(e.session.Participants), false, nil
}

// Retire force-empties the session, used by the direct-session departure
// policy. Remaining members are returned so they can be notified.
func (s *Store) Retire(id domain.SessionID) ([]domain.UserID, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	remaining := snapshotUsers(e.session.Participants)
	e.session.Participants = nil
	e.session.State = domain.SessionRetired
	s.log.Debug("Session retired", "session", id)
	return remaining, nil
}

// Promote turns a direct session into a group session so more members can
// be invited, keeping id, membership and history.
func (s *Store) Promote(id domain.SessionID) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.State == domain.SessionRetired {
		return fmt.Errorf("%s is retired: %w", id, cherr.ErrSessionNotFound)
	}
	e.session.Type = domain.GroupSession
	return nil
}

// DropExpected removes a declined target from the expected set so a later
// identical invite is matched against the real final membership.
func (s *Store) DropExpected(id domain.SessionID, user domain.UserID) {
	e, err := s.lookup(id)
	if err != nil {
		return
	}
	e.mu.Lock()
	e.session.Expected = lo.Without(e.session.Expected, user)
	e.mu.Unlock()
}

// AppendMessage validates sender membership, assigns the next sequence and
// appends. The publish callback runs while the session lock is held so
// fan-out order always matches log order; it must only enqueue.
func (s *Store) AppendMessage(id domain.SessionID, sender domain.UserID, content string,
	publish func(msg domain.Message, participants []domain.UserID)) (domain.Message, error) {
	e, err := s.lookup(id)
	if err != nil {
		return domain.Message{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.session.IsParticipant(sender) {
		return domain.Message{}, fmt.Errorf("%s in %s: %w", sender, id, cherr.ErrNotParticipant)
	}
	e.session.NextSeq++
	msg := domain.Message{
		ID:      uuid.New(),
		Session: id,
		Sender:  sender,
		Content: content,
		Seq:     e.session.NextSeq,
		SentAt:  time.Now().UTC(),
	}
	e.session.Messages = append(e.session.Messages, msg)
	if publish != nil {
		publish(msg, snapshotUsers(e.session.Participants))
	}
	return msg, nil
}

// Restore rebuilds a session from its persisted record and message log,
// typically at startup. The next sequence resumes after the last persisted
// message so restored sessions keep a gapless log.
func (s *Store) Restore(record domain.SessionRecord, messages []domain.Message) {
	var lastSeq uint64
	if n := len(messages); n > 0 {
		lastSeq = messages[n-1].Seq
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[record.ID] = &entry{session: &domain.Session{
		ID:           record.ID,
		Type:         record.Type,
		State:        record.State,
		Participants: record.Participants,
		Messages:     messages,
		NextSeq:      lastSeq,
		CreatedAt:    record.CreatedAt,
	}}
	s.log.Debug("Session restored", "session", record.ID, "messages", len(messages))
}

// Get returns a read-only snapshot or SessionNotFound.
func (s *Store) Get(id domain.SessionID) (Snapshot, error) {
	e, err := s.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshotLocked(e.session), nil
}

// Record returns the persistence view of the session.
func (s *Store) Record(id domain.SessionID) (domain.SessionRecord, error) {
	e, err := s.lookup(id)
	if err != nil {
		return domain.SessionRecord{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.SessionRecord{
		ID:           e.session.ID,
		Type:         e.session.Type,
		State:        e.session.State,
		Participants: snapshotUsers(e.session.Participants),
		CreatedAt:    e.session.CreatedAt,
	}, nil
}

// ListFor returns every session where user is an active participant, each
// with its last message by sequence, for the inbox view.
func (s *Store) ListFor(user domain.UserID) []Summary {
	s.mu.RLock()
	entries := lo.Values(s.sessions)
	s.mu.RUnlock()

	var out []Summary
	for _, e := range entries {
		e.mu.Lock()
		if e.session.IsParticipant(user) {
			sum := Summary{
				ID:           e.session.ID,
				Type:         e.session.Type,
				Participants: snapshotUsers(e.session.Participants),
			}
			if last := e.session.LastMessage(); last != nil {
				m := *last
				sum.LastMessage = &m
			}
			out = append(out, sum)
		}
		e.mu.Unlock()
	}
	return out
}

func snapshotLocked(s *domain.Session) Snapshot {
	return Snapshot{
		ID:           s.ID,
		Type:         s.Type,
		State:        s.State,
		Participants: snapshotUsers(s.Participants),
		Messages:     append([]domain.Message(nil), s.Messages...),
		CreatedAt:    s.CreatedAt,
	}
}

func snapshotUsers(users []domain.UserID) []domain.UserID {
	return append([]domain.UserID(nil), users...)
}
