//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_repositories.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-core/domain"
	"chat-core/store"
)

// BadgerStore is the durable Persistence variant. Message keys are
// "msg:{session}:{seq_padded}" so a prefix scan returns them in log order
// (19-digit zero padding keeps lexicographic and numeric order aligned);
// session records live under "session:{id}".
type BadgerStore struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewBadgerStore(db *badger.DB, log *slog.Logger, limitMessages *int) *BadgerStore {
	return &BadgerStore{db: db, log: log, limitMessages: limitMessages}
}

// DiskMessage is the stored shape of a message.
type DiskMessage struct {
	ID      string    `json:"id"`
	Session string    `json:"session"`
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
	Seq     uint64    `json:"seq"`
	At      time.Time `json:"at"`
}

type diskSession struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	State        string    `json:"state"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

func messageKey(session domain.SessionID, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d", session, seq))
}

func sessionKey(id domain.SessionID) []byte {
	return []byte(fmt.Sprintf("session:%s", id))
}

func (s *BadgerStore) SaveMessage(message domain.Message) error {
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message.Session, message.Seq), bytes)
	})
}

func (s *BadgerStore) SaveSession(record domain.SessionRecord) error {
	bytes, err := json.Marshal(diskSession{
		ID:    string(record.ID),
		Type:  string(record.Type),
		State: string(record.State),
		Participants: lo.Map(record.Participants, func(u domain.UserID, _ int) string {
			return string(u)
		}),
		CreatedAt: record.CreatedAt,
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(record.ID), bytes)
	})
}

// LoadMessages returns up to limit messages of a session in sequence order.
// A non-positive limit returns the whole log.
func (s *BadgerStore) LoadMessages(session domain.SessionID, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", session))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) == limit {
				s.log.Debug("Message load limit reached", "session", session, "limit", limit)
				break
			}
			err := it.Item().Value(func(value []byte) error {
				var dm DiskMessage
				if err := json.Unmarshal(value, &dm); err != nil {
					return err
				}
				msg, err := toMessage(dm)
				if err != nil {
					return err
				}
				out = append(out, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// LoadSessionsFor scans session records and keeps the ones where user is an
// active participant.
func (s *BadgerStore) LoadSessionsFor(user domain.UserID) ([]domain.SessionRecord, error) {
	var out []domain.SessionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("session:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var ds diskSession
				if err := json.Unmarshal(value, &ds); err != nil {
					return err
				}
				if !lo.Contains(ds.Participants, string(user)) {
					return nil
				}
				out = append(out, toRecord(ds))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// RestoreSessions replays every persisted session and its message log into
// the live store, typically once at startup.
func (s *BadgerStore) RestoreSessions(target *store.Store) error {
	records, err := s.loadAllSessions()
	if err != nil {
		return err
	}

	limit := 0
	if s.limitMessages != nil {
		limit = *s.limitMessages
	}
	for _, record := range records {
		messages, err := s.LoadMessages(record.ID, 0)
		if err != nil {
			return fmt.Errorf("loading log of %s: %w", record.ID, err)
		}
		// Keep the tail so the restored log ends on the latest sequence.
		if limit > 0 && len(messages) > limit {
			messages = messages[len(messages)-limit:]
		}
		target.Restore(record, messages)
	}
	s.log.Info("Sessions restored from disk", "count", len(records))
	return nil
}

func (s *BadgerStore) loadAllSessions() ([]domain.SessionRecord, error) {
	var out []domain.SessionRecord
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("session:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var ds diskSession
				if err := json.Unmarshal(value, &ds); err != nil {
					return err
				}
				out = append(out, toRecord(ds))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

func fromMessage(m domain.Message) DiskMessage {
	return DiskMessage{
		ID:      m.ID.String(),
		Session: string(m.Session),
		Sender:  string(m.Sender),
		Content: m.Content,
		Seq:     m.Seq,
		At:      m.SentAt,
	}
}

func toMessage(dm DiskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:      parsedID,
		Session: domain.SessionID(dm.Session),
		Sender:  domain.UserID(dm.Sender),
		Content: dm.Content,
		Seq:     dm.Seq,
		SentAt:  dm.At.UTC(),
	}, nil
}

func toRecord(ds diskSession) domain.SessionRecord {
	return domain.SessionRecord{
		ID:    domain.SessionID(ds.ID),
		Type:  domain.SessionType(ds.Type),
		State: domain.SessionState(ds.State),
		Participants: lo.Map(ds.Participants, func(u string, _ int) domain.UserID {
			return domain.UserID(u)
		}),
		CreatedAt: ds.CreatedAt,
	}
}
