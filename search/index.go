// Package search maintains a full-text index of routed messages. It is a
// permanent sink on the event pipeline; queries run against the same
// writer's live reader.
package search

import (
	"context"
	"log/slog"

	"github.com/abadojack/whatlanggo"
	"github.com/blugelabs/bluge"

	"chat-core/domain"
	"chat-core/domain/event"
)

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// Hit is one search result.
type Hit struct {
	MessageID string
	Session   domain.SessionID
	Sender    domain.UserID
	Content   string
	Lang      string
}

// Consume indexes every routed message, tagged with its detected language.
func (i *Index) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.NewMessage)
	if !ok {
		return nil
	}

	msg := evt.Message
	info := whatlanggo.Detect(msg.Content)

	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewTextField("content", msg.Content).StoreValue()).
		AddField(bluge.NewKeywordField("session", string(msg.Session)).StoreValue()).
		AddField(bluge.NewKeywordField("sender", string(msg.Sender)).StoreValue()).
		AddField(bluge.NewKeywordField("lang", info.Lang.Iso6391()).StoreValue())

	return i.writer.Update(doc.ID(), doc)
}

// Search matches terms against message content, optionally restricted to a
// single session.
func (i *Index) Search(ctx context.Context, terms string, session domain.SessionID, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Failed to close index reader", "err", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content"))
	if session != "" {
		query.AddMust(bluge.NewTermQuery(string(session)).SetField("session"))
	}
	if limit <= 0 {
		limit = 10
	}

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "content":
				hit.Content = string(value)
			case "session":
				hit.Session = domain.SessionID(value)
			case "sender":
				hit.Sender = domain.UserID(value)
			case "lang":
				hit.Lang = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
