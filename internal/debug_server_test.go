package internal

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-core/domain"
	"chat-core/repositories"
)

func openBadger(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func fetchPage(t *testing.T, server *httptest.Server, prefix string) string {
	t.Helper()
	resp, err := http.Get(server.URL + "/inspect?prefix=" + prefix)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestInspectMux_RendersStoreAndStats(t *testing.T) {
	req := require.New(t)
	db := openBadger(t)
	repo := repositories.NewBadgerStore(db, slog.Default(), nil)

	session := domain.SessionID(uuid.NewString())
	req.NoError(repo.SaveSession(domain.SessionRecord{
		ID:           session,
		Type:         domain.DirectSession,
		State:        domain.SessionActive,
		Participants: []domain.UserID{"alice", "bob"},
		CreatedAt:    time.Now().UTC(),
	}))
	req.NoError(repo.SaveMessage(domain.Message{
		ID:      uuid.New(),
		Session: session,
		Sender:  "alice",
		Content: "hello from the inspector",
		Seq:     1,
		SentAt:  time.Now().UTC(),
	}))

	stats := func() map[string]any {
		return map[string]any{"messages_routed": uint64(1)}
	}
	server := httptest.NewServer(NewInspectMux(db, stats))
	t.Cleanup(server.Close)

	messages := fetchPage(t, server, "msg:")
	req.Contains(messages, "alice: hello from the inspector")
	req.Contains(messages, "seq 1")
	req.Contains(messages, "messages_routed")

	sessions := fetchPage(t, server, "session:")
	req.Contains(sessions, "active")
	req.Contains(sessions, "alice")
}

func TestInspectMux_UnknownPrefixRendersEmptyTable(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(NewInspectMux(openBadger(t), nil))
	t.Cleanup(server.Close)

	page := fetchPage(t, server, "nothing:")
	req.Contains(page, "chat-core inspector")
	req.NotContains(page, "seq ")
}
