package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"chat-core/domain"
)

//go:embed inspect.html
var templatesFS embed.FS

// InspectRow is one rendered badger entry: a message under msg:{session}:{seq}
// or a session snapshot under session:{id}.
type InspectRow struct {
	Key     string
	Kind    string
	Session string
	Ref     string
	Detail  string
}

type StatsProvider func() map[string]any

type pageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer serves a read-only dashboard over the persisted store and
// the live counters. It binds its own mux so the gateway routes stay clean.
func StartDebugServer(db *badger.DB, port int, statsProvider StatsProvider) {
	mux := NewInspectMux(db, statsProvider)
	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

func NewInspectMux(db *badger.DB, statsProvider StatsProvider) *http.ServeMux {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := pageData{Prefix: prefix, Stats: make(map[string]any)}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})
	return mux
}

func mapRow(key string, val []byte) InspectRow {
	parts := strings.SplitN(key, ":", 3)
	row := InspectRow{Key: key, Kind: parts[0]}

	switch parts[0] {
	case "msg":
		var msg domain.Message
		if err := json.Unmarshal(val, &msg); err != nil {
			row.Detail = fmt.Sprintf("unreadable value (%d bytes)", len(val))
			return row
		}
		row.Session = shorten(string(msg.Session))
		row.Ref = fmt.Sprintf("seq %d", msg.Seq)
		row.Detail = fmt.Sprintf("%s: %s", msg.Sender, msg.Content)
	case "session":
		var record domain.SessionRecord
		if err := json.Unmarshal(val, &record); err != nil {
			row.Detail = fmt.Sprintf("unreadable value (%d bytes)", len(val))
			return row
		}
		row.Session = shorten(string(record.ID))
		row.Ref = string(record.Type)
		row.Detail = fmt.Sprintf("%s, participants: %v", record.State, record.Participants)
	default:
		row.Detail = fmt.Sprintf("%d bytes", len(val))
	}
	return row
}

func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
