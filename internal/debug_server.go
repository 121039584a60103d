package internal

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

// InspectRow is one key rendered in the debug inspector.
type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow

type pageData struct {
	Prefix string
	Items  []InspectRow
}

// StartDebugServer exposes a read-only HTML view over the badger key
// space, only mounted when the log level is DEBUG.
func StartDebugServer(db *badger.DB, port int, endpoint string, mapper RowMapper) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	if mapper == nil {
		mapper = DefaultMapper
	}

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := pageData{Prefix: prefix}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

// DefaultMapper decodes the shared key layout: "<ns>:<entity>[:...]".
// Message keys additionally carry the padded timestamp and sequence.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
	if len(parts) < 2 {
		return row
	}

	row.EntityID = parts[1]
	switch parts[0] {
	case "con":
		row.Type = "CONVERSATION"
	case "msg":
		row.Type = "MESSAGE"
		if len(parts) >= 4 {
			if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
				row.Timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
			}
			row.Detail = "seq " + parts[3]
		}
	case "ded":
		row.Type = "DEDUP"
	case "met":
		row.Type = "LOG-META"
	case "mir":
		row.Type = "MIRROR"
	case "pro":
		row.Type = "PROFILE"
	case "eml":
		row.Type = "EMAIL-INDEX"
	}
	if len(row.EntityID) > 24 {
		row.EntityID = row.EntityID[:24]
	}
	return row
}
