package notify

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// WriteSSE writes n as one server-sent event frame:
//
//	id: <id>
//	event: <type>
//	data: <json>
func WriteSSE(w io.Writer, id uint64, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, n.Type, data)
	return err
}

// WriteComment writes an SSE comment line, used as a keep-alive.
func WriteComment(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}
