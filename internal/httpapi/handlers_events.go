package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jordanhubbard/modelhub/internal/events"
)

// sseKeepAlive is how often an idle stream gets a comment line so proxies
// do not close it.
const sseKeepAlive = 25 * time.Second

// parseEventTypes reads the comma-separated ?types= filter. An empty filter
// (nil map) passes everything.
func parseEventTypes(raw string) (map[events.EventType]bool, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	want := make(map[events.EventType]bool)
	for _, part := range strings.Split(raw, ",") {
		t := events.EventType(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !t.Known() {
			return nil, fmt.Errorf("unknown event type %q", t)
		}
		want[t] = true
	}
	return want, nil
}

// SSEHandler streams bus events as Server-Sent Events. Each frame carries a
// per-stream sequence id; ?types=model_created,model_updated narrows the
// stream.
func SSEHandler(bus *events.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		want, err := parseEventTypes(r.URL.Query().Get("types"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {
				Message: err.Error(), Code: CodeValidation, Field: "types",
			}})
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			jsonError(w, http.StatusInternalServerError, CodeInternal, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		sub := bus.Subscribe(64)
		defer bus.Unsubscribe(sub)

		_, _ = fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"ok\"}\n\n")
		flusher.Flush()

		ticker := time.NewTicker(sseKeepAlive)
		defer ticker.Stop()
		var seq uint64
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				_, _ = fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
			case e, ok := <-sub.C:
				if !ok {
					return
				}
				if want != nil && !want[e.Type] {
					continue
				}
				seq++
				_, _ = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", seq, e.Type, e.JSON())
				flusher.Flush()
			}
		}
	}
}
