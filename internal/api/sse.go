package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rgnets/wlanpi-netctl/internal/bus"
	"github.com/rgnets/wlanpi-netctl/internal/log"
)

// sseBufferSize is the per-subscriber buffer. A subscriber that cannot keep
// up drops messages rather than stalling the bus.
const sseBufferSize = 128

// setSSEHeaders configures the response for Server-Sent Events streaming.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeSSEEvent writes a single SSE event to the response.
func writeSSEEvent(w http.ResponseWriter, id string, event string, data string) {
	fmt.Fprintf(w, "id: %s\n", id)
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// parseKinds turns a comma-separated ?kind= filter into bus kinds. Unknown
// names are ignored; an empty filter means all notification kinds.
func parseKinds(raw string) []bus.Kind {
	if raw == "" {
		return nil
	}
	var kinds []bus.Kind
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kinds = append(kinds, bus.Kind(part))
	}
	return kinds
}

// StreamEvents streams bus notifications via SSE until the client goes away.
// Supports ?kind= filter (comma-separated bus kinds).
// GET /api/v1/events
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		WriteInternalError(w, "Streaming not supported")
		return
	}

	kinds := parseKinds(r.URL.Query().Get("kind"))

	setSSEHeaders(w)

	ch := h.events.Subscribe(sseBufferSize, kinds...)
	defer h.events.Unsubscribe(ch)

	log.Debugf("[API] SSE subscriber connected from %s", getClientIP(r))

	var seq uint64
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debugf("[API] SSE subscriber disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			seq++
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			writeSSEEvent(w, fmt.Sprintf("%d", seq), string(msg.Kind()), string(data))
		}
	}
}
