package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const streamHeartbeat = 15 * time.Second

// StreamAnalysis pushes every finished run as an SSE "analysis" event.
func (a *API) StreamAnalysis(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	snaps, unsubscribe := a.analysis.Subscribe(r.Context())
	defer unsubscribe()

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()

	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-snaps:
			if !open {
				return
			}
			data, err := json.Marshal(analysisResponse(snap.Result, snap.Meta))
			if err != nil {
				a.log.WithError(err).Warn("encode stream event failed")
				continue
			}
			_, _ = fmt.Fprintf(w, "event: analysis\nid: %s\ndata: %s\n\n", snap.Result.RunID, data)
			flusher.Flush()
		case <-ticker.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
