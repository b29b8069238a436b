package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/MyZenaa/pgpbl-jamubae/pkg/httputil"
)

// streamSSE runs a server-sent-events loop. The subscribe callback registers
// a listener that calls send with each payload; streamSSE serializes the
// payloads onto the response until the client goes away.
//
// Snapshots are full state, so when the client cannot keep up intermediate
// ones are dropped rather than buffered without bound.
func streamSSE(w http.ResponseWriter, r *http.Request, logger *slog.Logger, subscribe func(send func(v any)) (unsubscribe func(), err error)) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INTERNAL_ERROR", Message: "streaming not supported"},
		})
		return
	}

	events := make(chan []byte, 16)
	send := func(v any) {
		data, err := json.Marshal(v)
		if err != nil {
			logger.Error("failed to encode stream payload",
				slog.String("error", err.Error()),
			)
			return
		}
		select {
		case events <- data:
		default:
		}
	}

	unsubscribe, err := subscribe(send)
	if err != nil {
		writeError(w, r, err, logger)
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-events:
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
