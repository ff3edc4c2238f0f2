package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"artico/internal/models"
)

const copyBufferSize = 32 << 10

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(message string) models.ErrorResponse {
	return models.ErrorResponse{Error: message}
}

// flushWriter pushes every write to the client as soon as it lands.
type flushWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func newFlushWriter(w http.ResponseWriter) flushWriter {
	f, _ := w.(http.Flusher)
	return flushWriter{w: w, f: f}
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if err != nil {
		return n, err
	}
	fw.flush()
	return n, nil
}

func (fw flushWriter) flush() {
	if fw.f != nil {
		fw.f.Flush()
	}
}

// relayStream copies stream to the client chunk by chunk. Headers go out
// before the first upstream byte; after that the status is fixed, so a failed
// read can only be logged and ends the response.
func relayStream(w http.ResponseWriter, r *http.Request, stream io.ReadCloser, header http.Header) {
	defer stream.Close()

	logger := zerolog.Ctx(r.Context())
	for k, vs := range header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(http.StatusOK)

	fw := newFlushWriter(w)
	fw.flush()

	start := time.Now()
	n, err := io.CopyBuffer(fw, stream, make([]byte, copyBufferSize))
	switch {
	case err == nil:
		logger.Debug().Int64("bytes", n).Dur("elapsed", time.Since(start)).Msg("stream relayed")
	case r.Context().Err() != nil:
		logger.Info().Int64("bytes", n).Msg("client went away mid-stream")
	default:
		logger.Error().Err(err).Int64("bytes", n).Msg("stream interrupted")
	}
}
