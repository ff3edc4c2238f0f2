package websocket

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"artico/internal/models"
	"artico/internal/upstream"
)

const (
	writeWait      = 10 * time.Second
	maxRequestSize = 1 << 20
	readChunkSize  = 4 << 10
)

// ChatRelay streams chat replies over a WebSocket. Each text frame the client
// sends is a ChatRequest; the reply comes back as chunk frames followed by a
// done or error frame. Requests on one connection are served in order.
type ChatRelay struct {
	provider upstream.Provider
	upgrader websocket.Upgrader
}

func NewChatRelay(provider upstream.Provider, allowedOrigin string) *ChatRelay {
	return &ChatRelay{
		provider: provider,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "*" {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *ChatRelay) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxRequestSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	requests := make(chan models.ChatRequest)

	// Single reader. A read error means the peer is gone, which also cancels
	// any stream in flight.
	go func() {
		defer cancel()
		defer close(requests)
		for {
			var req models.ChatRequest
			if err := conn.ReadJSON(&req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug().Err(err).Msg("WebSocket read ended")
				}
				return
			}
			select {
			case requests <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.Info().Msg("WebSocket connected")
	for req := range requests {
		if err := h.stream(ctx, conn, req); err != nil {
			logger.Debug().Err(err).Msg("WebSocket stream stopped")
			break
		}
	}
	logger.Info().Msg("WebSocket disconnected")
}

// stream relays one reply. It returns an error only when the connection can
// no longer be written to.
func (h *ChatRelay) stream(ctx context.Context, conn *websocket.Conn, req models.ChatRequest) error {
	rc, err := h.provider.StreamText(ctx, req.Messages)
	if err != nil {
		return h.send(conn, errorFrame(err))
	}
	defer rc.Close()

	// Frames carry JSON strings, so never split a multi-byte character.
	text := transform.NewReader(rc, unicode.UTF8.NewDecoder())
	buf := make([]byte, readChunkSize)
	for {
		n, err := text.Read(buf)
		if n > 0 {
			if werr := h.send(conn, models.WSMessage{Type: models.WSTypeChunk, Content: string(buf[:n])}); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return h.send(conn, models.WSMessage{Type: models.WSTypeDone})
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return h.send(conn, errorFrame(err))
		}
	}
}

func (h *ChatRelay) send(conn *websocket.Conn, msg models.WSMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func errorFrame(err error) models.WSMessage {
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		return models.WSMessage{Type: models.WSTypeError, Error: statusErr.Error(), Status: statusErr.StatusCode}
	}
	return models.WSMessage{
		Type:   models.WSTypeError,
		Error:  "An unexpected error occurred: " + err.Error(),
		Status: http.StatusInternalServerError,
	}
}
