package client

import (
	"context"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"artico/internal/models"
)

// ChatWS streams the assistant reply over the relay's WebSocket. It opens a
// connection per call, sends one request and reads frames until done.
func (c *Client) ChatWS(ctx context.Context, messages []models.ChatMessage, onChunk func(string)) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint, err := wsURL(c.baseURL + ChatWSPath)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			log.Error().Err(err).Int("status", resp.StatusCode).Msg("websocket handshake rejected")
			return &StatusError{StatusCode: resp.StatusCode, Message: err.Error()}
		}
		log.Error().Err(err).Str("url", endpoint).Msg("websocket dial failed")
		return errors.Wrap(err, "dialing "+ChatWSPath)
	}
	defer conn.Close()

	// Unblock ReadJSON once the deadline passes.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(models.ChatRequest{Messages: messages}); err != nil {
		return errors.Wrap(err, "sending chat request")
	}

	for {
		var frame models.WSMessage
		if err := conn.ReadJSON(&frame); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				log.Warn().Err(ctxErr).Msg("websocket stream aborted")
				return errors.Wrap(ctxErr, "reading "+ChatWSPath)
			}
			log.Error().Err(err).Msg("reading websocket frame")
			return errors.Wrap(err, "reading "+ChatWSPath)
		}

		switch frame.Type {
		case models.WSTypeChunk:
			if ctx.Err() != nil {
				return errors.Wrap(ctx.Err(), "reading "+ChatWSPath)
			}
			onChunk(Clean(frame.Content))
		case models.WSTypeDone:
			return nil
		case models.WSTypeError:
			log.Error().Int("status", frame.Status).Str("error", frame.Error).Msg("relay reported error")
			return &StatusError{StatusCode: frame.Status, Message: frame.Error}
		default:
			log.Debug().Str("type", frame.Type).Msg("ignoring websocket frame")
		}
	}
}

func wsURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "parsing server url")
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}
